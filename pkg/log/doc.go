// Package log provides the structured logging abstraction used by
// sampleship and a zerolog-backed implementation.
//
// The [Logger] interface decouples the transmitter core from any concrete
// logging library. [ZerologAdapter] is the production implementation;
// [NoopLogger] discards everything and is the default for embedders that
// do not care about logs.
package log
