// Package ports defines the interfaces that connect the transmitter core
// to infrastructure adapters.
//
// The application layer (internal/app) depends only on these interfaces.
// Adapters (internal/adapters) implement them with concrete technology:
// file-system stores, an HTTPS channel, zerolog.
//
// # Port Interfaces
//
//   - [BufferStore]: durable FIFO queue of pending samples
//   - [ErrorStore]: durable quarantine for samples that exhausted retries
//   - [Channel]: authenticated, encrypted send operation to the receiver
//   - [Logger]: structured logging abstraction (alias of pkg/log)
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// This separation keeps the drain loop and retry policy testable with
// in-memory fakes and lets infrastructure change without touching the core.
package ports
