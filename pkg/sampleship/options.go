package sampleship

import (
	"github.com/orion-sense/sampleship/internal/ports"
	"github.com/orion-sense/sampleship/pkg/log"
)

// Logger is the structured logging interface accepted by WithLogger.
// *log.ZerologAdapter satisfies it.
type Logger = log.Logger

// HTTPClient is the interface for making HTTP requests.
// *http.Client satisfies this interface.
type HTTPClient = ports.HTTPClient

// Channel is the send-operation abstraction; inject one with WithChannel
// to replace the built-in HTTPS client (e.g. in tests).
type Channel = ports.Channel

// Option configures optional behavior of a Transmitter.
type Option func(*options)

// options holds the optional configuration for a Transmitter instance.
type options struct {
	logger     Logger
	httpClient HTTPClient
	channel    Channel
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHTTPClient injects the HTTP client used by the built-in HTTPS
// channel, bypassing its mTLS setup. Mostly for tests.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithChannel replaces the built-in HTTPS channel entirely.
func WithChannel(ch Channel) Option {
	return func(o *options) {
		o.channel = ch
	}
}
