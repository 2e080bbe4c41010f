package ports

import (
	"context"
	"net/http"

	"github.com/orion-sense/sampleship/internal/domain"
)

// Channel is the authenticated, encrypted connection to the receiver.
// Implementations establish (and re-establish) the connection lazily;
// connection state never holds sample-level retry state, which lives in
// the buffer store.
type Channel interface {
	// Send transmits one sample and blocks until the receiver acknowledges
	// it, an error is returned, or ctx expires. A nil return is an Ack.
	// Failures are reported as *domain.SendError carrying the error kind:
	// transient failures (including ctx timeout) are retryable, auth and
	// malformed rejections are not.
	Send(ctx context.Context, s domain.Sample) error

	// Close releases the underlying connection, if any.
	Close() error
}

// HTTPClient abstracts HTTP operations for dependency injection.
// The standard *http.Client satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
