// Package channel implements the authenticated, encrypted send operation
// against the receiver: one HTTPS POST per sample over a mutually
// authenticated TLS connection, answered by an ack or a classified error.
package channel

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/orion-sense/sampleship/internal/domain"
	"github.com/orion-sense/sampleship/internal/ports"
)

const samplesEndpoint = "/v1/ingest/samples"

// Credentials holds the externally provisioned mTLS material: the device
// certificate/key pair and the receiver's trusted root. The channel never
// generates or rotates these.
type Credentials struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

// Config configures the channel client.
type Config struct {
	// Endpoint is the receiver base URL, e.g. "https://receiver:8443".
	Endpoint string

	// DeviceID identifies this transmitter in every request.
	DeviceID string

	Credentials Credentials
}

// Client implements ports.Channel over HTTPS. The underlying connection is
// established lazily on first use; transport-level reconnects are handled
// by the HTTP client and never touch sample-level retry state, which lives
// in the buffer store.
type Client struct {
	cfg    Config
	logger ports.Logger

	mu     sync.Mutex
	client ports.HTTPClient
}

var _ ports.Channel = (*Client)(nil)

// New creates a channel client. The credential files are not touched until
// the first Send.
func New(cfg Config, logger ports.Logger) *Client {
	return &Client{cfg: cfg, logger: logger}
}

// NewWithHTTPClient creates a channel client over an injected HTTP client,
// bypassing mTLS setup. Used by tests and embedders with their own
// transport.
func NewWithHTTPClient(cfg Config, client ports.HTTPClient, logger ports.Logger) *Client {
	return &Client{cfg: cfg, logger: logger, client: client}
}

// sendRequest is the wire form of one sample. Payload is base64 in JSON.
type sendRequest struct {
	ID              string    `json:"id"`
	DeviceID        string    `json:"device_id"`
	CapturedAt      time.Time `json:"captured_at"`
	DurationSeconds int       `json:"duration_seconds"`
	Payload         []byte    `json:"payload"`
}

// sendResponse is the receiver's answer: exactly one of Ack or Error.
type sendResponse struct {
	Ack   *ackBody   `json:"ack,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type ackBody struct {
	ID string `json:"id"`
}

type errorBody struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// Send transmits one sample and blocks until ack, error, or ctx expiry.
// A nil return is an ack; all failures are *domain.SendError.
func (c *Client) Send(ctx context.Context, s domain.Sample) error {
	client, err := c.ensureClient()
	if err != nil {
		return err
	}

	body, err := json.Marshal(sendRequest{
		ID:              s.ID,
		DeviceID:        c.cfg.DeviceID,
		CapturedAt:      s.CapturedAt,
		DurationSeconds: s.DurationSeconds,
		Payload:         s.Payload,
	})
	if err != nil {
		return &domain.SendError{Kind: domain.KindMalformed, Detail: "encode request", Err: err}
	}

	url := strings.TrimRight(c.cfg.Endpoint, "/") + samplesEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &domain.SendError{Kind: domain.KindTransient, Detail: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-Id", c.cfg.DeviceID)

	resp, err := client.Do(req)
	if err != nil {
		if isTLSAuthFailure(err) {
			return &domain.SendError{Kind: domain.KindAuthRejected, Detail: "tls handshake rejected", Err: err}
		}
		// Timeouts, resets and refused connections are retryable.
		return &domain.SendError{Kind: domain.KindTransient, Detail: "transport", Err: err}
	}
	defer resp.Body.Close()

	return c.decode(s.ID, resp)
}

// decode maps the HTTP response to an ack or a classified SendError.
func (c *Client) decode(id string, resp *http.Response) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &domain.SendError{Kind: domain.KindTransient, Detail: "read response", Err: err}
	}

	kind := kindForStatus(resp.StatusCode)
	detail := fmt.Sprintf("http %d", resp.StatusCode)

	var parsed sendResponse
	if jsonErr := json.Unmarshal(raw, &parsed); jsonErr == nil {
		if resp.StatusCode/100 == 2 && parsed.Ack != nil {
			if parsed.Ack.ID != id {
				return &domain.SendError{
					Kind:   domain.KindTransient,
					Detail: fmt.Sprintf("ack id mismatch: sent %s, acked %s", id, parsed.Ack.ID),
				}
			}
			return nil
		}
		if parsed.Error != nil {
			if k := domain.ErrorKind(parsed.Error.Kind); k == domain.KindTransient ||
				k == domain.KindAuthRejected || k == domain.KindMalformed {
				kind = k
			}
			if parsed.Error.Detail != "" {
				detail = parsed.Error.Detail
			}
			return &domain.SendError{Kind: kind, Detail: detail}
		}
	}

	if resp.StatusCode/100 == 2 {
		// 2xx without an ack body is a protocol violation; retrying is
		// safe because the receiver dedups on id.
		return &domain.SendError{Kind: domain.KindTransient, Detail: "missing ack in response"}
	}
	return &domain.SendError{Kind: kind, Detail: detail}
}

// isTLSAuthFailure reports whether a transport error is a certificate
// rejection rather than a transient network failure. Peer alerts surface
// as wrapped tls errors whose text carries the "tls:" prefix.
func isTLSAuthFailure(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &verifyErr) {
		return true
	}
	return strings.Contains(err.Error(), "tls: bad certificate") ||
		strings.Contains(err.Error(), "tls: certificate required") ||
		strings.Contains(err.Error(), "tls: expired certificate") ||
		strings.Contains(err.Error(), "tls: unknown certificate authority")
}

// kindForStatus classifies a non-ack HTTP status.
func kindForStatus(status int) domain.ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.KindAuthRejected
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domain.KindMalformed
	default:
		return domain.KindTransient
	}
}

// ensureClient lazily builds the mTLS HTTP client. Missing or unreadable
// credential material fails fast as a non-retryable auth error.
func (c *Client) ensureClient() (ports.HTTPClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	tlsCfg, err := buildTLSConfig(c.cfg.Credentials)
	if err != nil {
		return nil, err
	}

	c.client = &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsCfg},
	}
	c.logger.Info("channel ready", ports.String("endpoint", c.cfg.Endpoint))
	return c.client, nil
}

// buildTLSConfig loads the device certificate and the receiver's root.
func buildTLSConfig(creds Credentials) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(creds.CertFile, creds.KeyFile)
	if err != nil {
		return nil, &domain.SendError{Kind: domain.KindAuthRejected, Detail: "load device certificate", Err: err}
	}

	caPEM, err := os.ReadFile(creds.CAFile)
	if err != nil {
		return nil, &domain.SendError{Kind: domain.KindAuthRejected, Detail: "read receiver root certificate", Err: err}
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, &domain.SendError{Kind: domain.KindAuthRejected, Detail: fmt.Sprintf("no valid certs in %q", creds.CAFile)}
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
	}, nil
}

// Close releases the underlying connection pool, if one was built.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if hc, ok := c.client.(*http.Client); ok {
		hc.CloseIdleConnections()
	}
	c.client = nil
	return nil
}
