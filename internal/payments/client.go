package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds every outbound call to a provider.
const DefaultTimeout = 8 * time.Second

type options struct {
	httpClient    *http.Client
	baseURL       string
	verifyWebhook bool
	now           func() time.Time
}

type Option func(*options)

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithBaseURL overrides the provider API root, e.g. for a local stub.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithWebhookVerification toggles signature checks on incoming webhooks.
// Verification is on unless disabled here.
func WithWebhookVerification(enabled bool) Option {
	return func(o *options) { o.verifyWebhook = enabled }
}

func withClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{
		httpClient:    &http.Client{Timeout: DefaultTimeout},
		verifyWebhook: true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// doJSON sends payload (if any) as JSON and returns the raw response. Non 2xx
// responses are returned as *RequestError carrying the upstream body.
func doJSON(ctx context.Context, c *http.Client, provider, op, method, url string, payload any, setHeaders func(h http.Header)) ([]byte, int, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("%s %s encode: %w", provider, op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s request: %w", provider, op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	setHeaders(req.Header)

	resp, err := c.Do(req)
	if err != nil {
		if isTimeout(err) {
			err = fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, 0, &RequestError{Provider: provider, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if isTimeout(err) {
			err = fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, resp.StatusCode, &RequestError{Provider: provider, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return raw, resp.StatusCode, &RequestError{
			Provider:   provider,
			Op:         op,
			StatusCode: resp.StatusCode,
			Payload:    string(raw),
		}
	}
	return raw, resp.StatusCode, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// rawID renders a provider id that may arrive as a JSON number or string.
func rawID(m json.RawMessage) string {
	s := strings.TrimSpace(string(m))
	if s == "" || s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}
