// Package transport carries form-encoded requests to a Moustique broker.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrStatus is wrapped by errors caused by a response status the caller did not accept.
var ErrStatus = errors.New("unexpected status")

// Request is a single form-encoded request.
type Request struct {
	Method string
	URL    string
	Fields url.Values
	// Accept lists the status codes treated as success. Empty means any 2xx.
	Accept []int
}

// Response is what the broker sent back.
type Response struct {
	StatusCode int
	Body       string
}

// Transport sends requests to the broker. Each call is an independent
// request/response pair.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Error describes a failed request. StatusCode is 0 when no response arrived.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Method, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err was caused by an HTTP 401 response.
func IsUnauthorized(err error) bool {
	var terr *Error
	return errors.As(err, &terr) && terr.StatusCode == http.StatusUnauthorized
}

// HTTPTransport implements Transport on top of net/http.
type HTTPTransport struct {
	client *http.Client
	logger *zap.Logger
}

// NewHTTPTransport creates a transport with the given per-request timeout.
// A nil logger is replaced by a no-op logger.
func NewHTTPTransport(timeout time.Duration, logger *zap.Logger) *HTTPTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPTransport{
		client: &http.Client{
			Timeout: timeout,
			// Redirects are reported to the caller, which decides whether the status is acceptable.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// DefaultTimeout bounds every request made by an HTTPTransport.
const DefaultTimeout = 5 * time.Second

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	body := ""
	if req.Fields != nil {
		body = req.Fields.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, strings.NewReader(body))
	if err != nil {
		return nil, &Error{Method: req.Method, URL: req.URL, Err: fmt.Errorf("failed to build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	t.logger.Debug("Sending request", zap.String("method", req.Method), zap.String("url", req.URL))

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Method: req.Method, URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Method: req.Method, URL: req.URL, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	result := &Response{StatusCode: resp.StatusCode, Body: string(data)}

	if !accepted(resp.StatusCode, req.Accept) {
		return result, &Error{
			Method:     req.Method,
			URL:        req.URL,
			StatusCode: resp.StatusCode,
			Body:       result.Body,
			Err:        ErrStatus,
		}
	}

	return result, nil
}

func accepted(status int, accept []int) bool {
	if len(accept) == 0 {
		return status >= 200 && status < 300
	}
	return slices.Contains(accept, status)
}
