package client

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tsarna/moustique/pkg/moustique"
	"github.com/tsarna/moustique/pkg/moustique/codec"
	"github.com/tsarna/moustique/pkg/moustique/transport"
)

// mockResponse is one scripted answer. A non-nil err simulates a request that
// never got a response.
type mockResponse struct {
	status int
	body   string
	err    error
}

// mockTransport records every request and answers from a per-path script.
// The last scripted response for a path repeats once the script runs out;
// unscripted paths answer 200 with an empty body.
type mockTransport struct {
	mu        sync.Mutex
	requests  []transport.Request
	responses map[string][]mockResponse
}

func newMockTransport() *mockTransport {
	return &mockTransport{responses: make(map[string][]mockResponse)}
}

func (m *mockTransport) script(path string, responses ...mockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[path] = append(m.responses[path], responses...)
}

// scriptBody answers path with 200 and the encoded form of text.
func (m *mockTransport) scriptBody(path, text string) {
	m.script(path, mockResponse{status: http.StatusOK, body: codec.Encode(text)})
}

func (m *mockTransport) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	m.mu.Lock()
	recorded := *req
	recorded.Fields = maps.Clone(req.Fields)
	m.requests = append(m.requests, recorded)

	path := req.URL[strings.LastIndex(req.URL, "/"):]
	resp := mockResponse{status: http.StatusOK}
	if script := m.responses[path]; len(script) > 0 {
		resp = script[0]
		if len(script) > 1 {
			m.responses[path] = script[1:]
		}
	}
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &transport.Error{Method: req.Method, URL: req.URL, Err: err}
	}
	if resp.err != nil {
		return nil, &transport.Error{Method: req.Method, URL: req.URL, Err: resp.err}
	}

	result := &transport.Response{StatusCode: resp.status, Body: resp.body}
	ok := resp.status >= 200 && resp.status < 300
	if len(req.Accept) > 0 {
		ok = false
		for _, s := range req.Accept {
			if s == resp.status {
				ok = true
			}
		}
	}
	if !ok {
		return result, &transport.Error{
			Method:     req.Method,
			URL:        req.URL,
			StatusCode: resp.status,
			Body:       resp.body,
			Err:        transport.ErrStatus,
		}
	}
	return result, nil
}

// sent returns the recorded requests made to path.
func (m *mockTransport) sent(path string) []transport.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []transport.Request
	for _, r := range m.requests {
		if r.URL[strings.LastIndex(r.URL, "/"):] == path {
			out = append(out, r)
		}
	}
	return out
}

func (m *mockTransport) all() []transport.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]transport.Request(nil), m.requests...)
}

// mockMonitor records monitor callbacks.
type mockMonitor struct {
	moustique.BaseMonitor

	mu           sync.Mutex
	subscribed   []string
	resubscribed [][]string
	failures     []string
	errs         []error
}

func (m *mockMonitor) OnSubscribe(ctx context.Context, client moustique.Client, topic string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed = append(m.subscribed, topic)
}

func (m *mockMonitor) OnResubscribe(ctx context.Context, client moustique.Client, topics []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resubscribed = append(m.resubscribed, topics)
}

func (m *mockMonitor) OnFailure(ctx context.Context, client moustique.Client, op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, op)
	m.errs = append(m.errs, err)
}

var (
	testIdentity = Identity{Hostname: "host", Name: "test", Disambiguator: 5, PID: 100}
	testTime     = time.Unix(1700000000, 0)
	errRefused   = errors.New("connection refused")
)

// newTestClient builds a client wired to a fresh mock transport and monitor.
func newTestClient(t *testing.T) (*Client, *mockTransport, *mockMonitor) {
	t.Helper()

	mt := newMockTransport()
	mon := &mockMonitor{}

	c, err := NewClient().
		WithTransport(mt).
		WithMonitor(mon).
		WithIdentity(testIdentity).
		WithClock(func() time.Time { return testTime }).
		Build()
	require.NoError(t, err)

	return c, mt, mon
}

// field decodes one form field of a recorded request.
func field(t *testing.T, req transport.Request, name string) string {
	t.Helper()

	raw := req.Fields.Get(name)
	require.NotEmpty(t, raw, "field %q missing", name)

	text, err := codec.Decode(raw)
	require.NoError(t, err)
	return text
}
