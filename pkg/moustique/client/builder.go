package client

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/tsarna/moustique/pkg/moustique"
	"github.com/tsarna/moustique/pkg/moustique/o11y"
	"github.com/tsarna/moustique/pkg/moustique/transport"
	"go.uber.org/zap"
)

const (
	DefaultHost       = "127.0.0.1"
	DefaultPort       = 33335
	DefaultMaxRetries = 5
)

// ClientBuilder provides a fluent interface for building Moustique clients.
type ClientBuilder struct {
	host       string
	port       int
	clientName string
	username   string
	password   string
	logger     *zap.Logger
	timeout    time.Duration
	transport  transport.Transport
	monitor    moustique.ClientMonitor
	metrics    o11y.MetricsProvider
	tracing    o11y.TracingProvider
	maxRetries int
	identity   *Identity
	clock      func() time.Time
}

// NewClient creates a new client builder.
func NewClient() *ClientBuilder {
	return &ClientBuilder{
		host:       DefaultHost,
		port:       DefaultPort,
		logger:     zap.NewNop(),
		timeout:    transport.DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		clock:      time.Now,
	}
}

// WithHost sets the broker host name or IP address.
func (b *ClientBuilder) WithHost(host string) *ClientBuilder {
	b.host = host
	return b
}

// WithPort sets the broker port.
func (b *ClientBuilder) WithPort(port int) *ClientBuilder {
	b.port = port
	return b
}

// WithClientName sets the optional name embedded in the client identity.
func (b *ClientBuilder) WithClientName(name string) *ClientBuilder {
	b.clientName = name
	return b
}

// WithCredentials makes every request carry a username and password, selecting a
// per-user broker. Both must be non-empty to take effect.
func (b *ClientBuilder) WithCredentials(username, password string) *ClientBuilder {
	b.username = username
	b.password = password
	return b
}

// WithLogger sets the logger for the client.
func (b *ClientBuilder) WithLogger(logger *zap.Logger) *ClientBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithTimeout sets the per-request timeout of the default HTTP transport.
// It has no effect when a transport is supplied with WithTransport.
func (b *ClientBuilder) WithTimeout(timeout time.Duration) *ClientBuilder {
	if timeout > 0 {
		b.timeout = timeout
	}
	return b
}

// WithTransport replaces the HTTP transport.
func (b *ClientBuilder) WithTransport(t transport.Transport) *ClientBuilder {
	b.transport = t
	return b
}

// WithMonitor sets an optional monitor that is told about subscriptions,
// resubscriptions and failed operations.
func (b *ClientBuilder) WithMonitor(monitor moustique.ClientMonitor) *ClientBuilder {
	b.monitor = monitor
	return b
}

// WithMetrics records request counts, durations and deliveries into provider.
func (b *ClientBuilder) WithMetrics(provider o11y.MetricsProvider) *ClientBuilder {
	b.metrics = provider
	return b
}

// WithTracing opens a span for every broker round trip.
func (b *ClientBuilder) WithTracing(provider o11y.TracingProvider) *ClientBuilder {
	b.tracing = provider
	return b
}

// WithMaxRetries sets how many times Get repeats a failed query. Default is 5.
func (b *ClientBuilder) WithMaxRetries(retries int) *ClientBuilder {
	if retries >= 0 {
		b.maxRetries = retries
	}
	return b
}

// WithIdentity uses a fixed identity instead of generating one. The client
// name set with WithClientName is ignored.
func (b *ClientBuilder) WithIdentity(id Identity) *ClientBuilder {
	b.identity = &id
	return b
}

// WithClock sets the time source used for updated_time fields.
func (b *ClientBuilder) WithClock(clock func() time.Time) *ClientBuilder {
	if clock != nil {
		b.clock = clock
	}
	return b
}

// Build creates and returns a new client with the configured options.
func (b *ClientBuilder) Build() (*Client, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	id := NewIdentity(b.clientName)
	if b.identity != nil {
		id = *b.identity
	}

	t := b.transport
	if t == nil {
		t = transport.NewHTTPTransport(b.timeout, b.logger)
	}

	c := &Client{
		baseURL:    "http://" + net.JoinHostPort(b.host, strconv.Itoa(b.port)),
		identity:   id,
		name:       id.String(),
		username:   b.username,
		password:   b.password,
		transport:  t,
		logger:     b.logger,
		monitor:    b.monitor,
		inst:       o11y.NewClientInstruments(b.metrics, b.tracing),
		registry:   moustique.NewRegistry(),
		maxRetries: b.maxRetries,
		now:        b.clock,
	}
	c.system = map[string]systemHandler{
		moustique.ResubscribeTopic: c.onResubscribeRequest,
	}

	return c, nil
}

// IsValid checks that all required configuration is present.
func (b *ClientBuilder) IsValid() error {
	if b.host == "" {
		return fmt.Errorf("host is required")
	}

	if b.port <= 0 || b.port > 65535 {
		return fmt.Errorf("invalid port %d", b.port)
	}

	if b.logger == nil {
		b.logger = zap.NewNop()
	}

	if b.timeout <= 0 {
		b.timeout = transport.DefaultTimeout
	}

	if b.clock == nil {
		b.clock = time.Now
	}

	return nil
}
