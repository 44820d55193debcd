package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/tsarna/moustique/pkg/moustique"
	"github.com/tsarna/moustique/pkg/moustique/client"
	"github.com/tsarna/moustique/pkg/moustique/config"
	"github.com/tsarna/moustique/pkg/moustique/otel"
	"github.com/tsarna/moustique/pkg/moustique/transport"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set at build time.
var Version = "dev"

type options struct {
	configPath string
	host       string
	port       int
	name       string
	username   string
	password   string
	timeout    time.Duration
	verbose    bool
	debug      bool
	logLevel   string
}

// NewRootCommand builds the moustique command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:     "moustique",
		Short:   "Moustique pub/sub command line client",
		Version: Version,
		Long: `moustique talks to a Moustique broker over HTTP.

It can publish messages, store and read named values, follow topics by
polling the broker, and run the password protected broker queries.

Settings come from an optional HCL file (--config), overridden by flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "HCL config file or directory")
	pf.StringVar(&opts.host, "host", client.DefaultHost, "broker host")
	pf.IntVar(&opts.port, "port", client.DefaultPort, "broker port")
	pf.StringVarP(&opts.name, "name", "n", "", "client name used in the client identity")
	pf.StringVar(&opts.username, "username", "", "username for per-user brokers")
	pf.StringVar(&opts.password, "password", "", "password for per-user brokers")
	pf.DurationVar(&opts.timeout, "timeout", transport.DefaultTimeout, "per-request timeout")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&opts.debug, "debug", "d", false, "debug output")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newPublishCommand(opts),
		newPutValCommand(opts),
		newGetValCommand(opts),
		newGetValsCommand(opts),
		newSubscribeCommand(opts),
		newQueryCommand(opts),
		newWhoamiCommand(opts),
	)

	return root
}

// Execute runs the root command. It is called by main.main().
func Execute() error {
	return NewRootCommand().Execute()
}

// session is what a command needs to talk to the broker.
type session struct {
	logger  *zap.Logger
	config  *config.Config
	client  *client.Client
	monitor *failureMonitor
}

// connect loads the configuration and builds a client. Flags given on the
// command line take precedence over the configuration file.
func (o *options) connect(cmd *cobra.Command) (*session, error) {
	var cfg *config.Config
	if o.configPath != "" {
		loaded, diags := config.Load(o.configPath)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to load config: %w", diags)
		}
		cfg = loaded
	}

	logger, err := o.setupLogger(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	mon := &failureMonitor{}
	provider := otel.NewProvider("moustique", Version)

	b := client.NewClient().
		WithLogger(logger).
		WithMonitor(mon).
		WithMetrics(provider).
		WithTracing(provider)
	cfg.Apply(b)

	flags := cmd.Flags()
	if flags.Changed("host") {
		b.WithHost(o.host)
	}
	if flags.Changed("port") {
		b.WithPort(o.port)
	}
	if flags.Changed("name") {
		b.WithClientName(o.name)
	}
	if flags.Changed("username") || flags.Changed("password") {
		b.WithCredentials(o.username, o.password)
	}
	if flags.Changed("timeout") {
		b.WithTimeout(o.timeout)
	}

	c, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	logger.Debug("Client ready", zap.String("client", c.Name()), zap.String("url", c.BaseURL()))

	return &session{logger: logger, config: cfg, client: c, monitor: mon}, nil
}

func (o *options) setupLogger(cmd *cobra.Command, cfg *config.Config) (*zap.Logger, error) {
	level := strings.ToLower(o.logLevel)
	if !cmd.Flags().Changed("log-level") && cfg != nil && cfg.LogLevel != "" {
		level = strings.ToLower(cfg.LogLevel)
	}

	// Override log level based on flags
	if o.debug {
		level = "debug"
	} else if o.verbose && (level == "warn" || level == "error") {
		level = "info"
	}

	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zapLevel)
	zc.Development = o.debug

	return zc.Build()
}

// maxRetainedFailures bounds the errors a failureMonitor keeps between calls
// to Err. Later failures are only counted.
const maxRetainedFailures = 10

// failureMonitor collects the failures of fire-and-forget operations so a
// command can report them through its exit status. Failures seen after the
// operation's context was cancelled are shutdown noise and are ignored.
type failureMonitor struct {
	moustique.BaseMonitor

	mu      sync.Mutex
	errs    []error
	dropped int
}

func (m *failureMonitor) OnFailure(ctx context.Context, c moustique.Client, op string, err error) {
	if ctx != nil && ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.errs) >= maxRetainedFailures {
		m.dropped++
		return
	}
	m.errs = append(m.errs, fmt.Errorf("%s: %w", op, err))
}

// Err returns the failures seen since the last call, joined, and forgets them.
func (m *failureMonitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	errs := m.errs
	if m.dropped > 0 {
		errs = append(errs, fmt.Errorf("%d more failures", m.dropped))
	}

	m.errs = nil
	m.dropped = 0
	return errors.Join(errs...)
}
