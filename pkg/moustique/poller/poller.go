// Package poller drives a client's Tick on a cron schedule.
//
// The broker only delivers messages when the client asks for them, so something
// has to call Tick periodically. Overlapping runs are skipped, which keeps the
// client effectively single-threaded even when a pickup outlasts the interval.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultSchedule picks up pending messages once per second.
const DefaultSchedule = "@every 1s"

// Ticker is the part of moustique.Client the poller needs.
type Ticker interface {
	Tick(ctx context.Context)
}

type Poller struct {
	ticker   Ticker
	schedule string
	logger   *zap.Logger
	location *time.Location
	cron     *cron.Cron

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

type Option func(*Poller)

// WithSchedule sets a cron spec. Descriptors such as "@every 500ms" and
// specs with an optional leading seconds field are accepted.
func WithSchedule(spec string) Option {
	return func(p *Poller) {
		p.schedule = spec
	}
}

// WithInterval polls at a fixed interval. Intervals under a second are
// rounded up to one second by the scheduler.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.schedule = fmt.Sprintf("@every %s", d)
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithLocation sets the time zone for calendar specs. Default is Local.
func WithLocation(loc *time.Location) Option {
	return func(p *Poller) {
		if loc != nil {
			p.location = loc
		}
	}
}

// New creates a stopped poller for ticker.
func New(ticker Ticker, opts ...Option) (*Poller, error) {
	if ticker == nil {
		return nil, fmt.Errorf("ticker is required")
	}

	p := &Poller{
		ticker:   ticker,
		schedule: DefaultSchedule,
		logger:   zap.NewNop(),
		location: time.Local,
	}
	for _, opt := range opts {
		opt(p)
	}

	parser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	sched, err := parser.Parse(p.schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", p.schedule, err)
	}

	cronLogger := NewZapCronLogger(p.logger)
	p.cron = cron.New(
		cron.WithLogger(cronLogger),
		cron.WithParser(parser),
		cron.WithLocation(p.location),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	p.cron.Schedule(sched, cron.FuncJob(p.tick))

	p.ctx, p.cancel = context.WithCancel(context.Background())

	return p, nil
}

// Schedule returns the cron spec in use.
func (p *Poller) Schedule() string {
	return p.schedule
}

func (p *Poller) tick() {
	p.mu.Lock()
	ctx := p.ctx
	p.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	p.logger.Debug("Polling broker")
	p.ticker.Tick(ctx)
}

// Start begins polling in the background. Ticks run with ctx until Stop.
// Starting a running poller has no effect.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		p.logger.Warn("Poller already started")
		return
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.logger.Info("Starting poller", zap.String("schedule", p.schedule))
	p.cron.Start()
}

// Stop halts the schedule and cancels the context of a tick in progress. The
// returned context is done once that tick has returned.
func (p *Poller) Stop() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.Info("Stopping poller")
	done := p.cron.Stop()
	p.cancel()
	p.running = false
	return done
}

// Run polls until ctx is done, then waits for the last tick to finish.
func (p *Poller) Run(ctx context.Context) {
	p.Start(ctx)
	<-ctx.Done()
	<-p.Stop().Done()
}
