package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tsarna/moustique/pkg/moustique"
	"github.com/tsarna/moustique/pkg/moustique/poller"
	"github.com/tsarna/moustique/pkg/moustique/subutils"
	"github.com/tsarna/moustique/pkg/moustique/transform"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newSubscribeCommand(opts *options) *cobra.Command {
	var (
		interval time.Duration
		schedule string
		match    []string
		jq       string
		duration time.Duration
	)

	cmd := &cobra.Command{
		Use:   "subscribe <topic>...",
		Short: "Print messages published to topics",
		Long: `Subscribe to one or more topics and print every message picked up from
the broker as "topic<TAB>from<TAB>message", until interrupted.

--match keeps only messages whose own topic matches an MQTT-style pattern
("+" for one level, "#" for the rest). --jq runs a program on each message
body (parsed as JSON when possible) with the topic as $topic.

Examples:
  moustique subscribe /sensors/kitchen/temp
  moustique subscribe /alerts --jq 'select(.level == "warn") | .text'
  moustique subscribe /sensors/# --match '/sensors/+/temp' --for 1m`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := compileQuery(jq)
			if err != nil {
				return err
			}

			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.logger.Sync()

			pollOpts := s.config.PollerOptions(s.logger)
			if cmd.Flags().Changed("interval") {
				pollOpts = append(pollOpts, poller.WithInterval(interval))
			}
			if schedule != "" {
				pollOpts = append(pollOpts, poller.WithSchedule(schedule))
			}
			p, err := poller.New(s.client, pollOpts...)
			if err != nil {
				return err
			}

			var handler moustique.Handler = &printingHandler{out: cmd.OutOrStdout()}
			if query != nil {
				handler = transform.NewHandler(query, handler, s.logger)
			}
			if len(match) > 0 {
				handler = subutils.NewFilterHandler(handler, match...)
			}
			handler = subutils.NewNamedLoggingHandler(handler, s.logger, zapcore.DebugLevel, "subscribe")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			for _, topic := range args {
				s.client.Subscribe(ctx, topic, handler)
			}
			if err := s.monitor.Err(); err != nil {
				return fmt.Errorf("failed to subscribe: %w", err)
			}

			s.logger.Info("Listening for messages",
				zap.Strings("topics", args),
				zap.String("schedule", p.Schedule()))

			p.Run(ctx)

			s.logger.Info("Shutdown complete")
			if err := s.monitor.Err(); err != nil {
				return fmt.Errorf("failures while listening: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Second, "pickup interval")
	cmd.Flags().StringVar(&schedule, "schedule", "", "pickup cron schedule, overrides --interval")
	cmd.Flags().StringSliceVar(&match, "match", nil, "only print messages whose topic matches this pattern (repeatable)")
	cmd.Flags().StringVar(&jq, "jq", "", "jq program applied to each message")
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (default: run until interrupted)")

	return cmd
}

type printingHandler struct {
	mu  sync.Mutex
	out io.Writer
}

func (h *printingHandler) OnMessage(ctx context.Context, topic, message, from string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := fmt.Fprintf(h.out, "%s\t%s\t%s\n", topic, from, message)
	return err
}
