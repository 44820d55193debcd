package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPublishCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <topic> <message>",
		Short: "Publish a message to a topic",
		Long: `Publish a message to every client subscribed to the topic.

Examples:
  moustique publish /sensors/kitchen/temp 21.5
  moustique publish /alerts '{"level":"warn","text":"disk almost full"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.logger.Sync()

			topic, message := args[0], args[1]
			s.client.Publish(cmd.Context(), topic, message)
			if err := s.monitor.Err(); err != nil {
				return fmt.Errorf("failed to publish message: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Published to %s\n", topic)
			return nil
		},
	}
}

func newPutValCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "putval <name> <value>",
		Short: "Store a named value on the broker",
		Long: `Store a value under a name. The broker keeps the latest value, with the
time it was set and the client that set it.

Example:
  moustique putval /house/mode away`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.logger.Sync()

			name, value := args[0], args[1]
			s.client.PutVal(cmd.Context(), name, value)
			if err := s.monitor.Err(); err != nil {
				return fmt.Errorf("failed to store value: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "PutVal %s = %s\n", name, value)
			return nil
		},
	}
}
