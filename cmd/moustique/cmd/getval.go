package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tsarna/moustique/pkg/moustique/transform"
)

func newGetValCommand(opts *options) *cobra.Command {
	var jq string

	cmd := &cobra.Command{
		Use:   "getval <name>",
		Short: "Read a named value",
		Long: `Read a value stored with putval and print the broker's record as JSON.

The --jq program receives the record, with the value name as $topic.

Examples:
  moustique getval /house/mode
  moustique getval /house/mode --jq .message`,
		Args: cobra.ExactArgs(1),
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

			name := args[0]
			value := s.client.GetVal(cmd.Context(), name)
			if err := s.monitor.Err(); err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}
			if value == nil {
				return fmt.Errorf("no value named %s", name)
			}

			return printResult(cmd.Context(), cmd.OutOrStdout(), query, value, name)
		},
	}

	cmd.Flags().StringVar(&jq, "jq", "", "jq program applied to the result")
	return cmd
}

func newGetValsCommand(opts *options) *cobra.Command {
	var jq string

	cmd := &cobra.Command{
		Use:   "getvals <regex>",
		Short: "Read every value whose name matches a regular expression",
		Long: `Read all values whose names match the regular expression and print them
as one JSON object keyed by name.

Examples:
  moustique getvals '^/house/'
  moustique getvals '^/sensors/' --jq 'map_values(.message)'`,
		Args: cobra.ExactArgs(1),
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

			pattern := args[0]
			values := s.client.GetValsByRegex(cmd.Context(), pattern)
			if err := s.monitor.Err(); err != nil {
				return fmt.Errorf("failed to read values: %w", err)
			}
			if values == nil {
				values = map[string]any{}
			}

			return printResult(cmd.Context(), cmd.OutOrStdout(), query, values, pattern)
		},
	}

	cmd.Flags().StringVar(&jq, "jq", "", "jq program applied to the result")
	return cmd
}

// compileQuery compiles source, or returns nil when it is empty.
func compileQuery(source string) (*transform.Query, error) {
	if source == "" {
		return nil, nil
	}
	return transform.Compile(source)
}

// printResult writes value as indented JSON, or each result of query on its
// own line when a query is given.
func printResult(ctx context.Context, w io.Writer, query *transform.Query, value any, topic string) error {
	if query == nil {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	}

	results, err := query.Apply(ctx, value, topic)
	if err != nil {
		return err
	}
	for _, result := range results {
		text, err := transform.Format(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, text)
	}
	return nil
}
