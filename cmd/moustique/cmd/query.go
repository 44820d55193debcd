package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tsarna/moustique/pkg/moustique/client"
)

func newQueryCommand(opts *options) *cobra.Command {
	var (
		pwd string
		jq  string
	)

	cmd := &cobra.Command{
		Use:   "query <endpoint>",
		Short: "Run a password protected broker query",
		Long: fmt.Sprintf(`Run one of the broker's administrative queries and print the result as JSON.

Endpoints: %s

Examples:
  moustique query version --pwd secret
  moustique query clients --pwd secret --jq 'keys'`, strings.Join(client.QueryEndpoints, ", ")),
		Args:      cobra.ExactArgs(1),
		ValidArgs: client.QueryEndpoints,
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := strings.ToUpper(args[0])
			if !slices.Contains(client.QueryEndpoints, endpoint) {
				return fmt.Errorf("unknown endpoint %q, expected one of %s", args[0], strings.Join(client.QueryEndpoints, ", "))
			}

			query, err := compileQuery(jq)
			if err != nil {
				return err
			}

			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.logger.Sync()

			value, err := s.client.Get(cmd.Context(), endpoint, pwd)
			if err != nil {
				return err
			}
			if err := s.monitor.Err(); err != nil {
				return fmt.Errorf("query %s failed: %w", endpoint, err)
			}

			return printResult(cmd.Context(), cmd.OutOrStdout(), query, value, endpoint)
		},
	}

	cmd.Flags().StringVar(&pwd, "pwd", "", "broker password")
	cmd.Flags().StringVar(&jq, "jq", "", "jq program applied to the result")
	_ = cmd.MarkFlagRequired("pwd")

	return cmd
}

func newWhoamiCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the client identity and broker URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer s.logger.Sync()

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s.client.Name(), s.client.BaseURL())
			return nil
		},
	}
}
