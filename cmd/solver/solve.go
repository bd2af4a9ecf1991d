package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"solver/internal/domain"
	"solver/internal/orchestrator"
)

func (c *cli) newSolveCommand() *cobra.Command {
	var (
		asJSON bool
		plain  bool
		quiet  bool
	)
	cmd := &cobra.Command{
		Use:   "solve <query...>",
		Short: "Solve one arithmetic word problem",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.buildRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			query := domain.Query(strings.TrimSpace(strings.Join(args, " ")))
			var opts []orchestrator.RunOption
			if !quiet && !asJSON {
				opts = append(opts, orchestrator.WithObserver(&progressPrinter{w: c.stderr}))
			}
			answer, runErr := rt.orchestrator.Run(ctx, query, opts...)

			if asJSON {
				enc := json.NewEncoder(c.stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(orchestrator.NewReport(query, answer, runErr)); err != nil {
					return fmt.Errorf("encode report: %w", err)
				}
			}
			if runErr != nil {
				var abort *domain.AbortError
				if !asJSON && errors.As(runErr, &abort) {
					printAbort(c.stderr, abort)
				}
				return &ExitCodeError{Code: exitAborted, Err: runErr}
			}
			if asJSON {
				return nil
			}

			if !plain && c.isTerminal() {
				fmt.Fprint(c.stdout, renderMarkdown(answer.Text))
				return nil
			}
			fmt.Fprintln(c.stdout, answer.Text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full run report as JSON")
	cmd.Flags().BoolVar(&plain, "plain", false, "Print the answer without markdown rendering")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Hide step progress")
	return cmd
}
