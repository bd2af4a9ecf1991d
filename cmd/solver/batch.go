package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"solver/internal/batch"
	"solver/internal/domain"
	"solver/internal/logging"
	"solver/internal/orchestrator"
)

func (c *cli) newBatchCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "batch <glob>",
		Short: "Solve every query in the matching files",
		Long: `Solve every query in the files matching a glob ("**" crosses directories).

Files ending in .jsonl hold one {"query": "..."} object per line. Other files
hold one query per line; blank lines and lines starting with # are skipped.
One JSON report per query is written, in input order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := batch.Collect(args[0])
			if err != nil {
				return err
			}
			rt, err := c.buildRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			var w io.Writer = c.stdout
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runner := batch.NewRunner(rt.orchestrator, rt.cfg.Batch.Concurrency, logging.NewComponentLogger("batch"))
			runner.OnResult = func(done, total int, res batch.Result) {
				status := green(res.Status)
				if res.Status != orchestrator.StatusDone {
					status = red(string(res.Abort.Reason))
				}
				fmt.Fprintf(c.stderr, "[%d/%d] %s:%d %s\n", done, total, res.Source, res.Line, status)
			}

			results, summary, runErr := runner.Run(ctx, jobs)
			if err := batch.WriteJSONL(w, results); err != nil {
				return err
			}
			printSummary(c.stderr, summary)
			if runErr != nil {
				return runErr
			}
			if out != "" && out != "-" {
				fmt.Fprintf(c.stderr, "wrote %d result(s) to %s\n", len(results), out)
			}
			return nil
		},
	}
	cmd.Flags().Int("concurrency", 4, "Queries solved at once")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write JSONL results to this file instead of stdout")
	return cmd
}

func printSummary(w io.Writer, s batch.Summary) {
	fmt.Fprintf(w, "%s %d solved, %d aborted of %d\n", bold("summary:"), s.Solved, s.Aborted, s.Total)
	reasons := make([]string, 0, len(s.ByReason))
	for reason := range s.ByReason {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(w, "  %s %d\n", reason, s.ByReason[domain.AbortReason(reason)])
	}
}
