package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"solver/internal/prompts"
	"solver/internal/sandbox"
)

func (c *cli) newEvalCommand() *cobra.Command {
	var (
		binds     []string
		showTrace bool
	)
	cmd := &cobra.Command{
		Use:   "eval <code>",
		Short: "Run a program in the arithmetic sandbox",
		Long: `Run a program in the arithmetic sandbox and print its value.

Use "-" to read the program from stdin. Bindings are made available as
variables, for example --bind step_1_result=36.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.loadConfig(cmd)
			if err != nil {
				return err
			}
			code := args[0]
			if code == "-" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read program: %w", err)
				}
				code = string(raw)
			}
			scope, err := parseBindings(binds)
			if err != nil {
				return err
			}

			outcome := sandbox.NewEvaluator(cfg.Sandbox).Evaluate(code, scope)
			if !outcome.OK() {
				fmt.Fprintf(c.stderr, "%s %s\n", red("rejected:"), outcome.Diagnostic())
				return &ExitCodeError{Code: exitAborted, Err: outcome.Failure}
			}
			fmt.Fprintln(c.stdout, prompts.FormatValue(outcome.Value))
			if showTrace {
				for _, name := range outcome.Trace.Names() {
					fmt.Fprintf(c.stdout, "%s = %s\n", name, prompts.FormatValue(outcome.Trace[name]))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&binds, "bind", nil, "Variable binding name=value (repeatable)")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "Print every variable after the run")
	return cmd
}

func parseBindings(binds []string) (sandbox.Scope, error) {
	scope := make(sandbox.Scope, len(binds))
	for _, bind := range binds {
		name, raw, ok := strings.Cut(bind, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid binding %q, want name=value", bind)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid binding %q: %w", bind, err)
		}
		scope[name] = value
	}
	return scope, nil
}
