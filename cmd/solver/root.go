package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"solver/internal/agents"
	"solver/internal/config"
	"solver/internal/llm"
	"solver/internal/logging"
	"solver/internal/observability"
	"solver/internal/orchestrator"
	"solver/internal/sandbox"
)

// flagKeys maps config keys to the flags that override them. A flag may set
// several keys.
var flagKeys = map[string]string{
	"llm.provider":             "provider",
	"models.planner":           "model",
	"models.generator":         "model",
	"models.critic":            "model",
	"models.synthesizer":       "model",
	"orchestrator.max_retries": "max-retries",
	"log.level":                "log-level",
	"log.format":               "log-format",
	"server.addr":              "addr",
	"batch.concurrency":        "concurrency",
}

// cli holds state shared by every subcommand.
type cli struct {
	stdout     io.Writer
	stderr     io.Writer
	configFile string
	// isTerminal reports whether stdout is an interactive terminal.
	isTerminal func() bool
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr, isTerminal: stdoutIsTerminal}

	root := &cobra.Command{
		Use:   "solver",
		Short: "Solve arithmetic word problems with planned, sandboxed, reviewed steps",
		Long: fmt.Sprintf(`%s

Each query is split into steps by a planner model. Every step is turned into a
small arithmetic program, run in a restricted evaluator and checked by a critic
model, with bounded retries. The accepted values are then summarised.

%s
  solver solve "A farmer has 3 baskets of 12 apples..."
  solver eval "3 * (12 - 5)"
  solver eval "total * 2" --bind total=21
  solver batch "queries/**/*.txt" --out results.jsonl
  solver serve --addr :8080
  solver config show`,
			bold("solver "+appVersion()),
			bold("EXAMPLES:")),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configFile, "config", "c", "", "Config file (default ./solver.yaml or ~/.solver/config.yaml)")
	flags.String("provider", "", "Completion provider: openrouter, openai or mock")
	flags.StringP("model", "m", "", "Model for every agent role")
	flags.Int("max-retries", 0, "Attempts allowed per step")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")

	root.AddCommand(c.newSolveCommand())
	root.AddCommand(c.newEvalCommand())
	root.AddCommand(c.newServeCommand())
	root.AddCommand(c.newBatchCommand())
	root.AddCommand(c.newConfigCommand())
	root.AddCommand(c.newVersionCommand())
	return root
}

// loadConfig reads configuration with cmd's flags layered on top.
func (c *cli) loadConfig(cmd *cobra.Command) (config.Config, config.Metadata, error) {
	opts := []config.Option{config.WithFlags(cmd.Flags(), flagKeys)}
	if c.configFile != "" {
		opts = append(opts, config.WithFile(c.configFile))
	}
	cfg, meta, err := config.Load(opts...)
	if err != nil {
		return config.Config{}, config.Metadata{}, err
	}
	logging.Configure(observability.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: c.stderr})
	return cfg, meta, nil
}

// runtime is the wired solver stack for one command.
type runtime struct {
	cfg          config.Config
	orchestrator *orchestrator.Orchestrator
	tracer       *observability.TracerProvider
	logger       logging.Logger
}

func (c *cli) buildRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, meta, err := c.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := logging.NewComponentLogger("cli")
	if meta.ProviderFallback {
		logger.Warn("no API key configured; using the offline mock provider")
	}

	tracing := cfg.Tracing
	if tracing.ServiceVersion == "" || tracing.ServiceVersion == "dev" {
		tracing.ServiceVersion = appVersion()
	}
	tracer, err := observability.NewTracerProvider(tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	provider, err := llm.Build(cfg.LLM, logging.NewComponentLogger("llm"))
	if err != nil {
		_ = tracer.Shutdown(context.Background())
		return nil, fmt.Errorf("init provider: %w", err)
	}
	team := agents.NewTeam(provider, cfg.Models, cfg.Prompts.FeedbackTokens,
		agents.WithLogger(logging.NewComponentLogger("agents")))

	orch, err := orchestrator.New(cfg.Orchestrator, orchestrator.Dependencies{
		Sandbox: sandbox.NewEvaluator(cfg.Sandbox),
		Tracer:  tracer,
		Logger:  logging.NewComponentLogger("orchestrator"),
	}.WithTeam(team))
	if err != nil {
		_ = tracer.Shutdown(context.Background())
		return nil, err
	}
	return &runtime{cfg: cfg, orchestrator: orch, tracer: tracer, logger: logger}, nil
}

// close flushes pending spans.
func (r *runtime) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.tracer.Shutdown(ctx); err != nil {
		r.logger.Warn("tracer shutdown: %v", err)
	}
}

func (c *cli) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(c.stdout, appVersion())
		},
	}
}
