package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"solver/internal/logging"
	"solver/internal/server"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the solver over HTTP",
		Long: `Serve the solver over HTTP.

  POST /solve          {"query": "..."} returns the run report
  POST /solve/stream   same, as Server-Sent Events
  GET  /solve/ws       websocket; send {"query": "..."} and read events
  GET  /healthz
  GET  /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := c.buildRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			srv, err := server.New(server.Config{
				Addr:           rt.cfg.Server.Addr,
				AllowedOrigins: rt.cfg.Server.AllowedOrigins,
				RequestTimeout: rt.cfg.Server.RequestTimeout,
				MaxQueryBytes:  rt.cfg.Server.MaxQueryBytes,
			}, server.Dependencies{
				Runner:   rt.orchestrator,
				Logger:   logging.NewComponentLogger("server"),
				Tracer:   rt.tracer,
				Gatherer: prometheus.DefaultGatherer,
				Version:  appVersion(),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- srv.Start()
			}()
			fmt.Fprintf(c.stderr, "%s listening on %s\n", green("solver"), rt.cfg.Server.Addr)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return <-errCh
		},
	}
	cmd.Flags().String("addr", ":8080", "Listen address")
	return cmd
}
