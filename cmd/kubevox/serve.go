package main

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/PatrickKalkman/kubevox/internal/gateway"
	"github.com/PatrickKalkman/kubevox/internal/health"
)

func newServeCmd(configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the assistant over HTTP",
		Long: `Run the assistant as a daemon: a gateway serving POST /query plus a
health server with /healthz and /readyz. Readiness flips only after the
llama server passes its health probe.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configFile)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			healthServer := health.New(a.cfg.Server.HealthPort)
			gw := gateway.New(a.cfg.Gateway.Port, a.assistant.ProcessQuery)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return healthServer.ListenAndServe(ctx) })
			g.Go(func() error { return gw.ListenAndServe(ctx) })

			message, err := a.checkHealth(ctx)
			if err != nil {
				cancel()
				_ = g.Wait()
				return err
			}
			healthServer.SetReady(true, message)

			slog.Info("kubevox ready",
				"gateway_port", a.cfg.Gateway.Port,
				"health_port", a.cfg.Server.HealthPort)

			err = g.Wait()
			slog.Info("kubevox stopped")
			return err
		},
	}
	return cmd
}
