package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/PatrickKalkman/kubevox/internal/assistant"
	"github.com/PatrickKalkman/kubevox/internal/config"
	"github.com/PatrickKalkman/kubevox/internal/executor"
	"github.com/PatrickKalkman/kubevox/internal/kubeops"
	"github.com/PatrickKalkman/kubevox/internal/llama"
	"github.com/PatrickKalkman/kubevox/internal/registry"
)

// version is set at build time via ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "kubevox",
		Short:         "Voice and text assistant for Kubernetes clusters",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "",
		"path to config file (e.g. configs/kubevox.yaml)")

	root.AddCommand(
		newAskCmd(&configFile),
		newListenCmd(&configFile),
		newServeCmd(&configFile),
	)
	return root
}

// app holds the wired assistant stack shared by every command.
type app struct {
	cfg       *config.Config
	catalog   *registry.Catalog
	llama     *llama.Client
	assistant *assistant.Assistant
}

// newApp loads configuration, sets up logging, and builds the full pipeline:
// catalog with the cluster operations registered, completion client,
// executor, assistant. The catalog is complete before anything else sees it
// and is treated as read-only from here on.
func newApp(configFile string) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	config.SetupLogging(cfg.Logging)
	slog.Info("kubevox starting", "version", version)

	catalog := registry.NewCatalog()
	kubeops.New(cfg.Kube.Kubeconfig).Register(catalog)
	slog.Info("operations registered", "count", catalog.Len())

	client := llama.New(cfg.Llama, catalog)
	return &app{
		cfg:       cfg,
		catalog:   catalog,
		llama:     client,
		assistant: assistant.New(client, executor.New(catalog)),
	}, nil
}

// checkHealth probes the llama server and fails hard when it is not
// reachable. No session starts against an unhealthy backend.
func (a *app) checkHealth(ctx context.Context) (string, error) {
	healthy, message := a.llama.CheckHealth(ctx)
	if !healthy {
		return message, fmt.Errorf("llama server health check failed: %s", message)
	}
	slog.Info("llama server healthy", "url", a.cfg.Llama.BaseURL())
	return message, nil
}
