// Package config handles loading and validating the kubevox configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/PatrickKalkman/kubevox/internal/llama"
	"github.com/PatrickKalkman/kubevox/internal/speech"
)

// Config is the root configuration for kubevox.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Llama   llama.Config  `mapstructure:"llama"`
	Kube    KubeConfig    `mapstructure:"kube"`
	Speech  speech.Config `mapstructure:"speech"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// GatewayConfig configures the HTTP gateway used by serve mode.
type GatewayConfig struct {
	Port int `mapstructure:"port"`
}

// KubeConfig holds cluster access settings.
type KubeConfig struct {
	// Kubeconfig is the path to the kubeconfig file; empty uses the
	// standard loading rules (KUBECONFIG, then ~/.kube/config).
	Kubeconfig string `mapstructure:"kubeconfig"`
}

// OutputConfig selects how replies are delivered.
type OutputConfig struct {
	// Mode is "text" (print) or "voice" (ElevenLabs synthesis).
	Mode string `mapstructure:"mode"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./kubevox.yaml, ./configs/kubevox.yaml,
// /etc/kubevox/kubevox.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("gateway.port", 8090)
	v.SetDefault("llama.host", "localhost")
	v.SetDefault("llama.port", 8080)
	v.SetDefault("llama.n_ctx", 2048)
	v.SetDefault("llama.n_gpu_layers", 0)
	v.SetDefault("llama.seed", -1)
	v.SetDefault("llama.temperature", 0.7)
	v.SetDefault("llama.top_p", 0.9)
	v.SetDefault("llama.max_tokens", 2048)
	v.SetDefault("kube.kubeconfig", "")
	v.SetDefault("speech.whisper_endpoint", "http://localhost:8000/v1/audio/transcriptions")
	v.SetDefault("speech.language", "")
	v.SetDefault("speech.queue_size", 4)
	v.SetDefault("speech.elevenlabs.api_key", "${ELEVENLABS_API_KEY}")
	v.SetDefault("speech.elevenlabs.voice_id", "")
	v.SetDefault("speech.elevenlabs.model_id", "")
	v.SetDefault("output.mode", "text")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("kubevox")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/kubevox")
	}

	// Environment variables: KUBEVOX_LLAMA_PORT, KUBEVOX_OUTPUT_MODE, etc.
	v.SetEnvPrefix("KUBEVOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional; env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${ELEVENLABS_API_KEY}")
	cfg.Speech.ElevenLabs.APIKey = resolveEnvRef(cfg.Speech.ElevenLabs.APIKey)

	if cfg.Output.Mode != "text" && cfg.Output.Mode != "voice" {
		return nil, fmt.Errorf("invalid output mode %q (want \"text\" or \"voice\")", cfg.Output.Mode)
	}

	return &cfg, nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
		return ""
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
