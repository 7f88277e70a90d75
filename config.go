package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Config holds the relay settings. Flags override the environment, which
// overrides the defaults.
type Config struct {
	ClientAddr string `env:"WSRELAY_CLIENT_ADDR" default:"0.0.0.0:8080"`
	AdminAddr  string `env:"WSRELAY_ADMIN_ADDR" default:"127.0.0.1:9000"`
	DebugAddr  string `env:"WSRELAY_DEBUG_ADDR"`

	PollInterval     time.Duration `env:"WSRELAY_POLL_INTERVAL" default:"200ms"`
	MaxHeaderBytes   int           `env:"WSRELAY_MAX_HEADER_BYTES" default:"8192"`
	HandshakeTimeout time.Duration `env:"WSRELAY_HANDSHAKE_TIMEOUT" default:"0s"`
	SendQueue        int           `env:"WSRELAY_SEND_QUEUE" default:"256"`
	MetricsTick      time.Duration `env:"WSRELAY_METRICS_TICK" default:"60s"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
}

func loadConfig(args []string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	fs := flag.NewFlagSet("wsrelay", flag.ContinueOnError)
	fs.StringVar(&cfg.ClientAddr, "addr", cfg.ClientAddr, "websocket client address")
	fs.StringVar(&cfg.AdminAddr, "admin-addr", cfg.AdminAddr, "admin notifier address")
	fs.StringVar(&cfg.DebugAddr, "debug-addr", cfg.DebugAddr, "debug http address (empty disables)")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "housekeeping interval")
	fs.IntVar(&cfg.MaxHeaderBytes, "max-header-bytes", cfg.MaxHeaderBytes, "largest accepted handshake (0 disables)")
	fs.DurationVar(&cfg.HandshakeTimeout, "handshake-timeout", cfg.HandshakeTimeout, "time allowed to complete the handshake (0 disables)")
	fs.IntVar(&cfg.SendQueue, "send-queue", cfg.SendQueue, "frames queued per client before dropping")
	fs.DurationVar(&cfg.MetricsTick, "metrics.tick", cfg.MetricsTick, "metrics: duration between reports (0 disables)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	switch {
	case cfg.ClientAddr == "":
		return errors.New("client address is required")
	case cfg.AdminAddr == "":
		return errors.New("admin address is required")
	case cfg.PollInterval <= 0:
		return fmt.Errorf("poll interval must be positive, got %s", cfg.PollInterval)
	case cfg.SendQueue <= 0:
		return fmt.Errorf("send queue must be positive, got %d", cfg.SendQueue)
	case cfg.MaxHeaderBytes < 0:
		return fmt.Errorf("max header bytes must not be negative, got %d", cfg.MaxHeaderBytes)
	case cfg.HandshakeTimeout < 0:
		return fmt.Errorf("handshake timeout must not be negative, got %s", cfg.HandshakeTimeout)
	case cfg.MetricsTick < 0:
		return fmt.Errorf("metrics tick must not be negative, got %s", cfg.MetricsTick)
	case cfg.LogFormat != "text" && cfg.LogFormat != "json":
		return fmt.Errorf("log format must be text or json, got %q", cfg.LogFormat)
	}
	return nil
}
