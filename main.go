package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, "wsrelay:", err)
		os.Exit(2)
	}
	initLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		slog.Error("relay failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config) error {
	r, err := listen(cfg, clockwork.NewRealClock())
	if err != nil {
		return err
	}
	return r.serve(ctx)
}
