// cmd/gateway/main.go
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/googlehim/thingsboard-gateway/internal/config"
	"github.com/googlehim/thingsboard-gateway/internal/gateway"
	"github.com/googlehim/thingsboard-gateway/internal/publisher"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: gateway <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}

	config.Normalize(cfg)

	logger := newLogger(cfg.Gateway.Log)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// ThingsBoard connection (shared by all units)
	// --------------------

	pub, err := publisher.Build(cfg.Gateway.MQTT, logger)
	if err != nil {
		log.Fatalf("publisher build failed: %v", err)
	}
	defer pub.Close()

	// --------------------
	// Build per-unit pipelines
	// --------------------

	var wg sync.WaitGroup

	for _, unit := range cfg.Gateway.Units {
		u, err := gateway.Build(unit, pub, logger)
		if err != nil {
			log.Fatalf("unit build failed (unit=%s): %v", unit.ID, err)
		}
		defer u.Close()

		if err := u.Serve(); err != nil {
			log.Fatalf("rpc subscribe failed (unit=%s): %v", unit.ID, err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			u.Run(ctx)
		}()

		logger.Info("unit started", "unit", unit.ID, "device", u.Device())
	}

	// --------------------
	// Block until SIGINT/SIGTERM
	// --------------------
	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
}

func newLogger(lc config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
