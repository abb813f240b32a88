// cmd/chaos/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"prestamos/internal/chaos"
	"prestamos/internal/config"
	"prestamos/internal/logging"
	"prestamos/internal/telemetry"
)

func main() {
	os.Exit(run())
}

// run returns 1 when the game day could not complete and 2 when a
// hypothesis did not hold.
func run() int {
	cfg := config.Load()
	logger, _, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, "prestamos-chaos", cfg.OTLPEndpoint)
	if err != nil {
		logger.Error("telemetry setup", zap.Error(err))
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(flushCtx)
	}()

	today := time.Now().UTC()
	engine := chaos.NewEngine(logger)
	engine.Register(chaos.StandardExperiments(func() *chaos.Environment {
		return chaos.NewEnvironment(logger)
	}, today)...)

	gameDay := chaos.GameDay{
		Name:      "Supervisor failure semantics",
		Date:      today,
		Scenarios: engine.Experiments(),
		Pause:     cfg.ChaosPause,
	}

	held, err := engine.ExecuteGameDay(ctx, gameDay, os.Stdout)
	if err != nil {
		logger.Error("game day interrupted", zap.Error(err))
		return 1
	}
	if !held {
		return 2
	}
	return 0
}
