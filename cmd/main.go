// Command tradewars runs the LLM trading bot arena: bots trade BTC and ETH
// against live prices every round and the best portfolio wins the day.
//
// Usage:
//
//	tradewars --config tradewars.yaml
//	tradewars --setup (interactive wizard, then start)
//
// Environment variables:
//
//	OPENAI_API_KEY   LLM API key
//	REDIS_URL        selects the redis storage backend
//	TRADEWARS_*      overrides of the yaml settings
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vadiminshakov/tradewars/config"
	"github.com/vadiminshakov/tradewars/internal"
	"github.com/vadiminshakov/tradewars/internal/setup"
)

func main() {
	opts, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	if opts.Setup {
		if opts.ConfigPath == "" {
			opts.ConfigPath = setup.DefaultOutput
		}
		if err := setup.RunTUI(opts.ConfigPath); err != nil {
			log.Fatal(err)
		}
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	arena, err := internal.NewArena(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build arena", zap.Error(err))
	}
	defer func() {
		if err := arena.Close(); err != nil {
			logger.Error("failed to close arena", zap.Error(err))
		}
	}()

	if err := arena.Run(ctx); err != nil {
		logger.Error("arena stopped with error", zap.Error(err))
		return
	}
	logger.Info("arena stopped")
}
