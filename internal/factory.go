package internal

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/tradewars/config"
	"github.com/vadiminshakov/tradewars/internal/clients"
	"github.com/vadiminshakov/tradewars/internal/services/competition"
	"github.com/vadiminshakov/tradewars/internal/services/promptbuilder"
	"github.com/vadiminshakov/tradewars/internal/services/round"
	"github.com/vadiminshakov/tradewars/internal/storage/arena"
	"github.com/vadiminshakov/tradewars/internal/storage/kv"
	"github.com/vadiminshakov/tradewars/internal/storage/tradejournal"
)

// openStore opens the configured key-value backend.
func openStore(ctx context.Context, cfg config.Config) (kv.Store, error) {
	store, err := kv.Open(ctx, cfg.StorageBackend, cfg.StorageDSN)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s store", cfg.StorageBackend)
	}
	return store, nil
}

// newOracle creates the LLM client. A missing key is not fatal: rounds then settle every bot as HOLD.
func newOracle(cfg config.Config, logger *zap.Logger) clients.DecisionOracle {
	if cfg.LLM.APIKey == "" {
		logger.Warn("OPENAI_API_KEY is not set, every decision will be unavailable")
	}
	return clients.NewOpenAICompatibleClient(cfg.LLM, logger.Named("llm"))
}

// newJournal opens the trade journal. Journal failures only disable streaming.
func newJournal(cfg config.Config, logger *zap.Logger) *tradejournal.WALStore {
	journal, err := tradejournal.NewWALStore(cfg.JournalDir)
	if err != nil {
		logger.Warn("trade journal disabled", zap.String("dir", cfg.JournalDir), zap.Error(err))
		return nil
	}
	return journal
}

func newRepository(store kv.Store, cfg config.Config, logger *zap.Logger) *arena.Repository {
	return arena.NewRepository(store, cfg.Limits, cfg.Roster, logger.Named("arena"))
}

func newClock(repo *arena.Repository, cfg config.Config, logger *zap.Logger) *competition.Clock {
	return competition.NewClock(repo, cfg.Reference, cfg.Location, logger.Named("clock"))
}

func roundOptions(cfg config.Config) round.Options {
	return round.Options{
		DecisionTimeout: cfg.DecisionTimeout,
		MaxParallel:     cfg.MaxParallelDecisions,
	}
}

func newPromptBuilder(logger *zap.Logger) *promptbuilder.PromptBuilder {
	return promptbuilder.NewPromptBuilder(logger.Named("prompts"))
}
