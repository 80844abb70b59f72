package internal

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/tradewars/config"
	"github.com/vadiminshakov/tradewars/internal/domain"
	"github.com/vadiminshakov/tradewars/internal/scheduler"
	"github.com/vadiminshakov/tradewars/internal/services/competition"
	"github.com/vadiminshakov/tradewars/internal/services/pricer"
	"github.com/vadiminshakov/tradewars/internal/services/round"
	"github.com/vadiminshakov/tradewars/internal/storage/arena"
	"github.com/vadiminshakov/tradewars/internal/storage/kv"
	"github.com/vadiminshakov/tradewars/internal/storage/tradejournal"
	"github.com/vadiminshakov/tradewars/internal/web"
)

// Arena wires the competition: storage, prices, oracle, rounds, schedule and HTTP.
type Arena struct {
	Config config.Config

	store   kv.Store
	prices  *pricer.CachedSource
	journal *tradejournal.WALStore
	repo    *arena.Repository
	clock   *competition.Clock
	engine  *round.Engine
	server  *web.Server
	logger  *zap.Logger
}

// NewArena builds every service from the configuration.
func NewArena(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Arena, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	prices, err := NewPriceSource(ctx, cfg, logger)
	if err != nil {
		_ = store.Close()
		return nil, errors.Wrap(err, "failed to create price source")
	}

	a := &Arena{
		Config:  cfg,
		store:   store,
		prices:  prices,
		journal: newJournal(cfg, logger),
		logger:  logger,
	}
	a.repo = newRepository(store, cfg, logger)
	a.clock = newClock(a.repo, cfg, logger)

	// a nil journal must stay a nil interface
	var journal round.Journal
	var stream web.TradeStream
	if a.journal != nil {
		journal = a.journal
		stream = a.journal
	}

	a.engine = round.NewEngine(
		prices,
		a.clock,
		a.repo,
		newOracle(cfg, logger),
		newPromptBuilder(logger),
		journal,
		roundOptions(cfg),
		logger.Named("round"),
	)

	a.server = web.NewServer(cfg.HTTPAddr, web.Deps{
		Store:  guardedRepository{Repository: a.repo, engine: a.engine},
		Clock:  guardedClock{Clock: a.clock, engine: a.engine},
		Prices: prices,
		Rounds: a.engine,
		Trades: stream,

		CORSOrigins: cfg.CORSOrigins,
	}, logger.Named("http"))

	return a, nil
}

// guardedRepository routes roster writes through the round lock.
type guardedRepository struct {
	*arena.Repository
	engine *round.Engine
}

func (g guardedRepository) SaveBots(ctx context.Context, bots []domain.Bot) error {
	return g.engine.SaveBots(ctx, bots)
}

// guardedClock routes reset checks through the round lock.
type guardedClock struct {
	*competition.Clock
	engine *round.Engine
}

func (g guardedClock) MaybeReset(ctx context.Context, now time.Time, quote *domain.PriceQuote) (competition.ResetResult, error) {
	return g.engine.MaybeReset(ctx, now, quote)
}

// Engine returns the round engine.
func (a *Arena) Engine() *round.Engine { return a.engine }

// Server returns the HTTP server.
func (a *Arena) Server() *web.Server { return a.server }

// Run starts the schedule and the HTTP server and blocks until ctx is cancelled.
func (a *Arena) Run(ctx context.Context) error {
	sched := scheduler.New(ctx, a.engine, a.engine, a.prices, a.Config.Location, a.logger.Named("scheduler"))
	if err := sched.RegisterAll(a.Config.RoundSchedule, a.Config.ResetSchedule); err != nil {
		return err
	}

	// catch up on a day boundary missed while stopped
	sched.ResetNow()
	sched.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(a.Config.AutocertDomains) > 0 {
			return a.server.StartWithAutoTLS(gctx, a.Config.AutocertDomains, a.Config.AutocertCacheDir)
		}
		return a.server.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		sched.Stop()
		return nil
	})

	a.logger.Info("arena running",
		zap.String("price_source", a.Config.PriceSource),
		zap.String("storage", a.Config.StorageBackend),
		zap.String("round_schedule", a.Config.RoundSchedule),
		zap.String("timezone", a.Config.Location.String()),
	)

	return g.Wait()
}

// Close releases the cache, journal and store.
func (a *Arena) Close() error {
	a.prices.Close()

	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Error("failed to close trade journal", zap.Error(err))
		}
	}
	return errors.Wrap(a.store.Close(), "close store")
}
