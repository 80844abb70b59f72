// Package scheduler drives trading rounds and the midnight competition reset from cron specs.
package scheduler

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vadiminshakov/tradewars/internal/domain"
	"github.com/vadiminshakov/tradewars/internal/services/competition"
	"github.com/vadiminshakov/tradewars/internal/services/pricer"
	"github.com/vadiminshakov/tradewars/internal/services/round"
)

const (
	// DefaultRoundSpec runs a round every minute.
	DefaultRoundSpec = "@every 1m"
	// DefaultResetSpec fires at midnight of the competition time zone.
	DefaultResetSpec = "0 0 0 * * *"
)

// RoundRunner runs one trading round.
type RoundRunner interface {
	RunRound(ctx context.Context) (*round.Report, error)
}

// Resetter rolls the competition day over.
type Resetter interface {
	MaybeReset(ctx context.Context, now time.Time, quote *domain.PriceQuote) (competition.ResetResult, error)
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	rounds RoundRunner
	clock  Resetter
	source pricer.Source
	logger *zap.Logger
}

// New creates a scheduler whose jobs run with ctx. Specs are evaluated in loc.
func New(ctx context.Context, rounds RoundRunner, clock Resetter, source pricer.Source, loc *time.Location, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}

	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		ctx:    ctx,
		rounds: rounds,
		clock:  clock,
		source: source,
		logger: logger,
	}
}

// RegisterAll registers the round and reset jobs. An empty spec disables that job.
func (s *Scheduler) RegisterAll(roundSpec, resetSpec string) error {
	if roundSpec != "" {
		if _, err := s.cron.AddFunc(roundSpec, s.RunRoundNow); err != nil {
			return errors.Wrap(err, "register round task")
		}
	}
	if resetSpec != "" && s.clock != nil {
		if _, err := s.cron.AddFunc(resetSpec, s.ResetNow); err != nil {
			return errors.Wrap(err, "register reset task")
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop stops scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunRoundNow executes a trading round immediately.
func (s *Scheduler) RunRoundNow() {
	if s.ctx.Err() != nil {
		return
	}

	report, err := s.rounds.RunRound(s.ctx)
	switch {
	case errors.Is(err, round.ErrRoundInProgress):
		s.logger.Info("round skipped, previous round still running")
	case err != nil:
		s.logger.Error("round failed", zap.Error(err))
	default:
		s.logger.Debug("round finished", zap.String("round", report.ID))
	}
}

// ResetNow runs the daily reset check, valuing bots at the live quote when it can be fetched.
func (s *Scheduler) ResetNow() {
	if s.ctx.Err() != nil || s.clock == nil {
		return
	}

	var live *domain.PriceQuote
	if s.source != nil {
		quote, err := s.source.Fetch(s.ctx)
		if err != nil {
			s.logger.Warn("price fetch for reset failed", zap.Error(err))
		} else {
			live = &quote
		}
	}

	res, err := s.clock.MaybeReset(s.ctx, time.Now(), live)
	if err != nil {
		s.logger.Error("daily reset failed", zap.Error(err))
		return
	}
	if res.Reset {
		s.logger.Info("daily reset done")
	}
}
