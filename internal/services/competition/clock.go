// Package competition runs the daily competition cycle: once per calendar day the
// leading bot is archived as winner and every portfolio starts over.
package competition

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/tradewars/internal/domain"
	"github.com/vadiminshakov/tradewars/internal/storage/arena"
)

// DateLayout format of the reset marker, e.g. "Mon Jan 02 2006".
const DateLayout = "Mon Jan 02 2006"

// UnknownDate is archived as the date of a winner when no marker was ever written.
const UnknownDate = "Unknown"

// DefaultReferenceQuote prices used for winner valuation when no live quote is available.
var DefaultReferenceQuote = domain.PriceQuote{
	BTC: decimal.NewFromInt(68000),
	ETH: decimal.NewFromInt(2000),
}

// State of the competition relative to today.
type State string

const (
	StateCurrent State = "CURRENT"
	StateStale   State = "STALE"
)

// Status reports the reset marker against today.
type Status struct {
	State     State  `json:"state"`
	LastReset string `json:"last_reset"`
	Today     string `json:"today"`
}

// ResetResult describes what MaybeReset did.
type ResetResult struct {
	Reset  bool
	Winner *domain.WinnerRecord
}

// Clock decides when the competition day rolls over.
type Clock struct {
	repo      *arena.Repository
	reference domain.PriceQuote
	loc       *time.Location
	logger    *zap.Logger
	mu        sync.Mutex
}

// NewClock creates a clock. A zero reference uses DefaultReferenceQuote, a nil location UTC.
func NewClock(repo *arena.Repository, reference domain.PriceQuote, loc *time.Location, logger *zap.Logger) *Clock {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if reference.Validate() != nil {
		reference = DefaultReferenceQuote
	}
	return &Clock{
		repo:      repo,
		reference: reference,
		loc:       loc,
		logger:    logger,
	}
}

// DateKey returns the competition day of now.
func (c *Clock) DateKey(now time.Time) string {
	return now.In(c.loc).Format(DateLayout)
}

// Status compares the stored marker with today without changing anything.
func (c *Clock) Status(ctx context.Context, now time.Time) (Status, error) {
	marker, _, err := c.repo.LastReset(ctx)
	if err != nil {
		return Status{}, err
	}

	status := Status{State: StateStale, LastReset: marker, Today: c.DateKey(now)}
	if marker == status.Today {
		status.State = StateCurrent
	}
	return status, nil
}

// MaybeReset archives the winner and resets the competition when the marker is not today.
// quote values the portfolios; nil falls back to the reference prices.
// Concurrent callers are serialized, so only one of them archives.
func (c *Clock) MaybeReset(ctx context.Context, now time.Time, quote *domain.PriceQuote) (ResetResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	today := c.DateKey(now)

	marker, hasMarker, err := c.repo.LastReset(ctx)
	if err != nil {
		return ResetResult{}, errors.Wrap(err, "check reset marker")
	}
	if hasMarker && marker == today {
		return ResetResult{}, nil
	}

	logger := c.logger.With(zap.String("previous", marker), zap.String("today", today))

	bots, ok, err := c.repo.Bots(ctx)
	if err != nil {
		return ResetResult{}, errors.Wrap(err, "load roster for reset")
	}

	var result ResetResult
	if ok {
		valuation := c.valuationQuote(quote)
		if winner, value, found := SelectWinner(bots, valuation); found {
			date := marker
			if !hasMarker {
				date = UnknownDate
			}
			record := domain.WinnerRecord{Date: date, Winner: winner.Name, Value: value}
			if err := c.repo.AppendWinner(ctx, record); err != nil {
				return ResetResult{}, errors.Wrap(err, "archive winner")
			}
			result.Winner = &record
			logger.Info("competition winner archived",
				zap.String("winner", record.Winner),
				zap.String("value", record.Value.StringFixed(2)),
			)
		}
	}

	if err := c.repo.ResetBots(ctx); err != nil {
		return result, errors.Wrap(err, "reset roster")
	}
	if err := c.repo.ClearTrades(ctx); err != nil {
		return result, errors.Wrap(err, "clear trades")
	}
	if err := c.repo.ClearPriceHistory(ctx); err != nil {
		return result, errors.Wrap(err, "clear price history")
	}
	if err := c.repo.SetLastReset(ctx, today); err != nil {
		return result, errors.Wrap(err, "write reset marker")
	}

	result.Reset = true
	logger.Info("competition reset")

	return result, nil
}

func (c *Clock) valuationQuote(quote *domain.PriceQuote) domain.PriceQuote {
	if quote == nil {
		c.logger.Warn("no live quote for winner valuation, using reference prices",
			zap.String("reference", c.reference.String()))
		return c.reference
	}
	if err := quote.Validate(); err != nil {
		c.logger.Warn("invalid live quote for winner valuation, using reference prices",
			zap.Error(err), zap.String("reference", c.reference.String()))
		return c.reference
	}
	return *quote
}

// SelectWinner returns the bot with the highest value. The first one wins ties.
// found is false for an empty roster.
func SelectWinner(bots []domain.Bot, quote domain.PriceQuote) (domain.Bot, decimal.Decimal, bool) {
	if len(bots) == 0 {
		return domain.Bot{}, decimal.Zero, false
	}

	best := bots[0]
	bestValue := best.Value(quote)
	for _, b := range bots[1:] {
		if v := b.Value(quote); v.GreaterThan(bestValue) {
			best, bestValue = b, v
		}
	}
	return best, bestValue, true
}
