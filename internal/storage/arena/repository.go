// Package arena stores the competition aggregates (roster, trade log, price history,
// winners and the reset marker) as JSON documents in a kv.Store.
package arena

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/tradewars/internal/domain"
	"github.com/vadiminshakov/tradewars/internal/storage/kv"
)

// Logical keys.
const (
	KeyBots         = "tradewars:bots"
	KeyTrades       = "tradewars:trades"
	KeyPriceHistory = "tradewars:price_history"
	KeyWinners      = "tradewars:winners"
	KeyLastReset    = "tradewars:last_reset"
)

// Limits caps the length of each log.
type Limits struct {
	History int
	Trades  int
	Winners int
}

// DefaultLimits keeps 60 snapshots, 20 trades and 30 winners.
var DefaultLimits = Limits{History: 60, Trades: 20, Winners: 30}

func (l Limits) withDefaults() Limits {
	if l.History <= 0 {
		l.History = DefaultLimits.History
	}
	if l.Trades <= 0 {
		l.Trades = DefaultLimits.Trades
	}
	if l.Winners <= 0 {
		l.Winners = DefaultLimits.Winners
	}
	return l
}

// Repository reads and writes whole aggregates; writes are last-writer-wins.
type Repository struct {
	store  kv.Store
	limits Limits
	roster []domain.Bot
	logger *zap.Logger
}

// NewRepository wraps the store. An empty roster means domain.DefaultRoster.
func NewRepository(store kv.Store, limits Limits, roster []domain.Bot, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(roster) == 0 {
		roster = domain.DefaultRoster()
	}
	return &Repository{
		store:  store,
		limits: limits.withDefaults(),
		roster: domain.CloneRoster(roster),
		logger: logger,
	}
}

// Limits returns the effective caps.
func (r *Repository) Limits() Limits {
	return r.limits
}

// DefaultRoster returns a fresh copy of the roster bots are reset to.
func (r *Repository) DefaultRoster() []domain.Bot {
	return domain.CloneRoster(r.roster)
}

// Bots returns the stored roster; ok is false when none has been saved yet.
func (r *Repository) Bots(ctx context.Context) ([]domain.Bot, bool, error) {
	var bots []domain.Bot
	ok, err := r.load(ctx, KeyBots, &bots)
	if err != nil || !ok {
		return nil, false, err
	}
	return bots, true, nil
}

// BotsOrDefault returns the stored roster, or the default roster when it is
// missing or unreadable.
func (r *Repository) BotsOrDefault(ctx context.Context) []domain.Bot {
	bots, ok, err := r.Bots(ctx)
	if err != nil {
		r.logger.Error("failed to read bots, using default roster", zap.Error(err))
		return r.DefaultRoster()
	}
	if !ok {
		return r.DefaultRoster()
	}
	return bots
}

func (r *Repository) SaveBots(ctx context.Context, bots []domain.Bot) error {
	if bots == nil {
		bots = []domain.Bot{}
	}
	return r.save(ctx, KeyBots, bots)
}

// ResetBots writes the default roster.
func (r *Repository) ResetBots(ctx context.Context) error {
	return r.SaveBots(ctx, r.DefaultRoster())
}

// Trades returns the trade log, newest first.
func (r *Repository) Trades(ctx context.Context) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	if _, err := r.load(ctx, KeyTrades, &trades); err != nil {
		return nil, err
	}
	return nonNil(trades), nil
}

// AppendTrades records trades in the order they happened, each becoming the newest entry.
func (r *Repository) AppendTrades(ctx context.Context, records ...domain.TradeRecord) error {
	if len(records) == 0 {
		return nil
	}

	trades, err := r.Trades(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		trades = prependCapped(trades, rec, r.limits.Trades)
	}
	return r.save(ctx, KeyTrades, trades)
}

func (r *Repository) ClearTrades(ctx context.Context) error {
	return r.save(ctx, KeyTrades, []domain.TradeRecord{})
}

// PriceHistory returns the snapshots, oldest first.
func (r *Repository) PriceHistory(ctx context.Context) ([]domain.PriceSnapshot, error) {
	var history []domain.PriceSnapshot
	if _, err := r.load(ctx, KeyPriceHistory, &history); err != nil {
		return nil, err
	}
	return nonNil(history), nil
}

// AppendSnapshot adds the snapshot as newest, evicting the oldest beyond the cap.
func (r *Repository) AppendSnapshot(ctx context.Context, snap domain.PriceSnapshot) error {
	history, err := r.PriceHistory(ctx)
	if err != nil {
		return err
	}
	return r.save(ctx, KeyPriceHistory, appendCapped(history, snap, r.limits.History))
}

func (r *Repository) ClearPriceHistory(ctx context.Context) error {
	return r.save(ctx, KeyPriceHistory, []domain.PriceSnapshot{})
}

// Winners returns archived results, newest first.
func (r *Repository) Winners(ctx context.Context) ([]domain.WinnerRecord, error) {
	var winners []domain.WinnerRecord
	if _, err := r.load(ctx, KeyWinners, &winners); err != nil {
		return nil, err
	}
	return nonNil(winners), nil
}

func (r *Repository) AppendWinner(ctx context.Context, w domain.WinnerRecord) error {
	winners, err := r.Winners(ctx)
	if err != nil {
		return err
	}
	return r.save(ctx, KeyWinners, prependCapped(winners, w, r.limits.Winners))
}

// LastReset returns the reset marker; ok is false when no reset happened yet.
func (r *Repository) LastReset(ctx context.Context) (string, bool, error) {
	raw, ok, err := r.store.Get(ctx, KeyLastReset)
	if err != nil {
		return "", false, errors.Wrap(err, "read last reset")
	}
	if !ok || len(raw) == 0 {
		return "", false, nil
	}
	return string(raw), true, nil
}

func (r *Repository) SetLastReset(ctx context.Context, marker string) error {
	if err := r.store.Set(ctx, KeyLastReset, []byte(marker)); err != nil {
		return errors.Wrap(err, "write last reset")
	}
	return nil
}

func (r *Repository) load(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return false, errors.Wrapf(err, "read %s", key)
	}
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, errors.Wrapf(err, "decode %s", key)
	}
	return true, nil
}

func (r *Repository) save(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	if err := r.store.Set(ctx, key, payload); err != nil {
		return errors.Wrapf(err, "write %s", key)
	}
	return nil
}

// prependCapped puts v first and drops entries beyond limit.
func prependCapped[T any](items []T, v T, limit int) []T {
	out := make([]T, 0, min(len(items)+1, limit))
	out = append(out, v)
	for _, item := range items {
		if len(out) == limit {
			break
		}
		out = append(out, item)
	}
	return out
}

// appendCapped puts v last and drops the oldest entries beyond limit.
func appendCapped[T any](items []T, v T, limit int) []T {
	items = append(items, v)
	if len(items) > limit {
		items = items[len(items)-limit:]
	}
	return append([]T(nil), items...)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
