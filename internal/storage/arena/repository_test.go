package arena

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/tradewars/internal/domain"
	"github.com/vadiminshakov/tradewars/internal/storage/kv"
)

func newRepo(limits Limits) (*Repository, *kv.MemoryStore) {
	store := kv.NewMemoryStore()
	return NewRepository(store, limits, nil, nil), store
}

type failingStore struct{ kv.Store }

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("store unavailable")
}

func (failingStore) Set(context.Context, string, []byte) error {
	return errors.New("store unavailable")
}

func TestBots_MissingAndSaved(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(Limits{})

	_, ok, err := repo.Bots(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, domain.DefaultRoster(), repo.BotsOrDefault(ctx))

	bots := []domain.Bot{{
		Name:     "Aurelian",
		Balance:  decimal.RequireFromString("9000.5"),
		BTC:      decimal.RequireFromString("0.0147"),
		ETH:      decimal.Zero,
		Strategy: domain.StrategyConservative,
	}}
	require.NoError(t, repo.SaveBots(ctx, bots))

	got, ok, err := repo.Bots(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.True(t, got[0].Balance.Equal(bots[0].Balance))
	assert.True(t, got[0].BTC.Equal(bots[0].BTC))
	assert.Equal(t, domain.StrategyConservative, got[0].Strategy)
}

func TestBots_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	repo, store := newRepo(Limits{})
	require.NoError(t, store.Set(ctx, KeyBots, []byte("{not json")))

	_, _, err := repo.Bots(ctx)
	assert.Error(t, err)
	assert.Equal(t, domain.DefaultRoster(), repo.BotsOrDefault(ctx))
}

func TestBotsOrDefault_StoreFailure(t *testing.T) {
	repo := NewRepository(failingStore{}, Limits{}, nil, nil)

	assert.Equal(t, domain.DefaultRoster(), repo.BotsOrDefault(context.Background()))
}

func TestResetBots_UsesConfiguredRoster(t *testing.T) {
	ctx := context.Background()
	roster := []domain.Bot{domain.NewBot("Solo", domain.StrategyAggressive, decimal.NewFromInt(500))}
	repo := NewRepository(kv.NewMemoryStore(), Limits{}, roster, nil)

	require.NoError(t, repo.ResetBots(ctx))

	got, ok, err := repo.Bots(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "Solo", got[0].Name)
}

func TestAppendTrades_NewestFirstCapped(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(Limits{Trades: 3})

	require.NoError(t, repo.AppendTrades(ctx,
		domain.TradeRecord{BotName: "a", Action: "HOLD", Time: "1"},
		domain.TradeRecord{BotName: "b", Action: "HOLD", Time: "2"},
	))
	require.NoError(t, repo.AppendTrades(ctx,
		domain.TradeRecord{BotName: "c", Action: "HOLD", Time: "3"},
		domain.TradeRecord{BotName: "d", Action: "HOLD", Time: "4"},
	))

	trades, err := repo.Trades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "d", trades[0].BotName)
	assert.Equal(t, "c", trades[1].BotName)
	assert.Equal(t, "b", trades[2].BotName)

	require.NoError(t, repo.ClearTrades(ctx))
	trades, err = repo.Trades(ctx)
	require.NoError(t, err)
	assert.Empty(t, trades)
	assert.NotNil(t, trades)
}

func TestAppendSnapshot_FIFO(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(Limits{})

	for i := 0; i < 65; i++ {
		require.NoError(t, repo.AppendSnapshot(ctx, domain.PriceSnapshot{
			BTC:  decimal.NewFromInt(int64(1000 + i)),
			ETH:  decimal.NewFromInt(10),
			Time: int64(i),
		}))
	}

	history, err := repo.PriceHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 60)
	assert.Equal(t, int64(5), history[0].Time)
	assert.Equal(t, int64(64), history[59].Time)

	require.NoError(t, repo.ClearPriceHistory(ctx))
	history, err = repo.PriceHistory(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAppendWinner_NewestFirstCapped(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRepo(Limits{})

	for i := 0; i < 35; i++ {
		require.NoError(t, repo.AppendWinner(ctx, domain.WinnerRecord{
			Date:   fmt.Sprintf("day-%02d", i),
			Winner: "Pumara",
			Value:  decimal.NewFromInt(10000),
		}))
	}

	winners, err := repo.Winners(ctx)
	require.NoError(t, err)
	require.Len(t, winners, 30)
	assert.Equal(t, "day-34", winners[0].Date)
	assert.Equal(t, "day-05", winners[29].Date)
}

func TestLastReset(t *testing.T) {
	ctx := context.Background()
	repo, store := newRepo(Limits{})

	_, ok, err := repo.LastReset(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetLastReset(ctx, "Mon Mar 04 2024"))
	marker, ok, err := repo.LastReset(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Mon Mar 04 2024", marker)

	raw, _, err := store.Get(ctx, KeyLastReset)
	require.NoError(t, err)
	assert.Equal(t, "Mon Mar 04 2024", string(raw))
}

func TestCapHelpers(t *testing.T) {
	assert.Equal(t, []int{3, 1, 2}, prependCapped([]int{1, 2}, 3, 5))
	assert.Equal(t, []int{3, 1}, prependCapped([]int{1, 2}, 3, 2))
	assert.Equal(t, []int{2, 3}, appendCapped([]int{1, 2}, 3, 2))
	assert.Equal(t, []int{1}, appendCapped(nil, 1, 2))
}
