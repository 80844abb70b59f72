package trend

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/tradewars/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func snap(btc, eth string, ms int64) domain.PriceSnapshot {
	return domain.PriceSnapshot{BTC: dec(btc), ETH: dec(eth), Time: ms}
}

func TestSummarize_NotEnoughHistory(t *testing.T) {
	quote := domain.PriceQuote{BTC: dec("68000"), ETH: dec("2000")}
	now := time.UnixMilli(1_000_000)

	assert.Equal(t, NoHistory, Summarize(nil, quote, now))
	assert.Equal(t, NoHistory, Summarize([]domain.PriceSnapshot{snap("1", "1", 0)}, quote, now))
}

func TestSummarize_ExactOutput(t *testing.T) {
	history := []domain.PriceSnapshot{
		snap("100", "10", 0),
		snap("110", "10", 60_000),
	}
	quote := domain.PriceQuote{BTC: dec("121"), ETH: dec("9")}

	got := Summarize(history, quote, time.UnixMilli(120_000))

	expected := "Price trend over the last 2 minutes (2 snapshots):\n" +
		"- BTC: now $121.00 | since start +21.00% | since mid-window +10.00% | since last check +10.00% | range $100.00 - $110.00\n" +
		"- ETH: now $9.00 | since start -10.00% | since mid-window -10.00% | since last check -10.00% | range $10.00 - $10.00"
	assert.Equal(t, expected, got)
}

func TestSummarize_MidWindowIndex(t *testing.T) {
	history := []domain.PriceSnapshot{
		snap("100", "10", 0),
		snap("200", "10", 1),
		snap("400", "10", 2),
	}
	quote := domain.PriceQuote{BTC: dec("400"), ETH: dec("10")}

	got := Summarize(history, quote, time.UnixMilli(2))

	assert.Contains(t, got, "since start +300.00%")
	assert.Contains(t, got, "since mid-window +100.00%")
	assert.Contains(t, got, "since last check 0.00%")
	assert.Contains(t, got, "over the last 0 minutes (3 snapshots)")
}

func TestSummarize_Deterministic(t *testing.T) {
	history := []domain.PriceSnapshot{
		snap("67000.12", "1990.5", 0),
		snap("67500.99", "2001.25", 60_000),
		snap("68010.5", "1999.75", 120_000),
	}
	quote := domain.PriceQuote{BTC: dec("68100"), ETH: dec("2003")}
	now := time.UnixMilli(150_000)

	first := Summarize(history, quote, now)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Summarize(history, quote, now))
	}
}

func TestSummarize_ElapsedMinutesRounded(t *testing.T) {
	history := []domain.PriceSnapshot{snap("1", "1", 0), snap("1", "1", 1)}
	quote := domain.PriceQuote{BTC: dec("1"), ETH: dec("1")}

	assert.Contains(t, Summarize(history, quote, time.UnixMilli(90_000)), "last 2 minutes")
	assert.Contains(t, Summarize(history, quote, time.UnixMilli(89_999)), "last 1 minutes")
}

func TestSummarize_MomentumLabel(t *testing.T) {
	var history []domain.PriceSnapshot
	for i := 0; i < MomentumPeriod; i++ {
		history = append(history, snap("100", "100", int64(i)*60_000))
	}

	quote := domain.PriceQuote{BTC: dec("105"), ETH: dec("95")}
	got := Summarize(history, quote, time.UnixMilli(300_000))

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[1], "above short EMA $100.00"), lines[1])
	assert.True(t, strings.HasSuffix(lines[2], "below short EMA $100.00"), lines[2])
}

func TestSummarize_NoMomentumForShortWindow(t *testing.T) {
	history := []domain.PriceSnapshot{snap("100", "100", 0), snap("100", "100", 1)}
	quote := domain.PriceQuote{BTC: dec("105"), ETH: dec("95")}

	assert.NotContains(t, Summarize(history, quote, time.UnixMilli(2)), "EMA")
}

func TestPercentChange_ZeroReference(t *testing.T) {
	_, ok := PercentChange(decimal.Zero, dec("10"))
	assert.False(t, ok)

	pct, ok := PercentChange(dec("50"), dec("75"))
	require.True(t, ok)
	assert.True(t, pct.Equal(dec("50")))
}
