// Package trend turns the recent price history into a text summary for the decision prompt.
package trend

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/tradewars/internal/domain"
	"github.com/vadiminshakov/tradewars/internal/services/market/indicators"
)

// NoHistory is returned when fewer than two snapshots are available.
const NoHistory = "No price history yet: this is the first observation."

// MomentumPeriod EMA period used for the momentum label.
const MomentumPeriod = 5

var hundred = decimal.NewFromInt(100)

// Summarize describes how prices moved across the history window.
// history is ordered oldest first; now is the evaluation instant.
// The output depends only on its arguments.
func Summarize(history []domain.PriceSnapshot, quote domain.PriceQuote, now time.Time) string {
	if len(history) < 2 {
		return NoHistory
	}

	oldest := history[0]
	mid := history[len(history)/2]
	recent := history[len(history)-1]

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Price trend over the last %d minutes (%d snapshots):\n",
		elapsedMinutes(oldest.Time, now), len(history)))

	for _, instrument := range domain.Instruments {
		current := quote.Price(instrument)
		low, high := priceRange(history, instrument)

		sb.WriteString(fmt.Sprintf("- %s: now $%s | since start %s | since mid-window %s | since last check %s | range $%s - $%s",
			instrument.String(),
			current.StringFixed(2),
			percentChange(oldest.Price(instrument), current),
			percentChange(mid.Price(instrument), current),
			percentChange(recent.Price(instrument), current),
			low.StringFixed(2),
			high.StringFixed(2),
		))

		if label, ok := momentum(history, instrument, current); ok {
			sb.WriteString(" | ")
			sb.WriteString(label)
		}
		sb.WriteString("\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

// PercentChange returns (current-ref)/ref*100. ok is false when ref is not positive.
func PercentChange(ref, current decimal.Decimal) (decimal.Decimal, bool) {
	if !ref.IsPositive() {
		return decimal.Zero, false
	}
	return current.Sub(ref).Div(ref).Mul(hundred), true
}

func percentChange(ref, current decimal.Decimal) string {
	pct, ok := PercentChange(ref, current)
	if !ok {
		return "n/a"
	}
	rounded := pct.Round(2)
	if rounded.IsPositive() {
		return "+" + rounded.StringFixed(2) + "%"
	}
	return rounded.StringFixed(2) + "%"
}

func priceRange(history []domain.PriceSnapshot, instrument domain.Instrument) (decimal.Decimal, decimal.Decimal) {
	low := history[0].Price(instrument)
	high := low
	for _, snap := range history[1:] {
		p := snap.Price(instrument)
		low = decimal.Min(low, p)
		high = decimal.Max(high, p)
	}
	return low, high
}

func elapsedMinutes(fromMillis int64, now time.Time) int64 {
	elapsed := now.UnixMilli() - fromMillis
	if elapsed <= 0 {
		return 0
	}
	return int64(math.Round(float64(elapsed) / float64(time.Minute/time.Millisecond)))
}

func momentum(history []domain.PriceSnapshot, instrument domain.Instrument, current decimal.Decimal) (string, bool) {
	if len(history) < MomentumPeriod {
		return "", false
	}

	closes := make([]decimal.Decimal, len(history))
	for i, snap := range history {
		closes[i] = snap.Price(instrument)
	}

	ema, err := indicators.LatestEMA(closes, MomentumPeriod)
	if err != nil {
		return "", false
	}

	switch current.Round(2).Cmp(ema.Round(2)) {
	case 1:
		return fmt.Sprintf("above short EMA $%s", ema.StringFixed(2)), true
	case -1:
		return fmt.Sprintf("below short EMA $%s", ema.StringFixed(2)), true
	default:
		return fmt.Sprintf("at short EMA $%s", ema.StringFixed(2)), true
	}
}
