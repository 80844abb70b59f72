package settlement

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/tradewars/internal/domain"
)

var tolerance = decimal.RequireFromString("0.000001")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testQuote() domain.PriceQuote {
	return domain.PriceQuote{BTC: dec("68123.45"), ETH: dec("2011.7")}
}

func assertClose(t *testing.T, expected, actual decimal.Decimal) {
	t.Helper()
	assert.True(t, expected.Sub(actual).Abs().LessThan(tolerance),
		"expected %s, got %s", expected.String(), actual.String())
}

func TestApply_Hold(t *testing.T) {
	bot := domain.NewBot("Aurelian", domain.StrategyConservative, dec("10000"))

	updated, desc, err := Apply(bot, domain.Hold(), testQuote())

	require.NoError(t, err)
	assert.Equal(t, bot, updated)
	assert.Equal(t, "HOLD", desc)
}

func TestApply_MalformedHoldKeepsRawText(t *testing.T) {
	bot := domain.NewBot("Aurelian", domain.StrategyConservative, dec("10000"))

	updated, desc, err := Apply(bot, domain.ParseDecision("to the moon"), testQuote())

	require.NoError(t, err)
	assert.Equal(t, bot, updated)
	assert.Equal(t, `HOLD (unrecognized decision: "to the moon")`, desc)
}

func TestApply_ExponentAmountsHold(t *testing.T) {
	bot := domain.NewBot("Pumara", domain.StrategyAggressive, dec("10000")).
		WithHolding(domain.InstrumentBTC, dec("1"))

	for _, reply := range []string{"BUY BTC 1e30000000", "SELL BTC 1e-30000000"} {
		t.Run(reply, func(t *testing.T) {
			updated, desc, err := Apply(bot, domain.ParseDecision(reply), testQuote())

			require.NoError(t, err)
			assert.Equal(t, bot, updated)
			assert.Equal(t, `HOLD (unrecognized decision: "`+reply+`")`, desc)
		})
	}
}

func TestApply_BuyConservesValue(t *testing.T) {
	quote := testQuote()
	for _, instrument := range domain.Instruments {
		t.Run(instrument.String(), func(t *testing.T) {
			bot := domain.NewBot("Pumara", domain.StrategyAggressive, dec("10000"))
			usd := dec("1234.56")

			updated, desc, err := Apply(bot, domain.Buy(instrument, usd), quote)
			require.NoError(t, err)

			qty := usd.Div(quote.Price(instrument))
			assert.True(t, updated.Balance.Equal(dec("8765.44")))
			assertClose(t, qty, updated.Holding(instrument))
			assertClose(t, bot.Value(quote), updated.Value(quote))
			assert.Equal(t, "BUY "+qty.StringFixed(4)+" "+instrument.String()+" for $1234.56", desc)
		})
	}
}

func TestApply_BuyWholeBalance(t *testing.T) {
	bot := domain.NewBot("Pumara", domain.StrategyAggressive, dec("10000"))

	updated, desc, err := Apply(bot, domain.Buy(domain.InstrumentBTC, dec("10000")), domain.PriceQuote{BTC: dec("50000"), ETH: dec("2000")})

	require.NoError(t, err)
	assert.True(t, updated.Balance.IsZero())
	assert.True(t, updated.BTC.Equal(dec("0.2")))
	assert.Equal(t, "BUY 0.2000 BTC for $10000.00", desc)
}

func TestApply_SellConservesValue(t *testing.T) {
	quote := testQuote()
	bot := domain.NewBot("Pumara", domain.StrategyAggressive, dec("100")).
		WithHolding(domain.InstrumentBTC, dec("0.3")).
		WithHolding(domain.InstrumentETH, dec("4"))

	for _, instrument := range domain.Instruments {
		t.Run(instrument.String(), func(t *testing.T) {
			qty := dec("0.25")

			updated, desc, err := Apply(bot, domain.Sell(instrument, qty), quote)
			require.NoError(t, err)

			usd := qty.Mul(quote.Price(instrument))
			assert.True(t, updated.Holding(instrument).Equal(bot.Holding(instrument).Sub(qty)))
			assert.True(t, updated.Balance.Equal(bot.Balance.Add(usd)))
			assertClose(t, bot.Value(quote), updated.Value(quote))
			assert.Equal(t, "SELL 0.2500 "+instrument.String()+" for $"+usd.StringFixed(2), desc)
		})
	}
}

func TestApply_RejectionsLeavePortfolioUnchanged(t *testing.T) {
	quote := testQuote()
	bot := domain.NewBot("Aurelian", domain.StrategyConservative, dec("100")).
		WithHolding(domain.InstrumentETH, dec("0.1"))

	tests := []struct {
		name    string
		action  domain.TradeAction
		quote   domain.PriceQuote
		wantErr error
		desc    string
	}{
		{
			name:    "buy above balance",
			action:  domain.Buy(domain.InstrumentBTC, dec("500")),
			quote:   quote,
			wantErr: ErrInsufficientBalance,
			desc:    "SKIPPED BUY BTC 500: insufficient balance",
		},
		{
			name:    "sell more than held",
			action:  domain.Sell(domain.InstrumentETH, dec("0.5")),
			quote:   quote,
			wantErr: ErrInsufficientHoldings,
			desc:    "SKIPPED SELL ETH 0.5: insufficient ETH",
		},
		{
			name:    "sell with no holdings",
			action:  domain.Sell(domain.InstrumentBTC, dec("0.01")),
			quote:   quote,
			wantErr: ErrInsufficientHoldings,
			desc:    "SKIPPED SELL BTC 0.01: insufficient BTC",
		},
		{
			name:    "zero amount",
			action:  domain.Buy(domain.InstrumentBTC, decimal.Zero),
			quote:   quote,
			wantErr: ErrInvalidAction,
			desc:    "SKIPPED BUY BTC 0: invalid order",
		},
		{
			name:    "unknown instrument",
			action:  domain.Buy(domain.Instrument("DOGE"), dec("1")),
			quote:   quote,
			wantErr: ErrInvalidAction,
			desc:    "SKIPPED BUY DOGE 1: invalid order",
		},
		{
			name:    "missing price",
			action:  domain.Buy(domain.InstrumentBTC, dec("10")),
			quote:   domain.PriceQuote{ETH: dec("2000")},
			wantErr: domain.ErrInvalidQuote,
			desc:    "SKIPPED BUY BTC 10: invalid price",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated, desc, err := Apply(bot, tt.action, tt.quote)

			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsRejection(err))
			assert.Equal(t, bot, updated)
			assert.Equal(t, tt.desc, desc)
		})
	}
}

func TestApply_NeverProducesNegativeBalances(t *testing.T) {
	quote := domain.PriceQuote{BTC: dec("3"), ETH: dec("7")}
	bot := domain.NewBot("Pumara", domain.StrategyAggressive, dec("10"))
	actions := []domain.TradeAction{
		domain.Buy(domain.InstrumentBTC, dec("9.99")),
		domain.Buy(domain.InstrumentETH, dec("0.02")),
		domain.Sell(domain.InstrumentBTC, dec("3.33")),
		domain.Sell(domain.InstrumentETH, dec("1")),
		domain.Buy(domain.InstrumentETH, dec("100")),
		domain.Sell(domain.InstrumentBTC, dec("0.0000001")),
	}

	for _, action := range actions {
		bot, _, _ = Apply(bot, action, quote)
		require.NoError(t, bot.Validate(), "after %s", action.String())
	}
}
