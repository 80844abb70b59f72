package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBot_Value(t *testing.T) {
	bot := Bot{Name: "a", Balance: dec("100"), BTC: dec("0.5"), ETH: dec("2"), Strategy: StrategyAggressive}
	quote := PriceQuote{BTC: dec("60000"), ETH: dec("3000")}

	assert.True(t, bot.Value(quote).Equal(dec("36100")), "got %s", bot.Value(quote))
}

func TestBot_Validate(t *testing.T) {
	tests := []struct {
		name    string
		bot     Bot
		wantErr string
	}{
		{name: "valid", bot: NewBot("a", StrategyConservative, dec("10"))},
		{name: "missing name", bot: NewBot("", StrategyConservative, dec("10")), wantErr: "bot name is required"},
		{name: "unknown strategy", bot: NewBot("a", Strategy("yolo"), dec("10")), wantErr: `bot a: unknown strategy "yolo"`},
		{name: "negative balance", bot: NewBot("a", StrategyAggressive, dec("-1")), wantErr: "bot a: balances must not be negative"},
		{name: "negative btc", bot: NewBot("a", StrategyAggressive, dec("1")).WithHolding(InstrumentBTC, dec("-0.1")), wantErr: "bot a: balances must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.bot.Validate()
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateRoster_DuplicateNames(t *testing.T) {
	bots := []Bot{
		NewBot("a", StrategyConservative, dec("1")),
		NewBot("a", StrategyAggressive, dec("1")),
	}
	assert.EqualError(t, ValidateRoster(bots), `duplicate bot name "a"`)
	assert.NoError(t, ValidateRoster(DefaultRoster()))
}

func TestRostersEqual(t *testing.T) {
	tests := []struct {
		name  string
		a, b  []Bot
		equal bool
	}{
		{name: "same roster", a: DefaultRoster(), b: DefaultRoster(), equal: true},
		{
			name:  "zero with different scale",
			a:     []Bot{NewBot("a", StrategyAggressive, dec("10"))},
			b:     []Bot{{Name: "a", Strategy: StrategyAggressive, Balance: dec("10.00"), BTC: dec("0"), ETH: dec("0.000")}},
			equal: true,
		},
		{name: "different length", a: DefaultRoster(), b: DefaultRoster()[:1]},
		{
			name: "different holding",
			a:    []Bot{NewBot("a", StrategyAggressive, dec("10"))},
			b:    []Bot{NewBot("a", StrategyAggressive, dec("10")).WithHolding(InstrumentETH, dec("1"))},
		},
		{
			name: "different order",
			a:    DefaultRoster(),
			b:    []Bot{DefaultRoster()[1], DefaultRoster()[0]},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, RostersEqual(tt.a, tt.b))
		})
	}
}

func TestDefaultRoster_ReturnsFreshCopy(t *testing.T) {
	first := DefaultRoster()
	first[0].Balance = dec("1")

	second := DefaultRoster()
	require.Len(t, second, 2)
	assert.Equal(t, "Aurelian", second[0].Name)
	assert.Equal(t, StrategyConservative, second[0].Strategy)
	assert.Equal(t, "Pumara", second[1].Name)
	assert.Equal(t, StrategyAggressive, second[1].Strategy)
	assert.True(t, second[0].Balance.Equal(dec("10000")))
}

func TestLeaderboard(t *testing.T) {
	quote := PriceQuote{BTC: dec("100"), ETH: dec("10")}
	bots := []Bot{
		NewBot("low", StrategyConservative, dec("50")),
		NewBot("tie-first", StrategyConservative, dec("100")),
		NewBot("tie-second", StrategyAggressive, dec("0")).WithHolding(InstrumentBTC, dec("1")),
	}

	standings := Leaderboard(bots, quote)

	require.Len(t, standings, 3)
	assert.Equal(t, "tie-first", standings[0].Bot.Name)
	assert.Equal(t, 1, standings[0].Rank)
	assert.Equal(t, "tie-second", standings[1].Bot.Name)
	assert.Equal(t, "low", standings[2].Bot.Name)
	assert.True(t, standings[2].Value.Equal(dec("50")))
}

func TestPriceQuote_Validate(t *testing.T) {
	_, err := NewPriceQuote(dec("100"), dec("10"))
	assert.NoError(t, err)

	_, err = NewPriceQuote(dec("0"), dec("10"))
	assert.ErrorIs(t, err, ErrInvalidQuote)

	_, err = NewPriceQuote(dec("100"), dec("-1"))
	assert.ErrorIs(t, err, ErrInvalidQuote)
}
