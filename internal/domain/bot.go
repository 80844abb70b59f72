package domain

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Strategy trading persona of a bot.
type Strategy string

const (
	StrategyConservative Strategy = "conservative"
	StrategyAggressive   Strategy = "aggressive"
)

// Valid reports whether the strategy is known.
func (s Strategy) Valid() bool {
	return s == StrategyConservative || s == StrategyAggressive
}

// DefaultStartingBalance cash every bot starts the day with.
var DefaultStartingBalance = decimal.NewFromInt(10000)

// Bot competitor portfolio. Name is the stable identity.
type Bot struct {
	Name     string          `json:"name"`
	Balance  decimal.Decimal `json:"balance"`
	BTC      decimal.Decimal `json:"btc"`
	ETH      decimal.Decimal `json:"eth"`
	Strategy Strategy        `json:"strategy"`
}

// NewBot creates a bot holding only cash.
func NewBot(name string, strategy Strategy, balance decimal.Decimal) Bot {
	return Bot{
		Name:     name,
		Balance:  balance,
		BTC:      decimal.Zero,
		ETH:      decimal.Zero,
		Strategy: strategy,
	}
}

// DefaultRoster returns a fresh copy of the built-in competitors.
func DefaultRoster() []Bot {
	return []Bot{
		NewBot("Aurelian", StrategyConservative, DefaultStartingBalance),
		NewBot("Pumara", StrategyAggressive, DefaultStartingBalance),
	}
}

// Holding returns the quantity of the instrument held.
func (b Bot) Holding(i Instrument) decimal.Decimal {
	switch i {
	case InstrumentBTC:
		return b.BTC
	case InstrumentETH:
		return b.ETH
	}
	return decimal.Zero
}

// WithHolding returns a copy of the bot with the instrument quantity replaced.
func (b Bot) WithHolding(i Instrument, qty decimal.Decimal) Bot {
	switch i {
	case InstrumentBTC:
		b.BTC = qty
	case InstrumentETH:
		b.ETH = qty
	}
	return b
}

// Value returns the mark-to-market value of the portfolio.
func (b Bot) Value(q PriceQuote) decimal.Decimal {
	return b.Balance.
		Add(b.BTC.Mul(q.BTC)).
		Add(b.ETH.Mul(q.ETH))
}

// Validate checks identity, strategy and the non-negative balance invariant.
func (b Bot) Validate() error {
	if b.Name == "" {
		return errors.New("bot name is required")
	}
	if !b.Strategy.Valid() {
		return errors.Errorf("bot %s: unknown strategy %q", b.Name, b.Strategy)
	}
	if b.Balance.IsNegative() || b.BTC.IsNegative() || b.ETH.IsNegative() {
		return errors.Errorf("bot %s: balances must not be negative", b.Name)
	}
	return nil
}

// Equal reports whether both bots have the same identity and holdings.
func (b Bot) Equal(other Bot) bool {
	return b.Name == other.Name &&
		b.Strategy == other.Strategy &&
		b.Balance.Equal(other.Balance) &&
		b.BTC.Equal(other.BTC) &&
		b.ETH.Equal(other.ETH)
}

// RostersEqual reports whether both rosters hold equal bots in the same order.
func RostersEqual(a, b []Bot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// ValidateRoster validates every bot and checks that names are unique.
func ValidateRoster(bots []Bot) error {
	seen := make(map[string]struct{}, len(bots))
	for _, b := range bots {
		if err := b.Validate(); err != nil {
			return err
		}
		if _, ok := seen[b.Name]; ok {
			return errors.Errorf("duplicate bot name %q", b.Name)
		}
		seen[b.Name] = struct{}{}
	}
	return nil
}

// CloneRoster returns a copy safe to mutate.
func CloneRoster(bots []Bot) []Bot {
	out := make([]Bot, len(bots))
	copy(out, bots)
	return out
}

// Standing bot position on the leaderboard.
type Standing struct {
	Rank  int             `json:"rank"`
	Bot   Bot             `json:"bot"`
	Value decimal.Decimal `json:"value"`
}

// Leaderboard ranks bots by value, highest first. Equal values keep roster order.
func Leaderboard(bots []Bot, q PriceQuote) []Standing {
	standings := make([]Standing, len(bots))
	for i, b := range bots {
		standings[i] = Standing{Bot: b, Value: b.Value(q)}
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Value.GreaterThan(standings[j].Value)
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}
