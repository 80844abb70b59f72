package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ActionKind represents the type of trading action to be performed.
type ActionKind int

const (
	ActionHold ActionKind = iota
	ActionBuy
	ActionSell
)

// action string constants to avoid magic strings
const (
	actionStringHold = "HOLD"
	actionStringBuy  = "BUY"
	actionStringSell = "SELL"
)

// String returns the string representation of the action
func (a ActionKind) String() string {
	switch a {
	case ActionHold:
		return actionStringHold
	case ActionBuy:
		return actionStringBuy
	case ActionSell:
		return actionStringSell
	default:
		return "UNKNOWN"
	}
}

// TradeAction structured decision of a bot for one round.
// Amount is USD for buys and instrument quantity for sells.
type TradeAction struct {
	Kind       ActionKind
	Instrument Instrument
	Amount     decimal.Decimal
	// Raw is the oracle reply the action was parsed from.
	Raw string
	// Malformed is set when Raw did not match the grammar and the action fell back to hold.
	Malformed bool
}

// Hold returns the no-op action.
func Hold() TradeAction {
	return TradeAction{Kind: ActionHold}
}

// Buy returns an action spending usd on the instrument.
func Buy(i Instrument, usd decimal.Decimal) TradeAction {
	return TradeAction{Kind: ActionBuy, Instrument: i, Amount: usd}
}

// Sell returns an action selling qty of the instrument.
func Sell(i Instrument, qty decimal.Decimal) TradeAction {
	return TradeAction{Kind: ActionSell, Instrument: i, Amount: qty}
}

// String returns the canonical decision line, e.g. "BUY BTC 1000".
func (a TradeAction) String() string {
	if a.Kind == ActionHold {
		return actionStringHold
	}
	return fmt.Sprintf("%s %s %s", a.Kind.String(), a.Instrument.String(), a.Amount.String())
}
