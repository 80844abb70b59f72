// Package settlement applies trading actions to bot portfolios.
//
// Settlement is pure: it never performs I/O and never mutates its inputs.
// Actions that would overdraw cash or holdings are rejected and leave the
// portfolio untouched.
package settlement

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/tradewars/internal/domain"
)

const (
	quantityPlaces = 4
	usdPlaces      = 2
)

var (
	// ErrInsufficientBalance buy exceeds the available cash.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInsufficientHoldings sell exceeds the held quantity.
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	// ErrInvalidAction the action carries no instrument or a non-positive amount.
	ErrInvalidAction = errors.New("invalid trade action")
)

// IsRejection reports whether err is a rejected no-op rather than a failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInsufficientHoldings) ||
		errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, domain.ErrInvalidQuote)
}

// Apply settles the action against the bot at the quoted prices.
// It returns the updated bot and the trade description. On error the
// returned bot is the input unchanged and the description explains the skip.
func Apply(bot domain.Bot, action domain.TradeAction, quote domain.PriceQuote) (domain.Bot, string, error) {
	switch action.Kind {
	case domain.ActionHold:
		return bot, holdDescription(action), nil
	case domain.ActionBuy:
		return buy(bot, action, quote)
	case domain.ActionSell:
		return sell(bot, action, quote)
	default:
		return bot, skipped(action, "unknown action"), errors.Wrapf(ErrInvalidAction, "kind %d", action.Kind)
	}
}

func holdDescription(action domain.TradeAction) string {
	if action.Malformed {
		return fmt.Sprintf("HOLD (unrecognized decision: %q)", action.Raw)
	}
	return "HOLD"
}

func buy(bot domain.Bot, action domain.TradeAction, quote domain.PriceQuote) (domain.Bot, string, error) {
	price, err := checkAction(action, quote)
	if err != nil {
		return bot, skipped(action, rejectReason(err)), err
	}

	usd := action.Amount
	if bot.Balance.LessThan(usd) {
		return bot, skipped(action, "insufficient balance"),
			errors.Wrapf(ErrInsufficientBalance, "have %s need %s", bot.Balance.String(), usd.String())
	}

	qty := usd.Div(price)

	updated := bot
	updated.Balance = bot.Balance.Sub(usd)
	updated = updated.WithHolding(action.Instrument, bot.Holding(action.Instrument).Add(qty))

	return updated, describe(domain.ActionBuy, qty, action.Instrument, usd), nil
}

func sell(bot domain.Bot, action domain.TradeAction, quote domain.PriceQuote) (domain.Bot, string, error) {
	price, err := checkAction(action, quote)
	if err != nil {
		return bot, skipped(action, rejectReason(err)), err
	}

	qty := action.Amount
	held := bot.Holding(action.Instrument)
	if held.LessThan(qty) {
		return bot, skipped(action, "insufficient "+action.Instrument.String()),
			errors.Wrapf(ErrInsufficientHoldings, "have %s %s need %s", held.String(), action.Instrument, qty.String())
	}

	usd := qty.Mul(price)

	updated := bot.WithHolding(action.Instrument, held.Sub(qty))
	updated.Balance = bot.Balance.Add(usd)

	return updated, describe(domain.ActionSell, qty, action.Instrument, usd), nil
}

func checkAction(action domain.TradeAction, quote domain.PriceQuote) (decimal.Decimal, error) {
	if _, ok := domain.ParseInstrument(action.Instrument.String()); !ok {
		return decimal.Zero, errors.Wrapf(ErrInvalidAction, "unknown instrument %q", action.Instrument)
	}
	if !action.Amount.IsPositive() {
		return decimal.Zero, errors.Wrapf(ErrInvalidAction, "amount must be positive, got %s", action.Amount.String())
	}
	price := quote.Price(action.Instrument)
	if !price.IsPositive() {
		return decimal.Zero, errors.Wrapf(domain.ErrInvalidQuote, "%s price %s", action.Instrument, price.String())
	}
	return price, nil
}

func rejectReason(err error) string {
	if errors.Is(err, domain.ErrInvalidQuote) {
		return "invalid price"
	}
	return "invalid order"
}

func describe(kind domain.ActionKind, qty decimal.Decimal, instrument domain.Instrument, usd decimal.Decimal) string {
	return fmt.Sprintf("%s %s %s for $%s",
		kind.String(),
		qty.StringFixed(quantityPlaces),
		instrument.String(),
		usd.StringFixed(usdPlaces))
}

func skipped(action domain.TradeAction, reason string) string {
	return fmt.Sprintf("SKIPPED %s: %s", action.String(), reason)
}
