package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidQuote is returned when a quote carries a non-positive price.
var ErrInvalidQuote = errors.New("invalid price quote")

// PriceQuote latest observed USD prices.
type PriceQuote struct {
	BTC decimal.Decimal `json:"btc"`
	ETH decimal.Decimal `json:"eth"`
}

// NewPriceQuote creates a validated quote.
func NewPriceQuote(btc, eth decimal.Decimal) (PriceQuote, error) {
	q := PriceQuote{BTC: btc, ETH: eth}
	if err := q.Validate(); err != nil {
		return PriceQuote{}, err
	}
	return q, nil
}

// Price returns the USD price of the instrument.
func (q PriceQuote) Price(i Instrument) decimal.Decimal {
	switch i {
	case InstrumentBTC:
		return q.BTC
	case InstrumentETH:
		return q.ETH
	}
	return decimal.Zero
}

// Validate checks that both prices are positive.
func (q PriceQuote) Validate() error {
	if !q.BTC.IsPositive() {
		return errors.Wrapf(ErrInvalidQuote, "btc price must be positive, got %s", q.BTC.String())
	}
	if !q.ETH.IsPositive() {
		return errors.Wrapf(ErrInvalidQuote, "eth price must be positive, got %s", q.ETH.String())
	}
	return nil
}

// String returns a human-readable string representation.
func (q PriceQuote) String() string {
	return fmt.Sprintf("BTC=%s ETH=%s", q.BTC.String(), q.ETH.String())
}

// PriceSnapshot quote observed at a point in time. Time is unix milliseconds.
type PriceSnapshot struct {
	BTC  decimal.Decimal `json:"btc"`
	ETH  decimal.Decimal `json:"eth"`
	Time int64           `json:"time"`
}

// NewPriceSnapshot stamps the quote with the observation time.
func NewPriceSnapshot(q PriceQuote, at time.Time) PriceSnapshot {
	return PriceSnapshot{BTC: q.BTC, ETH: q.ETH, Time: at.UnixMilli()}
}

// Price returns the USD price of the instrument at snapshot time.
func (s PriceSnapshot) Price(i Instrument) decimal.Decimal {
	return PriceQuote{BTC: s.BTC, ETH: s.ETH}.Price(i)
}
