// Package pricer fetches the current BTC and ETH USD prices from public market data APIs.
package pricer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/tradewars/internal/domain"
)

// ErrNoPrice is returned when a source answers without a usable price.
var ErrNoPrice = errors.New("price source returned no price")

// Source provides the latest quote for both instruments.
type Source interface {
	Fetch(ctx context.Context) (domain.PriceQuote, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (domain.PriceQuote, error)

func (f SourceFunc) Fetch(ctx context.Context) (domain.PriceQuote, error) {
	return f(ctx)
}

// quoteFromStrings parses exchange price strings into a validated quote.
func quoteFromStrings(btc, eth string) (domain.PriceQuote, error) {
	btcPrice, err := parsePrice(domain.InstrumentBTC, btc)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	ethPrice, err := parsePrice(domain.InstrumentETH, eth)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	return domain.NewPriceQuote(btcPrice, ethPrice)
}

func parsePrice(instrument domain.Instrument, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, errors.Wrapf(ErrNoPrice, "empty %s price", instrument)
	}
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse %s price %q", instrument, raw)
	}
	return price, nil
}
