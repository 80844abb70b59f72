package pricer

import (
	"context"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/tradewars/internal/domain"
)

// BybitPricer reads V5 spot tickers.
type BybitPricer struct {
	client *bybit.Client
}

func NewBybitPricer(client *bybit.Client) *BybitPricer {
	return &BybitPricer{client: client}
}

func (p *BybitPricer) Fetch(ctx context.Context) (domain.PriceQuote, error) {
	raw := make(map[domain.Instrument]string, len(domain.Instruments))
	for _, instrument := range domain.Instruments {
		if err := ctx.Err(); err != nil {
			return domain.PriceQuote{}, err
		}

		symbol := bybit.SymbolV5(instrument.USDTSymbol())
		result, err := p.client.V5().Market().GetTickers(bybit.V5GetTickersParam{
			Category: "spot",
			Symbol:   &symbol,
		})
		if err != nil {
			return domain.PriceQuote{}, errors.Wrapf(err, "bybit ticker for %s", symbol)
		}
		if result.Result.Spot == nil || len(result.Result.Spot.List) == 0 {
			return domain.PriceQuote{}, errors.Wrapf(ErrNoPrice, "bybit API returned empty prices for %s", symbol)
		}
		raw[instrument] = result.Result.Spot.List[0].LastPrice
	}

	return quoteFromStrings(raw[domain.InstrumentBTC], raw[domain.InstrumentETH])
}
