package pricer

import (
	"context"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"

	"github.com/vadiminshakov/tradewars/internal/domain"
)

// BinancePricer reads spot ticker prices of the USDT pairs.
type BinancePricer struct {
	client *binance.Client
}

func NewBinancePricer(client *binance.Client) *BinancePricer {
	return &BinancePricer{client: client}
}

func (p *BinancePricer) Fetch(ctx context.Context) (domain.PriceQuote, error) {
	raw := make(map[domain.Instrument]string, len(domain.Instruments))
	for _, instrument := range domain.Instruments {
		prices, err := p.client.NewListPricesService().Symbol(instrument.USDTSymbol()).Do(ctx)
		if err != nil {
			return domain.PriceQuote{}, errors.Wrapf(err, "binance price for %s", instrument.USDTSymbol())
		}
		if len(prices) == 0 {
			return domain.PriceQuote{}, errors.Wrapf(ErrNoPrice, "binance API returned empty prices for %s", instrument.USDTSymbol())
		}
		raw[instrument] = prices[0].Price
	}

	return quoteFromStrings(raw[domain.InstrumentBTC], raw[domain.InstrumentETH])
}
