package pricer

import (
	"context"

	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"github.com/vadiminshakov/tradewars/internal/domain"
)

// HyperliquidPricer fetches mid prices from Hyperliquid public Info API.
type HyperliquidPricer struct {
	info *hyperliquid.Info
}

func NewHyperliquidPricer(info *hyperliquid.Info) *HyperliquidPricer {
	return &HyperliquidPricer{info: info}
}

func (p *HyperliquidPricer) Fetch(ctx context.Context) (domain.PriceQuote, error) {
	if p.info == nil {
		return domain.PriceQuote{}, errors.New("hyperliquid info client is nil")
	}

	mids, err := p.info.AllMids(ctx)
	if err != nil {
		return domain.PriceQuote{}, errors.Wrap(err, "hyperliquid all mids")
	}

	// mids are keyed by base coin, e.g. "BTC"
	return quoteFromStrings(mids[domain.InstrumentBTC.String()], mids[domain.InstrumentETH.String()])
}
