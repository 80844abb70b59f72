package internal

import (
	"context"
	"fmt"
	"time"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"go.uber.org/zap"

	"github.com/vadiminshakov/tradewars/config"
	"github.com/vadiminshakov/tradewars/internal/clients"
	"github.com/vadiminshakov/tradewars/internal/services/pricer"
	"github.com/vadiminshakov/tradewars/pkg/retrier"
)

const priceRequestTimeout = 10 * time.Second

// newPriceClient creates the platform client for the configured price source.
// CoinGecko needs no client and returns nil.
func newPriceClient(ctx context.Context, cfg config.Config) (any, error) {
	switch cfg.PriceSource {
	case config.SourceCoinGecko:
		return nil, nil
	case config.SourceBinance:
		return clients.NewBinanceClient(cfg.Exchange.BinanceAPIKey, cfg.Exchange.BinanceAPISecret, cfg.PriceAPIURL), nil
	case config.SourceBybit:
		return clients.NewBybitClient(cfg.Exchange.BybitAPIKey, cfg.Exchange.BybitAPISecret, cfg.PriceAPIURL), nil
	case config.SourceHyperliquid:
		return clients.NewHyperliquidClient(ctx, cfg.Exchange.HyperliquidPrivateKey, cfg.PriceAPIURL)
	default:
		return nil, fmt.Errorf("unsupported price source: %s", cfg.PriceSource)
	}
}

// newPlatformSource dispatches on the client type to the matching price source.
// A nil client selects CoinGecko.
func newPlatformSource(client any, baseURL string) (pricer.Source, error) {
	switch c := client.(type) {
	case nil:
		return pricer.NewCoinGeckoPricer(baseURL, priceRequestTimeout), nil
	case *binance.Client:
		return pricer.NewBinancePricer(c), nil
	case *bybit.Client:
		return pricer.NewBybitPricer(c), nil
	case *clients.HyperliquidClient:
		return pricer.NewHyperliquidPricer(c.Info()), nil
	default:
		return nil, fmt.Errorf("unsupported client type: %T", client)
	}
}

// NewPriceSource builds the configured source with retries and a short-lived cache in front.
func NewPriceSource(ctx context.Context, cfg config.Config, logger *zap.Logger) (*pricer.CachedSource, error) {
	client, err := newPriceClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if hl, ok := client.(*clients.HyperliquidClient); ok {
		logger.Info("hyperliquid price source", zap.String("account", hl.AccountAddress()))
	}

	source, err := newPlatformSource(client, cfg.PriceAPIURL)
	if err != nil {
		return nil, err
	}

	r := retrier.New(
		retrier.WithMaxRetries(2),
		retrier.WithInitialInterval(500*time.Millisecond),
		retrier.WithRetryIf(pricer.IsTransient),
	)
	retrying := pricer.NewRetryingSource(source, r, logger.Named("pricer"))

	return pricer.NewCachedSource(retrying, cfg.PriceCacheTTL)
}
