package pricer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/tradewars/internal/domain"
)

const (
	DefaultCoinGeckoURL = "https://api.coingecko.com"
	coinGeckoPath       = "/api/v3/simple/price?ids=bitcoin,ethereum&vs_currencies=usd"
	userAgent           = "TradeWars/1.0"
)

// coinGeckoIDs maps instruments to CoinGecko coin ids.
var coinGeckoIDs = map[domain.Instrument]string{
	domain.InstrumentBTC: "bitcoin",
	domain.InstrumentETH: "ethereum",
}

// CoinGeckoPricer reads the simple price endpoint.
type CoinGeckoPricer struct {
	baseURL    string
	httpClient *http.Client
}

func NewCoinGeckoPricer(baseURL string, timeout time.Duration) *CoinGeckoPricer {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CoinGeckoPricer{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// {"bitcoin":{"usd":68000.1},"ethereum":{"usd":2000.5}}
type coinGeckoResponse map[string]struct {
	USD *json.Number `json:"usd"`
}

func (p *CoinGeckoPricer) Fetch(ctx context.Context) (domain.PriceQuote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+coinGeckoPath, nil)
	if err != nil {
		return domain.PriceQuote{}, errors.Wrap(err, "build coingecko request")
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.PriceQuote{}, errors.Wrap(err, "coingecko request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PriceQuote{}, errors.Wrap(err, "read coingecko response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.PriceQuote{}, &HTTPStatusError{Source: "coingecko", Code: resp.StatusCode}
	}

	var payload coinGeckoResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return domain.PriceQuote{}, errors.Wrap(err, "decode coingecko response")
	}

	prices := make(map[domain.Instrument]decimal.Decimal, len(coinGeckoIDs))
	for instrument, id := range coinGeckoIDs {
		entry, ok := payload[id]
		if !ok || entry.USD == nil {
			return domain.PriceQuote{}, errors.Wrapf(ErrNoPrice, "coingecko response misses %s", id)
		}
		price, err := parsePrice(instrument, entry.USD.String())
		if err != nil {
			return domain.PriceQuote{}, err
		}
		prices[instrument] = price
	}

	return domain.NewPriceQuote(prices[domain.InstrumentBTC], prices[domain.InstrumentETH])
}

// HTTPStatusError non-2xx answer from a REST price source.
type HTTPStatusError struct {
	Source string
	Code   int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Source, e.Code)
}
