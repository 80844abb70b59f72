package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/tradewars/internal/clients"
	"github.com/vadiminshakov/tradewars/internal/domain"
	"github.com/vadiminshakov/tradewars/internal/scheduler"
	"github.com/vadiminshakov/tradewars/internal/services/competition"
	"github.com/vadiminshakov/tradewars/internal/services/pricer"
	"github.com/vadiminshakov/tradewars/internal/storage/arena"
	"github.com/vadiminshakov/tradewars/internal/storage/kv"
)

// Price sources.
const (
	SourceCoinGecko   = "coingecko"
	SourceBinance     = "binance"
	SourceBybit       = "bybit"
	SourceHyperliquid = "hyperliquid"
)

const (
	defaultHTTPAddr        = ":8080"
	defaultJournalDir      = "./wal/trades"
	defaultDecisionTimeout = 15 * time.Second
	defaultMaxParallel     = 4
	defaultLLMTimeout      = 30 * time.Second
)

// Config runtime settings of the arena.
type Config struct {
	PriceSource   string
	PriceAPIURL   string
	PriceCacheTTL time.Duration

	RoundSchedule string
	ResetSchedule string
	Location      *time.Location
	Reference     domain.PriceQuote
	Limits        arena.Limits

	LLM                  clients.LLMConfig
	MaxParallelDecisions int
	DecisionTimeout      time.Duration

	StorageBackend string
	StorageDSN     string
	JournalDir     string

	HTTPAddr         string
	CORSOrigins      []string
	AutocertDomains  []string
	AutocertCacheDir string

	Roster []domain.Bot

	Exchange ExchangeCredentials
}

// ExchangeCredentials keys for the exchange price sources. Public endpoints work without them.
type ExchangeCredentials struct {
	BinanceAPIKey         string
	BinanceAPISecret      string
	BybitAPIKey           string
	BybitAPISecret        string
	HyperliquidPrivateKey string
}

// ConfigTmp yaml representation of Config.
type ConfigTmp struct {
	PriceSource     string        `yaml:"price_source,omitempty"`
	PriceAPIURL     string        `yaml:"price_api_url,omitempty"`
	PriceCacheTTL   time.Duration `yaml:"price_cache_ttl,omitempty"`
	RoundSchedule   string        `yaml:"round_schedule,omitempty"`
	ResetSchedule   string        `yaml:"reset_schedule,omitempty"`
	TimeZone        string        `yaml:"timezone,omitempty"`
	ReferenceBTCStr string        `yaml:"reference_btc,omitempty"`
	ReferenceETHStr string        `yaml:"reference_eth,omitempty"`

	HistoryCap int `yaml:"history_cap,omitempty"`
	TradesCap  int `yaml:"trades_cap,omitempty"`
	WinnersCap int `yaml:"winners_cap,omitempty"`

	LLMAPIURL            string        `yaml:"llm_api_url,omitempty"`
	LLMAPIKey            string        `yaml:"llm_api_key,omitempty"`
	Model                string        `yaml:"model,omitempty"`
	MaxTokens            int           `yaml:"max_tokens,omitempty"`
	TemperatureStr       string        `yaml:"temperature,omitempty"`
	LLMTimeout           time.Duration `yaml:"llm_timeout,omitempty"`
	MaxParallelDecisions int           `yaml:"max_parallel_decisions,omitempty"`
	DecisionTimeout      time.Duration `yaml:"decision_timeout,omitempty"`

	StorageBackend string `yaml:"storage_backend,omitempty"`
	StorageDSN     string `yaml:"storage_dsn,omitempty"`
	JournalDir     string `yaml:"journal_dir,omitempty"`

	HTTPAddr         string   `yaml:"http_addr,omitempty"`
	CORSOrigins      []string `yaml:"cors_origins,omitempty"`
	AutocertDomains  []string `yaml:"autocert_domains,omitempty"`
	AutocertCacheDir string   `yaml:"autocert_cache_dir,omitempty"`

	Roster []BotTmp `yaml:"roster,omitempty"`
}

// BotTmp yaml representation of a roster entry.
type BotTmp struct {
	Name       string `yaml:"name"`
	Strategy   string `yaml:"strategy"`
	BalanceStr string `yaml:"balance,omitempty"`
}

// envOverrides deployment settings and secrets read from the environment.
type envOverrides struct {
	OpenAIAPIKey   string   `env:"OPENAI_API_KEY"`
	RedisURL       string   `env:"REDIS_URL"`
	PriceSource    string   `env:"TRADEWARS_PRICE_SOURCE"`
	Storage        string   `env:"TRADEWARS_STORAGE"`
	StorageDSN     string   `env:"TRADEWARS_STORAGE_DSN"`
	HTTPAddr       string   `env:"TRADEWARS_HTTP_ADDR"`
	TimeZone       string   `env:"TRADEWARS_TZ"`
	LLMAPIURL      string   `env:"TRADEWARS_LLM_API_URL"`
	Model          string   `env:"TRADEWARS_MODEL"`
	JournalDir     string   `env:"TRADEWARS_JOURNAL_DIR"`
	AutocertDomain []string `env:"TRADEWARS_AUTOCERT_DOMAINS" envSeparator:","`
	CORSOrigins    []string `env:"TRADEWARS_CORS_ORIGINS" envSeparator:","`

	BinanceAPIKey         string `env:"BINANCE_API_KEY"`
	BinanceAPISecret      string `env:"BINANCE_API_SECRET"`
	BybitAPIKey           string `env:"BYBIT_API_KEY"`
	BybitAPISecret        string `env:"BYBIT_API_SECRET"`
	HyperliquidPrivateKey string `env:"HYPERLIQUID_PRIVATE_KEY"`
}

// Options command line switches.
type Options struct {
	ConfigPath string
	Setup      bool
}

// ParseFlags reads the command line.
func ParseFlags(args []string) (Options, error) {
	fs := flag.NewFlagSet("tradewars", flag.ContinueOnError)
	path := fs.String("config", "", "path to yaml config")
	setup := fs.Bool("setup", false, "run the interactive configuration wizard")
	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	return Options{ConfigPath: *path, Setup: *setup}, nil
}

// Get parses --config from os.Args and loads the configuration.
func Get() (Config, error) {
	opts, err := ParseFlags(os.Args[1:])
	if err != nil {
		return Config{}, err
	}
	return Load(opts.ConfigPath)
}

// Load reads the yaml file at path (defaults only when path is empty) and applies
// environment overrides.
func Load(path string) (Config, error) {
	var tmp ConfigTmp
	if path != "" {
		f, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(f, &tmp); err != nil {
			return Config{}, errors.Wrap(err, "parse config")
		}
	}

	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}
	overrides.apply(&tmp)

	cfg, err := tmp.toConfig()
	if err != nil {
		return Config{}, err
	}
	cfg.Exchange = ExchangeCredentials{
		BinanceAPIKey:         overrides.BinanceAPIKey,
		BinanceAPISecret:      overrides.BinanceAPISecret,
		BybitAPIKey:           overrides.BybitAPIKey,
		BybitAPISecret:        overrides.BybitAPISecret,
		HyperliquidPrivateKey: overrides.HyperliquidPrivateKey,
	}
	return cfg, nil
}

func (o envOverrides) apply(tmp *ConfigTmp) {
	setIf := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setIf(&tmp.LLMAPIKey, o.OpenAIAPIKey)
	setIf(&tmp.PriceSource, o.PriceSource)
	setIf(&tmp.StorageBackend, o.Storage)
	setIf(&tmp.StorageDSN, o.StorageDSN)
	setIf(&tmp.HTTPAddr, o.HTTPAddr)
	setIf(&tmp.TimeZone, o.TimeZone)
	setIf(&tmp.LLMAPIURL, o.LLMAPIURL)
	setIf(&tmp.Model, o.Model)
	setIf(&tmp.JournalDir, o.JournalDir)
	if len(o.AutocertDomain) > 0 {
		tmp.AutocertDomains = o.AutocertDomain
	}
	if len(o.CORSOrigins) > 0 {
		tmp.CORSOrigins = o.CORSOrigins
	}

	// REDIS_URL selects the redis backend unless another backend is configured explicitly
	if o.RedisURL != "" && (tmp.StorageBackend == "" || tmp.StorageBackend == kv.BackendRedis) {
		tmp.StorageBackend = kv.BackendRedis
		if tmp.StorageDSN == "" {
			tmp.StorageDSN = o.RedisURL
		}
	}
}

func (c ConfigTmp) toConfig() (Config, error) {
	cfg := Config{
		PriceSource:          strings.ToLower(c.PriceSource),
		PriceAPIURL:          c.PriceAPIURL,
		PriceCacheTTL:        c.PriceCacheTTL,
		RoundSchedule:        c.RoundSchedule,
		ResetSchedule:        c.ResetSchedule,
		Reference:            competition.DefaultReferenceQuote,
		Limits:               arena.Limits{History: c.HistoryCap, Trades: c.TradesCap, Winners: c.WinnersCap},
		MaxParallelDecisions: c.MaxParallelDecisions,
		DecisionTimeout:      c.DecisionTimeout,
		StorageBackend:       strings.ToLower(c.StorageBackend),
		StorageDSN:           c.StorageDSN,
		JournalDir:           c.JournalDir,
		HTTPAddr:             c.HTTPAddr,
		CORSOrigins:          c.CORSOrigins,
		AutocertDomains:      c.AutocertDomains,
		AutocertCacheDir:     c.AutocertCacheDir,
		LLM: clients.LLMConfig{
			APIURL:      c.LLMAPIURL,
			APIKey:      c.LLMAPIKey,
			Model:       c.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: clients.DefaultTemperature,
			Timeout:     c.LLMTimeout,
		},
	}

	if cfg.PriceSource == "" {
		cfg.PriceSource = SourceCoinGecko
	}
	switch cfg.PriceSource {
	case SourceCoinGecko, SourceBinance, SourceBybit, SourceHyperliquid:
	default:
		return Config{}, fmt.Errorf("incorrect 'price_source' param in yaml config: %s", c.PriceSource)
	}
	if cfg.PriceCacheTTL <= 0 {
		cfg.PriceCacheTTL = pricer.DefaultCacheTTL
	}
	if cfg.RoundSchedule == "" {
		cfg.RoundSchedule = scheduler.DefaultRoundSpec
	}
	if cfg.ResetSchedule == "" {
		cfg.ResetSchedule = scheduler.DefaultResetSpec
	}

	cfg.Location = time.UTC
	if c.TimeZone != "" {
		loc, err := time.LoadLocation(c.TimeZone)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'timezone' param in yaml config: %s, error: %w", c.TimeZone, err)
		}
		cfg.Location = loc
	}

	if c.ReferenceBTCStr != "" {
		btc, err := decimal.NewFromString(c.ReferenceBTCStr)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'reference_btc' param in yaml config (must be a decimal), error: %w", err)
		}
		cfg.Reference.BTC = btc
	}
	if c.ReferenceETHStr != "" {
		eth, err := decimal.NewFromString(c.ReferenceETHStr)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'reference_eth' param in yaml config (must be a decimal), error: %w", err)
		}
		cfg.Reference.ETH = eth
	}
	if err := cfg.Reference.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "reference prices")
	}

	if c.HistoryCap < 0 || c.TradesCap < 0 || c.WinnersCap < 0 {
		return Config{}, errors.New("log caps must not be negative")
	}
	if cfg.Limits.History == 0 {
		cfg.Limits.History = arena.DefaultLimits.History
	}
	if cfg.Limits.Trades == 0 {
		cfg.Limits.Trades = arena.DefaultLimits.Trades
	}
	if cfg.Limits.Winners == 0 {
		cfg.Limits.Winners = arena.DefaultLimits.Winners
	}

	if c.TemperatureStr != "" {
		temp, err := decimal.NewFromString(c.TemperatureStr)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'temperature' param in yaml config (must be a decimal), error: %w", err)
		}
		cfg.LLM.Temperature = temp.InexactFloat64()
	}
	if cfg.LLM.APIURL == "" {
		cfg.LLM.APIURL = clients.DefaultAPIURL
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = clients.DefaultModel
	}
	if cfg.LLM.MaxTokens <= 0 {
		cfg.LLM.MaxTokens = clients.DefaultMaxTokens
	}
	if cfg.LLM.Timeout <= 0 {
		cfg.LLM.Timeout = defaultLLMTimeout
	}
	if cfg.MaxParallelDecisions <= 0 {
		cfg.MaxParallelDecisions = defaultMaxParallel
	}
	if cfg.DecisionTimeout <= 0 {
		cfg.DecisionTimeout = defaultDecisionTimeout
	}

	switch cfg.StorageBackend {
	case "":
		cfg.StorageBackend = kv.BackendFile
	case kv.BackendMemory, kv.BackendFile, kv.BackendSQLite:
	case kv.BackendRedis:
		if cfg.StorageDSN == "" {
			return Config{}, errors.New("redis storage requires storage_dsn or REDIS_URL")
		}
	default:
		return Config{}, fmt.Errorf("incorrect 'storage_backend' param in yaml config: %s", c.StorageBackend)
	}
	if cfg.StorageBackend == kv.BackendSQLite && cfg.StorageDSN == "" {
		cfg.StorageDSN = "tradewars.db"
	}
	if cfg.JournalDir == "" {
		cfg.JournalDir = defaultJournalDir
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = defaultHTTPAddr
	}

	for _, b := range c.Roster {
		balance := domain.DefaultStartingBalance
		if b.BalanceStr != "" {
			v, err := decimal.NewFromString(b.BalanceStr)
			if err != nil {
				return Config{}, fmt.Errorf("incorrect 'balance' of bot %s in yaml config (must be a decimal), error: %w", b.Name, err)
			}
			balance = v
		}
		cfg.Roster = append(cfg.Roster, domain.NewBot(b.Name, domain.Strategy(strings.ToLower(b.Strategy)), balance))
	}
	if err := domain.ValidateRoster(cfg.Roster); err != nil {
		return Config{}, errors.Wrap(err, "roster")
	}

	return cfg, nil
}
