// Package round runs one trading round: price fetch, daily reset check, trend summary,
// concurrent per-bot decisions, settlement and a single roster write.
package round

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/tradewars/internal/clients"
	"github.com/vadiminshakov/tradewars/internal/domain"
	"github.com/vadiminshakov/tradewars/internal/services/competition"
	"github.com/vadiminshakov/tradewars/internal/services/pricer"
	"github.com/vadiminshakov/tradewars/internal/services/promptbuilder"
	"github.com/vadiminshakov/tradewars/internal/services/settlement"
	"github.com/vadiminshakov/tradewars/internal/services/trend"
)

// ErrRoundInProgress is returned when another round is already running.
var ErrRoundInProgress = errors.New("round already in progress")

// DecisionUnavailable describes a bot that got no answer from the oracle.
const DecisionUnavailable = "HOLD (decision unavailable)"

const (
	defaultDecisionTimeout = 15 * time.Second
	defaultMaxParallel     = 4
)

// Store is the persistence the round needs.
type Store interface {
	PriceHistory(ctx context.Context) ([]domain.PriceSnapshot, error)
	AppendSnapshot(ctx context.Context, snap domain.PriceSnapshot) error
	Bots(ctx context.Context) ([]domain.Bot, bool, error)
	DefaultRoster() []domain.Bot
	SaveBots(ctx context.Context, bots []domain.Bot) error
	AppendTrades(ctx context.Context, records ...domain.TradeRecord) error
}

// Resetter rolls the competition day over.
type Resetter interface {
	MaybeReset(ctx context.Context, now time.Time, quote *domain.PriceQuote) (competition.ResetResult, error)
}

// Journal receives every settled trade.
type Journal interface {
	Append(events ...domain.TradeEvent) (uint64, error)
}

// Options tunes a round.
type Options struct {
	// DecisionTimeout bounds each oracle call.
	DecisionTimeout time.Duration
	// MaxParallel bounds concurrent oracle calls.
	MaxParallel int
	// Now returns the round time; time.Now when nil.
	Now func() time.Time
}

// Outcome result of one bot in a round.
type Outcome struct {
	Bot         string     `json:"bot"`
	Decision    string     `json:"decision"`
	Action      string     `json:"action"`
	Description string     `json:"description"`
	Executed    bool       `json:"executed"`
	Before      domain.Bot `json:"before"`
	After       domain.Bot `json:"after"`
}

// Report summary of a finished round.
type Report struct {
	ID        string            `json:"id"`
	StartedAt time.Time         `json:"started_at"`
	Quote     domain.PriceQuote `json:"quote"`
	Trend     string            `json:"trend"`
	Reset     bool              `json:"reset"`
	Outcomes  []Outcome         `json:"outcomes"`
}

// Engine runs rounds one at a time.
type Engine struct {
	source  pricer.Source
	clock   Resetter
	store   Store
	oracle  clients.DecisionOracle
	prompts *promptbuilder.PromptBuilder
	journal Journal
	opts    Options
	logger  *zap.Logger

	mu sync.Mutex
}

// NewEngine wires a round engine. clock and journal may be nil.
func NewEngine(
	source pricer.Source,
	clock Resetter,
	store Store,
	oracle clients.DecisionOracle,
	prompts *promptbuilder.PromptBuilder,
	journal Journal,
	opts Options,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prompts == nil {
		prompts = promptbuilder.NewPromptBuilder(logger)
	}
	if opts.DecisionTimeout <= 0 {
		opts.DecisionTimeout = defaultDecisionTimeout
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = defaultMaxParallel
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Engine{
		source:  source,
		clock:   clock,
		store:   store,
		oracle:  oracle,
		prompts: prompts,
		journal: journal,
		opts:    opts,
		logger:  logger,
	}
}

// RunRound executes one round. A concurrent call returns ErrRoundInProgress at once.
// Nothing is persisted when ctx is cancelled before the decisions complete.
func (e *Engine) RunRound(ctx context.Context) (*Report, error) {
	if !e.mu.TryLock() {
		return nil, ErrRoundInProgress
	}
	defer e.mu.Unlock()

	now := e.opts.Now()
	report := &Report{ID: uuid.NewString(), StartedAt: now}
	logger := e.logger.With(zap.String("round", report.ID))

	quote, fetchErr := e.fetchQuote(ctx)

	if e.clock != nil {
		var live *domain.PriceQuote
		if fetchErr == nil {
			live = &quote
		}
		res, err := e.clock.MaybeReset(ctx, now, live)
		if err != nil {
			logger.Error("daily reset check failed", zap.Error(err))
		}
		report.Reset = res.Reset
	}

	if fetchErr != nil {
		logger.Error("price fetch failed, skipping round", zap.Error(fetchErr))
		return nil, errors.Wrap(fetchErr, "fetch prices")
	}
	report.Quote = quote

	history, err := e.store.PriceHistory(ctx)
	if err != nil {
		logger.Warn("failed to read price history", zap.Error(err))
		history = nil
	}
	report.Trend = trend.Summarize(history, quote, now)

	if err := e.store.AppendSnapshot(ctx, domain.NewPriceSnapshot(quote, now)); err != nil {
		logger.Warn("failed to store price snapshot", zap.Error(err))
	}

	bots, ok, err := e.store.Bots(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load roster")
	}
	if !ok {
		bots = e.store.DefaultRoster()
	}

	report.Outcomes = e.decideAll(ctx, logger, bots, quote, report.Trend)

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "round cancelled before settlement was persisted")
	}

	updated := make([]domain.Bot, len(report.Outcomes))
	records := make([]domain.TradeRecord, len(report.Outcomes))
	events := make([]domain.TradeEvent, len(report.Outcomes))
	for i, o := range report.Outcomes {
		updated[i] = o.After
		records[i] = domain.NewTradeRecord(o.Bot, o.Description, now)
		events[i] = tradeEvent(report, o)
	}

	// trades are recorded only once the settlement they describe is stored
	if err := e.store.SaveBots(ctx, updated); err != nil {
		return report, errors.Wrap(err, "save roster")
	}

	if err := e.store.AppendTrades(ctx, records...); err != nil {
		logger.Error("failed to record trades", zap.Error(err))
	}

	if e.journal != nil {
		if _, err := e.journal.Append(events...); err != nil {
			logger.Error("failed to journal trades", zap.Error(err))
		}
	}

	logger.Info("round complete",
		zap.Int("bots", len(report.Outcomes)),
		zap.String("quote", quote.String()),
		zap.Bool("reset", report.Reset),
	)

	return report, nil
}

// MaybeReset runs the daily reset check under the round lock.
// It blocks until a running round has persisted.
func (e *Engine) MaybeReset(ctx context.Context, now time.Time, quote *domain.PriceQuote) (competition.ResetResult, error) {
	if e.clock == nil {
		return competition.ResetResult{}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.clock.MaybeReset(ctx, now, quote)
}

// SaveBots replaces the roster under the round lock.
func (e *Engine) SaveBots(ctx context.Context, bots []domain.Bot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.store.SaveBots(ctx, bots)
}

func (e *Engine) fetchQuote(ctx context.Context) (domain.PriceQuote, error) {
	quote, err := e.source.Fetch(ctx)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	if err := quote.Validate(); err != nil {
		return domain.PriceQuote{}, err
	}
	return quote, nil
}

// decideAll asks every bot concurrently; outcomes keep roster order.
func (e *Engine) decideAll(ctx context.Context, logger *zap.Logger, bots []domain.Bot, quote domain.PriceQuote, trendText string) []Outcome {
	outcomes := make([]Outcome, len(bots))

	var g errgroup.Group
	g.SetLimit(e.opts.MaxParallel)

	for i, bot := range bots {
		g.Go(func() error {
			outcomes[i] = e.decide(ctx, logger.With(zap.String("bot", bot.Name)), bot, quote, trendText)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (e *Engine) decide(ctx context.Context, logger *zap.Logger, bot domain.Bot, quote domain.PriceQuote, trendText string) (out Outcome) {
	out = unavailable(bot)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("bot decision panicked", zap.Any("panic", r))
			out = unavailable(bot)
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, e.opts.DecisionTimeout)
	defer cancel()

	persona := e.prompts.SystemPrompt(bot)
	prompt := e.prompts.BuildUserPrompt(promptbuilder.MarketContext{Bot: bot, Quote: quote, Trend: trendText})

	raw, err := e.oracle.Decide(callCtx, persona, prompt)
	if err != nil {
		logger.Warn("decision unavailable", zap.Error(err))
		return out
	}

	action := domain.ParseDecision(raw)
	if action.Malformed {
		logger.Warn("unrecognized decision", zap.String("raw", raw))
	}

	updated, description, err := settlement.Apply(bot, action, quote)
	out.Decision = raw
	out.Action = action.String()
	out.Description = description
	if err != nil {
		if settlement.IsRejection(err) {
			logger.Info("trade rejected", zap.String("action", action.String()), zap.Error(err))
		} else {
			logger.Error("settlement failed", zap.Error(err))
		}
		return out
	}

	out.After = updated
	out.Executed = action.Kind != domain.ActionHold
	logger.Info("trade settled", zap.String("description", description))

	return out
}

func unavailable(bot domain.Bot) Outcome {
	return Outcome{
		Bot:         bot.Name,
		Action:      domain.Hold().String(),
		Description: DecisionUnavailable,
		Before:      bot,
		After:       bot,
	}
}

func tradeEvent(report *Report, o Outcome) domain.TradeEvent {
	return domain.TradeEvent{
		ID:          uuid.NewString(),
		RoundID:     report.ID,
		Timestamp:   report.StartedAt,
		Bot:         o.Bot,
		Decision:    o.Action,
		Description: o.Description,
		Executed:    o.Executed,
		BTCPrice:    report.Quote.BTC.String(),
		ETHPrice:    report.Quote.ETH.String(),
	}
}

// String returns a one-line summary of the report.
func (r *Report) String() string {
	return fmt.Sprintf("round %s at %s: %d bots", r.ID, r.StartedAt.Format(time.RFC3339), len(r.Outcomes))
}
