// Package promptbuilder renders the persona and market prompts sent to the decision model.
package promptbuilder

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/tradewars/internal/domain"
)

// decisionFormat lists the only replies the parser accepts.
const decisionFormat = `Make ONE trading decision. Respond with ONLY one of these formats:
BUY BTC 1000
BUY ETH 500
SELL BTC 0.01
SELL ETH 0.5
HOLD

Keep trades within your available balance/holdings.
`

// PromptBuilder constructs the prompts for one decision request.
type PromptBuilder struct {
	logger *zap.Logger
}

// NewPromptBuilder creates a new PromptBuilder instance
func NewPromptBuilder(logger *zap.Logger) *PromptBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromptBuilder{logger: logger}
}

// MarketContext contains all data needed for prompt building
type MarketContext struct {
	Bot   domain.Bot
	Quote domain.PriceQuote
	Trend string
}

// SystemPrompt returns the persona prompt of the bot.
func (pb *PromptBuilder) SystemPrompt(bot domain.Bot) string {
	return SystemPrompt(bot)
}

// BuildUserPrompt constructs the complete user prompt from market context
func (pb *PromptBuilder) BuildUserPrompt(ctx MarketContext) string {
	var sb strings.Builder

	sb.WriteString("\n")
	sb.WriteString(formatPortfolio(ctx.Bot, ctx.Quote))
	sb.WriteString(formatPrices(ctx.Quote))
	if ctx.Trend != "" {
		sb.WriteString("Market Trend:\n")
		sb.WriteString(ctx.Trend)
		sb.WriteString("\n\n")
	}
	sb.WriteString(fmt.Sprintf("Total Portfolio Value: $%s\n\n", ctx.Bot.Value(ctx.Quote).StringFixed(2)))
	sb.WriteString(decisionFormat)

	prompt := sb.String()
	pb.logger.Debug("user prompt built",
		zap.String("bot", ctx.Bot.Name),
		zap.String("persona_version", PersonaVersion),
		zap.Int("length", len(prompt)),
	)

	return prompt
}

func formatPortfolio(bot domain.Bot, quote domain.PriceQuote) string {
	var sb strings.Builder

	sb.WriteString("Current Portfolio:\n")
	sb.WriteString(fmt.Sprintf("- Cash: $%s\n", bot.Balance.StringFixed(2)))
	for _, instrument := range domain.Instruments {
		qty := bot.Holding(instrument)
		sb.WriteString(fmt.Sprintf("- %s: %s (worth $%s)\n",
			instrument.String(),
			qty.StringFixed(4),
			worth(qty, quote.Price(instrument)).StringFixed(2),
		))
	}
	sb.WriteString("\n")

	return sb.String()
}

func formatPrices(quote domain.PriceQuote) string {
	var sb strings.Builder

	sb.WriteString("Current Prices:\n")
	for _, instrument := range domain.Instruments {
		sb.WriteString(fmt.Sprintf("- %s: $%s\n", instrument.String(), quote.Price(instrument).String()))
	}
	sb.WriteString("\n")

	return sb.String()
}

func worth(qty, price decimal.Decimal) decimal.Decimal {
	return qty.Mul(price)
}
