package promptbuilder

import (
	"fmt"

	"github.com/vadiminshakov/tradewars/internal/domain"
)

// PersonaVersion identifies the revision of the persona texts sent to the model.
const PersonaVersion = "v1"

// Persona system prompt template for one strategy. %s is replaced with the bot name.
type Persona struct {
	Strategy domain.Strategy
	Template string
}

// Personas maps each strategy to its persona.
var Personas = map[domain.Strategy]Persona{
	domain.StrategyConservative: {
		Strategy: domain.StrategyConservative,
		Template: "You are %s, a conservative crypto trader. You avoid risk, buy dips cautiously, " +
			"and take small profits. Never risk more than 30%% of portfolio on one trade.",
	},
	domain.StrategyAggressive: {
		Strategy: domain.StrategyAggressive,
		Template: "You are %s, an aggressive crypto trader. You chase pumps, take big risks, " +
			"and go for maximum gains. You're willing to go all-in.",
	},
}

// PersonaFor returns the persona of the strategy. Unknown strategies get the conservative one.
func PersonaFor(strategy domain.Strategy) Persona {
	if p, ok := Personas[strategy]; ok {
		return p
	}
	return Personas[domain.StrategyConservative]
}

// SystemPrompt renders the persona prompt for the bot.
func SystemPrompt(bot domain.Bot) string {
	return fmt.Sprintf(PersonaFor(bot.Strategy).Template, bot.Name)
}
