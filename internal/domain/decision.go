package domain

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// quoteCutset and punctuationCutset are stripped from tokens so that replies
// like "`BUY BTC 1000`." still parse.
const (
	quoteCutset       = "`*\"'()[]"
	punctuationCutset = ".,;:!"
)

// maxAmountLength bounds the amount token so hostile replies cannot force huge decimals.
const maxAmountLength = 32

// amountPattern plain decimal notation; exponents and signs are rejected.
var amountPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ParseDecision turns an oracle reply into a trading action.
// The grammar is "HOLD" | ("BUY"|"SELL") ("BTC"|"ETH") <positive number>.
// It never fails: anything outside the grammar yields a malformed hold that keeps the raw text.
func ParseDecision(raw string) TradeAction {
	raw = strings.TrimSpace(raw)
	tokens := strings.Fields(raw)
	if len(tokens) == 0 {
		return malformed(raw)
	}

	switch strings.ToUpper(cleanToken(tokens[0])) {
	case actionStringHold:
		action := Hold()
		action.Raw = raw
		return action
	case actionStringBuy:
		return parseTrade(ActionBuy, tokens, raw)
	case actionStringSell:
		return parseTrade(ActionSell, tokens, raw)
	default:
		return malformed(raw)
	}
}

func parseTrade(kind ActionKind, tokens []string, raw string) TradeAction {
	if len(tokens) < 3 {
		return malformed(raw)
	}

	instrument, ok := ParseInstrument(cleanToken(tokens[1]))
	if !ok {
		return malformed(raw)
	}

	amount, ok := parseAmount(tokens[2])
	if !ok {
		return malformed(raw)
	}

	return TradeAction{
		Kind:       kind,
		Instrument: instrument,
		Amount:     amount,
		Raw:        raw,
	}
}

func parseAmount(token string) (decimal.Decimal, bool) {
	token = cleanToken(token)
	token = strings.TrimPrefix(token, "$")
	token = strings.ReplaceAll(token, ",", "")
	if len(token) > maxAmountLength || !amountPattern.MatchString(token) {
		return decimal.Zero, false
	}

	amount, err := decimal.NewFromString(token)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, false
	}
	return amount, true
}

func cleanToken(token string) string {
	token = strings.TrimLeft(token, quoteCutset)
	return strings.TrimRight(token, quoteCutset+punctuationCutset)
}

func malformed(raw string) TradeAction {
	return TradeAction{Kind: ActionHold, Raw: raw, Malformed: true}
}
