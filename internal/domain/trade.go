package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// tradeTimeLayout wall-clock layout of trade log entries.
const tradeTimeLayout = "15:04:05"

// TradeRecord entry of the trade log. Action holds the human-readable description.
type TradeRecord struct {
	BotName string `json:"botName"`
	Action  string `json:"action"`
	Time    string `json:"time"`
}

// NewTradeRecord stamps the description with the wall-clock time.
func NewTradeRecord(botName, description string, at time.Time) TradeRecord {
	return TradeRecord{
		BotName: botName,
		Action:  description,
		Time:    at.Format(tradeTimeLayout),
	}
}

// String returns a human-readable string representation.
func (t TradeRecord) String() string {
	return fmt.Sprintf("%s: %s (%s)", t.BotName, t.Action, t.Time)
}

// WinnerRecord archived result of a finished competition day.
type WinnerRecord struct {
	Date   string          `json:"date"`
	Winner string          `json:"winner"`
	Value  decimal.Decimal `json:"value"`
}

// TradeEvent settled decision of one bot, journaled for streaming.
type TradeEvent struct {
	ID          string    `json:"id"`
	RoundID     string    `json:"round_id"`
	Timestamp   time.Time `json:"ts"`
	Bot         string    `json:"bot"`
	Decision    string    `json:"decision"`
	Description string    `json:"description"`
	Executed    bool      `json:"executed"`
	BTCPrice    string    `json:"btc_price,omitempty"`
	ETHPrice    string    `json:"eth_price,omitempty"`
}

// TradeEventRecord bundles a journaled event with its index.
type TradeEventRecord struct {
	Index uint64
	Event TradeEvent
}
