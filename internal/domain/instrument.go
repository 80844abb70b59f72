// Package domain defines core data structures shared by the competition services.
package domain

import "strings"

// Instrument tradable coin symbol.
type Instrument string

const (
	InstrumentBTC Instrument = "BTC"
	InstrumentETH Instrument = "ETH"
)

// Instruments lists every tradable instrument in display order.
var Instruments = []Instrument{InstrumentBTC, InstrumentETH}

// ParseInstrument matches a symbol case-insensitively.
func ParseInstrument(s string) (Instrument, bool) {
	switch Instrument(strings.ToUpper(strings.TrimSpace(s))) {
	case InstrumentBTC:
		return InstrumentBTC, true
	case InstrumentETH:
		return InstrumentETH, true
	}
	return "", false
}

// String returns the ticker symbol.
func (i Instrument) String() string {
	return string(i)
}

// USDTSymbol returns the exchange symbol quoted in USDT, e.g. BTCUSDT.
func (i Instrument) USDTSymbol() string {
	return string(i) + "USDT"
}
