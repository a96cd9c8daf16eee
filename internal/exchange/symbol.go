package exchange

import (
	"fmt"
	"strings"
)

// Market is a unified symbol such as "BTC/USDT" (spot) or "BTC/USDT:USDT" (perpetual).
type Market struct {
	Base   string
	Quote  string
	Settle string
}

// ParseMarket splits a unified symbol into its parts.
func ParseMarket(symbol string) (Market, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	pair, settle, _ := strings.Cut(s, ":")
	base, quote, ok := strings.Cut(pair, "/")
	if !ok || base == "" || quote == "" {
		return Market{}, fmt.Errorf("symbol %q is not BASE/QUOTE[:SETTLE]", symbol)
	}
	return Market{Base: base, Quote: quote, Settle: settle}, nil
}

// Perpetual reports whether the market is a settled swap.
func (m Market) Perpetual() bool { return m.Settle != "" }

// Inverse reports a coin-margined swap.
func (m Market) Inverse() bool { return m.Settle != "" && m.Settle == m.Base }

// Concat joins base and quote without a separator ("BTCUSDT").
func (m Market) Concat() string { return m.Base + m.Quote }
