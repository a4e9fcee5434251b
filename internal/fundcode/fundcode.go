// Package fundcode defines the canonical retirement fund codes (TSP core and
// lifecycle funds) and the single normalization used before any price lookup.
package fundcode

import (
	"strings"
	"unicode"
)

// Code is a canonical fund code: uppercase, no separators, no "FUND" suffix.
type Code string

const (
	G       Code = "G"
	F       Code = "F"
	C       Code = "C"
	S       Code = "S"
	I       Code = "I"
	LIncome Code = "LINCOME"
	L2025   Code = "L2025"
	L2030   Code = "L2030"
	L2035   Code = "L2035"
	L2040   Code = "L2040"
	L2045   Code = "L2045"
	L2050   Code = "L2050"
	L2055   Code = "L2055"
	L2060   Code = "L2060"
	L2065   Code = "L2065"
	L2070   Code = "L2070"
	L2075   Code = "L2075"
)

// All lists every known code, core funds first.
var All = []Code{
	G, F, C, S, I,
	LIncome, L2025, L2030, L2035, L2040, L2045, L2050, L2055, L2060, L2065, L2070, L2075,
}

var known = func() map[Code]struct{} {
	m := make(map[Code]struct{}, len(All))
	for _, c := range All {
		m[c] = struct{}{}
	}
	return m
}()

// Normalize maps a raw code ("L-INCOME", "L Income", "g fund", "L_2030") onto
// its canonical Code. ok is false when the result is not a known fund.
func Normalize(raw string) (Code, bool) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	s := b.String()
	if len(s) == 5 && strings.HasSuffix(s, "FUND") {
		s = s[:1]
	}
	c := Code(s)
	_, ok := known[c]
	return c, ok
}

// syntheticSymbols are ticker-like strings brokers and aggregators use for TSP
// funds. None of them is quotable on a market data feed.
var syntheticSymbols = []string{
	"GFUND", "FFUND", "CFUND", "SFUND", "IFUND",
	"LINCOME", "L-INCOME",
	"L2025", "L2030", "L2035", "L2040", "L2045", "L2050",
	"L2055", "L2060", "L2065", "L2070", "L2075",
}

// IsSyntheticSymbol reports whether symbol contains any TSP synthetic fund code.
func IsSyntheticSymbol(symbol string) bool {
	upper := strings.ToUpper(symbol)
	for _, s := range syntheticSymbols {
		if strings.Contains(upper, s) {
			return true
		}
	}
	return false
}
