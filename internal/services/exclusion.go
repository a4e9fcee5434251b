package services

import (
	"fmt"
	"regexp"
	"strings"

	"wealthsync/internal/config"
	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/fundcode"
)

// ExclusionPolicy decides which holding symbols are never quoted or priced.
// It is built from the job configuration of a single run.
type ExclusionPolicy struct {
	exact    map[string]struct{}
	patterns []*regexp.Regexp
}

// NewExclusionPolicy compiles the configured exact symbols and patterns.
// Both are matched case-insensitively.
func NewExclusionPolicy(jobs config.Jobs) (*ExclusionPolicy, error) {
	p := &ExclusionPolicy{exact: make(map[string]struct{}, len(jobs.ExcludedSymbols))}
	for _, sym := range jobs.ExcludedSymbols {
		if s := normalizeSymbol(sym); s != "" {
			p.exact[s] = struct{}{}
		}
	}
	for _, raw := range jobs.ExcludedSymbolPatterns {
		re, err := regexp.Compile("(?i)" + raw)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidExclusionRules, fmt.Errorf("pattern %q: %w", raw, err))
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

// IsExcluded reports whether symbol is blank, a TSP synthetic fund code,
// configured by name, or matched by a configured pattern.
func (p *ExclusionPolicy) IsExcluded(symbol string) bool {
	s := normalizeSymbol(symbol)
	if s == "" || fundcode.IsSyntheticSymbol(s) {
		return true
	}
	if _, ok := p.exact[s]; ok {
		return true
	}
	trimmed := strings.TrimSpace(symbol)
	for _, re := range p.patterns {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
