// Package fs holds name filters applied to objects before they are
// recorded.
package fs

import (
	"fmt"
	"regexp"
	"strings"

	"jch-go/internal/history"
)

// DefaultExcludePattern names system settings that change on their own
// and would flood the history.
const DefaultExcludePattern = "queue|nodeMonitors|UpdateCenter|global-build-stats"

// ExcludeMatcher matches object names against a set of regular
// expressions. A name is excluded if any expression matches part of it.
type ExcludeMatcher struct {
	patterns []*regexp.Regexp
}

var _ history.NameMatcher = (*ExcludeMatcher)(nil)

// NewExcludeMatcher compiles raw patterns. Blank entries and entries
// starting with '#' are skipped.
func NewExcludeMatcher(rawPatterns []string) (*ExcludeMatcher, error) {
	m := &ExcludeMatcher{}
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", raw, err)
		}
		m.patterns = append(m.patterns, re)
	}
	return m, nil
}

// Match reports whether name is excluded.
func (m *ExcludeMatcher) Match(name string) bool {
	for _, re := range m.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Len returns the number of active patterns.
func (m *ExcludeMatcher) Len() int {
	return len(m.patterns)
}
