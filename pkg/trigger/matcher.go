// Package trigger matches inbound messages against flow trigger keywords.
package trigger

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zapdesk/flowengine/pkg/models"
)

// Matcher selects which active flow, if any, should start for an inbound
// message. Candidates are the organization's active, non-draft flows whose
// connection list is empty or contains the inbound connection.
//
// Eligible flows are ordered most-recently-updated first (flow ID ascending
// as the final tiebreaker) so that matching is deterministic; the first
// matching flow wins.
type Matcher struct {
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*regexp.Regexp
}

// NewMatcher creates a trigger matcher.
func NewMatcher(logger *slog.Logger) *Matcher {
	return &Matcher{
		logger: logger.With("module", "trigger_matcher"),
		cache:  make(map[string]*regexp.Regexp),
	}
}

// Match returns the flow that should start for the inbound text, or nil when
// no trigger matches.
func (m *Matcher) Match(flows []*models.Flow, connectionID, inboundText string) *models.Flow {
	candidates := make([]*models.Flow, 0, len(flows))

	for _, f := range flows {
		if !f.IsActive || f.IsDraft || !f.TriggerEnabled {
			continue
		}

		if !f.AppliesToConnection(connectionID) {
			continue
		}

		candidates = append(candidates, f)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].UpdatedAt.Equal(candidates[j].UpdatedAt) {
			return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt)
		}

		return candidates[i].ID < candidates[j].ID
	})

	for _, f := range candidates {
		if m.matchFlow(f, inboundText) {
			m.logger.Debug("Trigger matched",
				"flow_id", f.ID,
				"flow_name", f.Name,
				"match_mode", f.TriggerMatchMode)

			return f
		}
	}

	return nil
}

func (m *Matcher) matchFlow(flow *models.Flow, text string) bool {
	for _, keyword := range flow.TriggerKeywords {
		if keyword == "" {
			continue
		}

		switch flow.TriggerMatchMode {
		case models.TriggerMatchExact:
			if strings.EqualFold(strings.TrimSpace(text), keyword) {
				return true
			}
		case models.TriggerMatchContains:
			if strings.Contains(strings.ToLower(text), strings.ToLower(keyword)) {
				return true
			}
		case models.TriggerMatchRegex:
			re := m.compile(keyword)
			if re != nil && re.MatchString(text) {
				return true
			}
		default:
			m.logger.Warn("Unknown trigger match mode",
				"flow_id", flow.ID,
				"match_mode", flow.TriggerMatchMode)
		}
	}

	return false
}

// compile returns the cached pattern for a keyword. Invalid patterns are
// logged once and never match.
func (m *Matcher) compile(pattern string) *regexp.Regexp {
	m.mu.Lock()
	defer m.mu.Unlock()

	if re, ok := m.cache[pattern]; ok {
		return re
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		m.logger.Warn("Invalid trigger regex, skipping", "pattern", pattern, "error", err)

		re = nil
	}

	m.cache[pattern] = re

	return re
}
