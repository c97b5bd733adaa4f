package trigger

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zapdesk/flowengine/pkg/models"
)

func activeFlow(id string, mode models.TriggerMatchMode, keywords ...string) *models.Flow {
	return &models.Flow{
		ID:               id,
		OrganizationID:   "org-1",
		Name:             "flow " + id,
		TriggerEnabled:   true,
		TriggerKeywords:  keywords,
		TriggerMatchMode: mode,
		IsActive:         true,
		UpdatedAt:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestMatchExactMode(t *testing.T) {
	m := NewMatcher(slog.Default())
	flows := []*models.Flow{activeFlow("f1", models.TriggerMatchExact, "oi")}

	assert.NotNil(t, m.Match(flows, "conn-1", "oi"))
	assert.NotNil(t, m.Match(flows, "conn-1", "Oi"), "exact match is case-insensitive")
	assert.Nil(t, m.Match(flows, "conn-1", "oi tudo bem"), "exact mode requires a full match")
}

func TestMatchContainsMode(t *testing.T) {
	m := NewMatcher(slog.Default())
	flows := []*models.Flow{activeFlow("f1", models.TriggerMatchContains, "oi")}

	assert.NotNil(t, m.Match(flows, "conn-1", "Oi"))
	assert.NotNil(t, m.Match(flows, "conn-1", "oi tudo bem"))
	assert.Nil(t, m.Match(flows, "conn-1", "bom dia"))
}

func TestMatchRegexMode(t *testing.T) {
	m := NewMatcher(slog.Default())
	flows := []*models.Flow{activeFlow("f1", models.TriggerMatchRegex, `(?i)^pedido\s+\d+$`)}

	assert.NotNil(t, m.Match(flows, "conn-1", "Pedido 1234"))
	assert.Nil(t, m.Match(flows, "conn-1", "pedido"))
}

func TestMatchInvalidRegexNeverMatches(t *testing.T) {
	m := NewMatcher(slog.Default())
	flows := []*models.Flow{activeFlow("f1", models.TriggerMatchRegex, `([`)}

	assert.Nil(t, m.Match(flows, "conn-1", "(["))
}

func TestMatchSkipsIneligibleFlows(t *testing.T) {
	m := NewMatcher(slog.Default())

	inactive := activeFlow("f1", models.TriggerMatchExact, "oi")
	inactive.IsActive = false

	draft := activeFlow("f2", models.TriggerMatchExact, "oi")
	draft.IsDraft = true

	disabled := activeFlow("f3", models.TriggerMatchExact, "oi")
	disabled.TriggerEnabled = false

	otherConn := activeFlow("f4", models.TriggerMatchExact, "oi")
	otherConn.ConnectionIDs = []string{"conn-9"}

	flows := []*models.Flow{inactive, draft, disabled, otherConn}
	assert.Nil(t, m.Match(flows, "conn-1", "oi"))

	assert.NotNil(t, m.Match(flows, "conn-9", "oi"), "connection-scoped flow matches its own connection")
}

func TestMatchTieBreakMostRecentlyUpdatedFirst(t *testing.T) {
	m := NewMatcher(slog.Default())

	older := activeFlow("f1", models.TriggerMatchExact, "oi")
	older.UpdatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	newer := activeFlow("f2", models.TriggerMatchExact, "oi")
	newer.UpdatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	got := m.Match([]*models.Flow{older, newer}, "conn-1", "oi")
	require.NotNil(t, got)
	assert.Equal(t, "f2", got.ID)

	// Equal timestamps fall back to flow ID order.
	newer.UpdatedAt = older.UpdatedAt

	got = m.Match([]*models.Flow{newer, older}, "conn-1", "oi")
	require.NotNil(t, got)
	assert.Equal(t, "f1", got.ID)
}
