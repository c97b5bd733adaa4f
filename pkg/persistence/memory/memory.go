// Package memory provides an in-memory persistence implementation used by
// tests and single-process local runs. All repositories share one mutex; the
// store is safe for concurrent use and returns deep-enough copies so callers
// never observe each other's mutations.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/zapdesk/flowengine/pkg/models"
	"github.com/zapdesk/flowengine/pkg/persistence"
)

// Persistence implements persistence.Persistence backed by process memory.
type Persistence struct {
	mu sync.RWMutex

	flows    map[string]*models.Flow          // flow id -> flow with graph
	versions map[string][]*models.FlowVersion // flow id -> snapshots, ascending
	sessions map[string]*models.Session       // session id -> session
	timers   map[string]*persistence.Timer    // timer id -> timer

	flowRepo    *FlowRepository
	versionRepo *VersionRepository
	sessionRepo *SessionRepository
	timerRepo   *TimerRepository

	now func() time.Time
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	p := &Persistence{
		flows:    make(map[string]*models.Flow),
		versions: make(map[string][]*models.FlowVersion),
		sessions: make(map[string]*models.Session),
		timers:   make(map[string]*persistence.Timer),
		now:      time.Now,
	}

	p.flowRepo = &FlowRepository{store: p}
	p.versionRepo = &VersionRepository{store: p}
	p.sessionRepo = &SessionRepository{store: p}
	p.timerRepo = &TimerRepository{store: p}

	return p
}

func (p *Persistence) FlowRepository() persistence.FlowRepository {
	return p.flowRepo
}

func (p *Persistence) VersionRepository() persistence.VersionRepository {
	return p.versionRepo
}

func (p *Persistence) SessionRepository() persistence.SessionRepository {
	return p.sessionRepo
}

func (p *Persistence) TimerRepository() persistence.TimerRepository {
	return p.timerRepo
}

// HealthCheck always succeeds for the in-memory store.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

// Close discards all stored data.
func (p *Persistence) Close(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.flows = make(map[string]*models.Flow)
	p.versions = make(map[string][]*models.FlowVersion)
	p.sessions = make(map[string]*models.Session)
	p.timers = make(map[string]*persistence.Timer)

	return nil
}

func copyFlow(f *models.Flow, withGraph bool) *models.Flow {
	clone := *f
	clone.TriggerKeywords = append([]string(nil), f.TriggerKeywords...)
	clone.ConnectionIDs = append([]string(nil), f.ConnectionIDs...)

	if withGraph {
		clone.Nodes = copyNodes(f.Nodes)
		clone.Edges = copyEdges(f.Edges)
	} else {
		clone.Nodes = nil
		clone.Edges = nil
	}

	return &clone
}

func copyNodes(nodes []*models.Node) []*models.Node {
	if nodes == nil {
		return nil
	}

	out := make([]*models.Node, len(nodes))
	for i, n := range nodes {
		clone := *n
		out[i] = &clone
	}

	return out
}

func copyEdges(edges []*models.Edge) []*models.Edge {
	if edges == nil {
		return nil
	}

	out := make([]*models.Edge, len(edges))
	for i, e := range edges {
		clone := *e
		out[i] = &clone
	}

	return out
}

func copySession(s *models.Session) *models.Session {
	clone := *s

	clone.Variables = make(map[string]string, len(s.Variables))
	for k, v := range s.Variables {
		clone.Variables[k] = v
	}

	if s.ResumeAt != nil {
		resumeAt := *s.ResumeAt
		clone.ResumeAt = &resumeAt
	}

	if s.EndedAt != nil {
		endedAt := *s.EndedAt
		clone.EndedAt = &endedAt
	}

	return &clone
}
