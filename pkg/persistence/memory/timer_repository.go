package memory

import (
	"context"
	"sort"
	"time"

	"github.com/zapdesk/flowengine/pkg/persistence"
)

// TimerRepository is the in-memory durable timer store.
type TimerRepository struct {
	store *Persistence
}

func (r *TimerRepository) SaveTimer(_ context.Context, timer *persistence.Timer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	clone := *timer
	r.store.timers[timer.ID] = &clone

	return nil
}

// DueTimers claims timers due at or before now, removing them from the
// pending set so a second poller never sees them.
func (r *TimerRepository) DueTimers(_ context.Context, now time.Time) ([]*persistence.Timer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var due []*persistence.Timer

	for id, t := range r.store.timers {
		if !t.FireAt.After(now) {
			due = append(due, t)
			delete(r.store.timers, id)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if !due[i].FireAt.Equal(due[j].FireAt) {
			return due[i].FireAt.Before(due[j].FireAt)
		}

		return due[i].ID < due[j].ID
	})

	return due, nil
}

func (r *TimerRepository) DeleteTimersForSession(_ context.Context, sessionID string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for id, t := range r.store.timers {
		if t.SessionID == sessionID {
			delete(r.store.timers, id)
		}
	}

	return nil
}
