package scheduler

import (
	"cmp"
	"slices"
	"sync"

	"github.com/oshokin/gentle-alert/internal/domain/alert"
)

// registry tracks live sessions, at most one per rule. The loop writes under
// the lock; snapshot readers from other goroutines take the read lock.
type registry struct {
	// mu guards byRule.
	mu sync.RWMutex
	// byRule maps rule ids to their live session.
	byRule map[string]*alert.Session
}

func newRegistry() *registry {
	return &registry{byRule: make(map[string]*alert.Session)}
}

func (r *registry) has(ruleID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byRule[ruleID]

	return ok
}

func (r *registry) put(s *alert.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byRule[s.RuleID] = s
}

func (r *registry) remove(ruleID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.byRule, ruleID)
}

// mutate runs fn on the session of ruleID under the write lock and reports
// whether the session exists.
func (r *registry) mutate(ruleID string, fn func(s *alert.Session)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byRule[ruleID]
	if ok {
		fn(s)
	}

	return ok
}

// ruleIDs lists rule ids with a live session in a stable order.
func (r *registry) ruleIDs() []string {
	r.mu.RLock()

	ids := make([]string, 0, len(r.byRule))
	for id := range r.byRule {
		ids = append(ids, id)
	}

	r.mu.RUnlock()

	slices.Sort(ids)

	return ids
}

// snapshot copies every live session, oldest first.
func (r *registry) snapshot() []alert.Session {
	r.mu.RLock()

	sessions := make([]alert.Session, 0, len(r.byRule))
	for _, s := range r.byRule {
		sessions = append(sessions, *s.Clone())
	}

	r.mu.RUnlock()

	slices.SortFunc(sessions, func(a, b alert.Session) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.RuleID, b.RuleID)
	})

	return sessions
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byRule)
}
