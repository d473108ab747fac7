package store

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/oshokin/gentle-alert/internal/domain/alert"
	"github.com/oshokin/gentle-alert/internal/recurrence"
)

var (
	// ErrNotFound is returned for an unknown rule id.
	ErrNotFound = errors.New("alert rule not found")
	// ErrAlreadyExists is returned when creating a rule with a taken id.
	ErrAlreadyExists = errors.New("alert rule already exists")
)

// Due is a rule whose occurrence At is not after the scan instant.
type Due struct {
	// Rule is a snapshot of the rule.
	Rule *alert.Rule
	// At is the occurrence that made the rule due.
	At time.Time
}

// Failure is a rule that cannot fire: it is invalid or the resolver could not evaluate it.
type Failure struct {
	// RuleID identifies the failing rule.
	RuleID string
	// Err is the validation or resolver error.
	Err error
}

// Scan is the result of ListDue.
type Scan struct {
	// Due rules, ordered by occurrence then id.
	Due []Due
	// Spent lists enabled one-time rules that can never fire again.
	Spent []string
	// Failed lists rules skipped because they are invalid or unresolvable.
	Failed []Failure
}

// Store is a concurrency-safe rule set. Every read returns deep copies, so
// callers never observe a rule while it is being edited.
type Store struct {
	// mu guards rules and revision.
	mu sync.RWMutex
	// rules maps rule ids to rules.
	rules map[string]*alert.Rule
	// revision increases with every mutation.
	revision uint64
}

// New returns a store seeded with rules.
func New(rules ...*alert.Rule) *Store {
	s := &Store{rules: make(map[string]*alert.Rule, len(rules))}

	for _, r := range rules {
		s.rules[r.ID] = r.Clone()
	}

	return s
}

// Replace swaps the whole rule set, used when loading from persistence.
func (s *Store) Replace(rules []*alert.Rule) {
	next := make(map[string]*alert.Rule, len(rules))
	for _, r := range rules {
		next[r.ID] = r.Clone()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rules = next
	s.revision++
}

// Create validates and inserts a new rule.
func (s *Store) Create(rule *alert.Rule) (*alert.Rule, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[rule.ID]; ok {
		return nil, fmt.Errorf("create %s: %w", rule.ID, ErrAlreadyExists)
	}

	stored := rule.Clone()
	stored.LastFiredAt = nil
	stored.ArmedAt = nil
	s.rules[stored.ID] = stored
	s.revision++

	return stored.Clone(), nil
}

// Update replaces the editable fields of an existing rule. CreatedAt,
// LastFiredAt and ArmedAt are owned by the store and the scheduler and are
// kept, except that enabling the rule or changing the schedule of an enabled
// rule re-arms it at now.
func (s *Store) Update(rule *alert.Rule, now time.Time) (*alert.Rule, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.rules[rule.ID]
	if !ok {
		return nil, fmt.Errorf("update %s: %w", rule.ID, ErrNotFound)
	}

	stored := rule.Clone()
	stored.CreatedAt = current.CreatedAt
	stored.LastFiredAt = current.LastFiredAt
	stored.ArmedAt = current.ArmedAt

	if stored.Enabled && (!current.Enabled || !stored.Schedule.Equal(current.Schedule)) {
		stored.ArmedAt = &now
	}

	s.rules[stored.ID] = stored
	s.revision++

	return stored.Clone(), nil
}

// SetEnabled toggles a rule. Enabling a disabled rule re-arms it at now, so
// occurrences missed while it was off do not fire.
func (s *Store) SetEnabled(id string, enabled bool, now time.Time) (*alert.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.rules[id]
	if !ok {
		return nil, fmt.Errorf("toggle %s: %w", id, ErrNotFound)
	}

	if current.Enabled != enabled {
		current.Enabled = enabled
		s.revision++

		if enabled {
			current.ArmedAt = &now
		}
	}

	return current.Clone(), nil
}

// Delete removes a rule.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}

	delete(s.rules, id)
	s.revision++

	return nil
}

// Get returns a copy of one rule.
func (s *Store) Get(id string) (*alert.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}

	return r.Clone(), nil
}

// List returns copies of all rules ordered by creation time, then id.
func (s *Store) List() []*alert.Rule {
	s.mu.RLock()

	rules := make([]*alert.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		rules = append(rules, r.Clone())
	}

	s.mu.RUnlock()

	slices.SortFunc(rules, func(a, b *alert.Rule) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	return rules
}

// Len returns the number of rules.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rules)
}

// Revision returns a counter that changes whenever the rule set changes.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.revision
}

// ListDue evaluates every enabled rule not excluded by skip against now, in
// one consistent snapshot. Invalid rules are reported as failed and never
// due. Wall-clock times resolve in now's location, so rules loaded with a
// fixed offset follow daylight saving changes. skip may be nil.
func (s *Store) ListDue(now time.Time, skip func(ruleID string) bool) Scan {
	var scan Scan

	for _, r := range s.List() {
		if !r.Enabled || (skip != nil && skip(r.ID)) {
			continue
		}

		if err := r.Validate(); err != nil {
			scan.Failed = append(scan.Failed, Failure{RuleID: r.ID, Err: err})

			continue
		}

		next, err := recurrence.Next(r.Schedule, r.Anchor().In(now.Location()))

		switch {
		case errors.Is(err, recurrence.ErrNoOccurrence):
			scan.Spent = append(scan.Spent, r.ID)
		case err != nil:
			scan.Failed = append(scan.Failed, Failure{RuleID: r.ID, Err: err})
		case !next.After(now):
			scan.Due = append(scan.Due, Due{Rule: r, At: next})
		}
	}

	slices.SortStableFunc(scan.Due, func(a, b Due) int {
		return a.At.Compare(b.At)
	})

	return scan
}

// MarkFired records a fire. Only the scheduler calls it.
func (s *Store) MarkFired(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok {
		return fmt.Errorf("mark fired %s: %w", id, ErrNotFound)
	}

	r.LastFiredAt = &at
	s.revision++

	return nil
}
