package alert

import (
	"time"

	"github.com/google/uuid"
)

// Rule is a user-configured alert: when it fires and what the overlay looks like.
type Rule struct {
	// ID is immutable once the rule is created.
	ID string `json:"id" yaml:"id"`
	// Label is optional display text.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	// Schedule decides when the rule fires.
	Schedule Schedule `json:"schedule" yaml:"schedule"`
	// Appearance is copied into each session the rule starts.
	Appearance Appearance `json:"appearance" yaml:"appearance"`
	// Enabled rules are considered by the scheduler.
	Enabled bool `json:"enabled" yaml:"enabled"`
	// CreatedAt anchors the first occurrence lookup.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	// LastFiredAt is written only by the scheduler.
	LastFiredAt *time.Time `json:"last_fired_at,omitempty" yaml:"last_fired_at,omitempty"`
	// ArmedAt is written by the store when the rule is re-enabled or rescheduled.
	ArmedAt *time.Time `json:"armed_at,omitempty" yaml:"armed_at,omitempty"`
}

// NewRule creates an enabled rule with a fresh id.
func NewRule(label string, schedule Schedule, appearance Appearance, now time.Time) *Rule {
	return &Rule{
		ID:         uuid.NewString(),
		Label:      label,
		Schedule:   schedule,
		Appearance: appearance,
		Enabled:    true,
		CreatedAt:  now,
	}
}

// Anchor returns the instant the next occurrence is searched after: the
// latest of the creation time, the last fire and the last re-arm. Occurrences
// that passed while the rule was disabled are never reported.
func (r *Rule) Anchor() time.Time {
	anchor := r.CreatedAt

	for _, at := range []*time.Time{r.LastFiredAt, r.ArmedAt} {
		if at != nil && at.After(anchor) {
			anchor = *at
		}
	}

	return anchor
}

// DisplayText returns the text the overlay shows: the appearance text, then the label.
func (r *Rule) DisplayText() string {
	if r.Appearance.Text != "" {
		return r.Appearance.Text
	}

	return r.Label
}

// Clone returns a deep copy of the rule.
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}

	cloned := *r

	if r.LastFiredAt != nil {
		lastFired := *r.LastFiredAt
		cloned.LastFiredAt = &lastFired
	}

	if r.ArmedAt != nil {
		armed := *r.ArmedAt
		cloned.ArmedAt = &armed
	}

	return &cloned
}
