package control

import (
	"time"

	"github.com/oshokin/gentle-alert/internal/domain/alert"
)

// Empty is used where a call takes or returns nothing.
type Empty struct{}

// RuleRef names a rule.
type RuleRef struct {
	// ID of the rule.
	ID string `json:"id"`
}

// RuleRequest carries a rule to create or update.
type RuleRequest struct {
	// Rule is the desired rule. On create the id may be empty.
	Rule *alert.Rule `json:"rule"`
}

// SetEnabledRequest toggles a rule.
type SetEnabledRequest struct {
	// ID of the rule.
	ID string `json:"id"`
	// Enabled is the desired flag.
	Enabled bool `json:"enabled"`
}

// DelayRequest hides one or all visible overlays.
type DelayRequest struct {
	// ID of the rule; ignored by DelayAll.
	ID string `json:"id,omitempty"`
	// Delay is how long the overlay stays hidden.
	Delay time.Duration `json:"delay"`
}

// RuleView is a rule together with its next occurrence.
type RuleView struct {
	*alert.Rule

	// NextFire is the next occurrence of an enabled rule, if any.
	NextFire *time.Time `json:"next_fire,omitempty"`
}

// RuleList is the answer to ListRules.
type RuleList struct {
	// Rules ordered by creation time.
	Rules []RuleView `json:"rules"`
}

// SessionList is the answer to ListSessions.
type SessionList struct {
	// Sessions ordered by start time.
	Sessions []alert.Session `json:"sessions"`
}

// CommandResult reports the effect of a tray or test command.
type CommandResult struct {
	// Applied is true when at least one session changed.
	Applied bool `json:"applied"`
	// Affected counts the changed sessions.
	Affected int `json:"affected"`
}

// Status describes the running daemon.
type Status struct {
	// Version of the daemon.
	Version string `json:"version"`
	// StartedAt is when the daemon started.
	StartedAt time.Time `json:"started_at"`
	// Rules is the number of stored rules.
	Rules int `json:"rules"`
	// Sessions is the number of live sessions.
	Sessions int `json:"sessions"`
	// Storage names the persistence driver and location.
	Storage string `json:"storage"`
	// DelayPresets are the tray delay choices.
	DelayPresets []time.Duration `json:"delay_presets"`
	// Defaults is the appearance given to new rules.
	Defaults alert.Appearance `json:"defaults"`
}

func commandResult(affected int) *CommandResult {
	return &CommandResult{Applied: affected > 0, Affected: affected}
}

func appliedResult(applied bool) *CommandResult {
	if applied {
		return commandResult(1)
	}

	return commandResult(0)
}
