package alert

import "time"

// Cause explains what produced a session transition.
type Cause string

const (
	// CauseScheduled is a regular fire from the rule's schedule.
	CauseScheduled Cause = "scheduled"
	// CauseTest is a manual test fire.
	CauseTest Cause = "test"
	// CauseTimer is an automatic transition: held, dismissed or a re-arm.
	CauseTimer Cause = "timer"
	// CauseCommand is a tray command such as stop or delay.
	CauseCommand Cause = "command"
	// CauseRuleDeleted stops the session of a deleted rule.
	CauseRuleDeleted Cause = "rule_deleted"
)

// Event notifies the rendering collaborator of one session transition.
type Event struct {
	// Session is a snapshot taken right after the transition.
	Session Session `json:"session"`
	// Previous is the state before the transition; empty for a new session.
	Previous State `json:"previous,omitempty"`
	// Cause explains the transition.
	Cause Cause `json:"cause"`
	// At is the instant of the transition.
	At time.Time `json:"at"`
}

// Fired reports whether the event starts a fresh expanding phase.
func (e *Event) Fired() bool {
	return e.Session.State == StateExpanding
}
