package daemon

import (
	"time"

	"github.com/fgeck/rtcwaked/internal/models"
)

// State is the daemon's position in the event lifecycle.
type State int

// Daemon states.
const (
	StateIdle State = iota
	StateArmed
	StateAwaitingOutcome
	StateRetrying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateAwaitingOutcome:
		return "awaiting-outcome"
	case StateRetrying:
		return "retrying"
	}
	return "unknown"
}

// Reason tags why a planning cycle or state transition happened.
type Reason string

// Planning reasons.
const (
	ReasonStartup         Reason = "startup"
	ReasonPeriodic        Reason = "periodic"
	ReasonConfigChanged   Reason = "config-changed"
	ReasonActionCompleted Reason = "action-completed"
	ReasonUserCanceled    Reason = "user-canceled"
)

// Transition reasons outside a planning cycle.
const (
	ReasonEventDue Reason = "event-due"
	ReasonSnooze   Reason = "snooze"
	ReasonShutdown Reason = "shutdown"
)

// Occurrence is the armed event together with the instant it fires at.
// Due equals Event.Shutdown until the user snoozes.
type Occurrence struct {
	ID      string
	Event   models.PlannedEvent
	Due     time.Time
	Snoozes int
}

// Snoozed reports whether the occurrence was delayed by the user.
func (o Occurrence) Snoozed() bool {
	return o.Snoozes > 0
}

func sameEvent(a, b models.PlannedEvent) bool {
	return a.Shutdown.Equal(b.Shutdown) && a.Wake.Equal(b.Wake) && a.Action == b.Action
}
