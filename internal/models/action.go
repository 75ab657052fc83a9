// Package models contains the data structures used throughout rtcwaked.
package models

import "fmt"

// PowerAction is the power transition executed at a scheduled shutdown.
// The numeric values are persisted in the schedule document as actionId.
type PowerAction int

// Supported power actions.
const (
	ActionNone PowerAction = iota
	ActionSuspendToIdle
	ActionSuspendToRAM
	ActionHibernate
	ActionPowerOff
)

// AllActions lists every PowerAction in ordinal order.
var AllActions = []PowerAction{
	ActionNone,
	ActionSuspendToIdle,
	ActionSuspendToRAM,
	ActionHibernate,
	ActionPowerOff,
}

// Valid reports whether a is one of the known actions.
func (a PowerAction) Valid() bool {
	return a >= ActionNone && a <= ActionPowerOff
}

// Mode returns the rtcwake mode token for the action.
func (a PowerAction) Mode() string {
	switch a {
	case ActionNone:
		return "no"
	case ActionSuspendToIdle:
		return "freeze"
	case ActionSuspendToRAM:
		return "mem"
	case ActionHibernate:
		return "disk"
	case ActionPowerOff:
		return "off"
	}
	return "no"
}

// Label returns the human readable name shown to the user.
func (a PowerAction) Label() string {
	switch a {
	case ActionNone:
		return "Do nothing"
	case ActionSuspendToIdle:
		return "Suspend to idle"
	case ActionSuspendToRAM:
		return "Suspend to RAM"
	case ActionHibernate:
		return "Hibernate"
	case ActionPowerOff:
		return "Power off"
	}
	return "Do nothing"
}

// Description returns a one-line explanation of the action.
func (a PowerAction) Description() string {
	switch a {
	case ActionNone:
		return "Only program the RTC alarm"
	case ActionSuspendToIdle:
		return "Low-power state without flushing RAM"
	case ActionSuspendToRAM:
		return "Traditional sleep (S3)"
	case ActionHibernate:
		return "Save memory to disk and power off"
	case ActionPowerOff:
		return "Shut down immediately"
	}
	return ""
}

// Resumes reports whether the machine comes back from the action with its
// session intact, i.e. the power command returns after wake-up.
func (a PowerAction) Resumes() bool {
	switch a {
	case ActionSuspendToIdle, ActionSuspendToRAM, ActionHibernate:
		return true
	case ActionNone, ActionPowerOff:
		return false
	}
	return false
}

func (a PowerAction) String() string {
	if !a.Valid() {
		return fmt.Sprintf("PowerAction(%d)", int(a))
	}
	return a.Mode()
}
