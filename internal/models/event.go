package models

import "time"

// PlannedEvent is one concrete occurrence chosen by the planner.
type PlannedEvent struct {
	Shutdown time.Time
	Wake     time.Time
	Action   PowerAction
	Source   string // "single" or the weekday name
}

// CommandResult holds the result of one external command invocation.
type CommandResult struct {
	Success     bool
	Stdout      string
	Stderr      string
	CommandLine string
	ExitCode    int
	Error       error
}

// WarningOutcome is the user's answer to the warning step.
type WarningOutcome string

// Possible warning outcomes.
const (
	OutcomeApply  WarningOutcome = "apply"
	OutcomeSnooze WarningOutcome = "snooze"
	OutcomeCancel WarningOutcome = "cancel"
)

// WarningResult holds the result of a warning escalation.
type WarningResult struct {
	Outcome  WarningOutcome
	Launched bool // false when the warning was skipped
	ExitCode int
	Stdout   string
	Stderr   string
	Error    error // set when the process could not be started
}

// SummaryRecord is the persisted description of the currently armed wake.
type SummaryRecord struct {
	Timestamp int64  `json:"timestamp"`
	LocalTime string `json:"localTime"`
	Friendly  string `json:"friendly"`
	Mode      string `json:"mode"`
	Action    string `json:"action"`
}

// PowerStateOption describes whether an action is supported on this machine.
type PowerStateOption struct {
	Action    PowerAction
	Available bool
}
