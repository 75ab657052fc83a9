package models

import "time"

// DaemonOptions holds the configuration of the background daemon.
type DaemonOptions struct {
	ScheduleFile     string
	TargetUser       string
	TargetHome       string
	WarningApp       string
	RTCWakePath      string
	PowerCommand     string
	RunuserPath      string
	StateDir         string
	PeriodicInterval time.Duration
	Debounce         time.Duration
	CommandTimeout   time.Duration // zero means no timeout
	Companions       []CompanionConfig
	Telegram         *TelegramConfig // nil if not configured
}

// CompanionConfig describes a host that follows this machine's power state.
type CompanionConfig struct {
	Name     string
	WOL      *WOLConfig         // nil if the companion is not woken
	Shutdown *SSHShutdownConfig // nil if the companion is not shut down
}
