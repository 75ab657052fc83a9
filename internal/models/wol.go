package models

import "time"

// WOLConfig holds Wake-on-LAN configuration for a companion host.
type WOLConfig struct {
	MACAddress   string
	BroadcastIP  string
	PollURL      string        // URL to poll until the companion is ready
	Timeout      time.Duration // max time to wait for the companion
	PollInterval time.Duration // how often to poll the URL
}

// WOLResult holds the result of a Wake-on-LAN operation.
type WOLResult struct {
	PacketSent   bool
	TargetReady  bool
	WaitDuration time.Duration
	Error        error
}
