package models

import "time"

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// TelegramMessage holds the data for an action notification.
type TelegramMessage struct {
	Success     bool
	Host        string
	ActionLabel string
	Outcome     WarningOutcome
	Shutdown    time.Time
	Wake        time.Time
	CommandLine string
	ErrorOutput string
}

// TelegramResult holds the result of a Telegram notification.
type TelegramResult struct {
	MessageSent bool
	Error       error
}
