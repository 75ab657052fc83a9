//go:build e2e

package e2e

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/fgeck/rtcwaked/internal/services/telegram"
	"github.com/stretchr/testify/assert"
)

func getTelegramConfig(t *testing.T) models.TelegramConfig {
	t.Helper()

	botToken := os.Getenv("TEST_TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		t.Skip("TEST_TELEGRAM_BOT_TOKEN not set")
	}

	chatID := os.Getenv("TEST_TELEGRAM_CHAT_ID")
	if chatID == "" {
		t.Skip("TEST_TELEGRAM_CHAT_ID not set")
	}

	return models.TelegramConfig{
		BotToken: botToken,
		ChatID:   chatID,
	}
}

func TestTelegramAppliedNotification_E2E(t *testing.T) {
	cfg := getTelegramConfig(t)

	svc := telegram.New(testLogger())

	result := svc.SendNotification(context.Background(), cfg, models.TelegramMessage{
		Success:     true,
		Host:        "e2e-test-host",
		ActionLabel: models.ActionSuspendToRAM.Label(),
		Outcome:     models.OutcomeApply,
		Shutdown:    time.Now().Add(-8 * time.Hour),
		Wake:        time.Now(),
		CommandLine: "rtcwake -m mem -t 1893564000",
	})

	assert.True(t, result.MessageSent)
	assert.Nil(t, result.Error)
}

func TestTelegramFailedNotification_E2E(t *testing.T) {
	cfg := getTelegramConfig(t)

	svc := telegram.New(testLogger())

	result := svc.SendNotification(context.Background(), cfg, models.TelegramMessage{
		Success:     false,
		Host:        "e2e-test-host",
		ActionLabel: models.ActionHibernate.Label(),
		Outcome:     models.OutcomeApply,
		Wake:        time.Now().Add(8 * time.Hour),
		CommandLine: "rtcwake -m disk -t 1893564000",
		ErrorOutput: "rtcwake: write error",
	})

	assert.True(t, result.MessageSent)
	assert.Nil(t, result.Error)
}

func TestTelegramInvalidToken_E2E(t *testing.T) {
	svc := telegram.New(testLogger())

	result := svc.SendNotification(context.Background(), models.TelegramConfig{
		BotToken: "invalid:token",
		ChatID:   "-100123456789",
	}, models.TelegramMessage{Success: true, Host: "test"})

	assert.False(t, result.MessageSent)
	assert.NotNil(t, result.Error)
}
