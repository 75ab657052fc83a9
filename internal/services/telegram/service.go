// Package telegram sends power action notifications via Telegram.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/rs/zerolog"
)

const timeLayout = "Mon 2006-01-02 15:04"

// Service defines the interface for Telegram notification operations.
type Service interface {
	SendNotification(ctx context.Context, cfg models.TelegramConfig, msg models.TelegramMessage) *models.TelegramResult
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Impl implements the Telegram Service interface.
type Impl struct {
	httpClient HTTPClient
	logger     zerolog.Logger
	baseURL    string
}

// New creates a new Telegram service.
func New(logger zerolog.Logger) *Impl {
	return NewWithClient(logger, &http.Client{Timeout: 30 * time.Second}, "https://api.telegram.org")
}

// NewWithClient creates a new Telegram service with a custom HTTP client (for testing).
func NewWithClient(logger zerolog.Logger, httpClient HTTPClient, baseURL string) *Impl {
	return &Impl{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendNotification posts msg to the configured chat.
func (s *Impl) SendNotification(ctx context.Context, cfg models.TelegramConfig, msg models.TelegramMessage) *models.TelegramResult {
	result := &models.TelegramResult{}

	s.logger.Info().
		Str("chat_id", cfg.ChatID).
		Str("outcome", string(msg.Outcome)).
		Bool("success", msg.Success).
		Msg("sending Telegram notification")

	body, err := json.Marshal(sendMessageRequest{
		ChatID:    cfg.ChatID,
		Text:      FormatMessage(msg),
		ParseMode: "HTML",
	})
	if err != nil {
		result.Error = fmt.Errorf("failed to marshal request: %w", err)
		return result
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		result.Error = fmt.Errorf("failed to create request: %w", err)
		return result
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Errorf("failed to send request: %w", err)
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		result.Error = fmt.Errorf("telegram API returned status %d", resp.StatusCode)
		return result
	}

	result.MessageSent = true
	s.logger.Info().Msg("Telegram notification sent successfully")
	return result
}

// FormatMessage renders msg as Telegram HTML.
func FormatMessage(msg models.TelegramMessage) string {
	var b bytes.Buffer

	switch {
	case msg.Outcome == models.OutcomeCancel:
		b.WriteString("⏹ <b>Power action canceled</b>\n\n")
	case msg.Success:
		b.WriteString("✅ <b>Power action applied</b>\n\n")
	default:
		b.WriteString("❌ <b>Power action failed</b>\n\n")
	}

	fmt.Fprintf(&b, "<b>Host:</b> %s\n", html.EscapeString(msg.Host))
	fmt.Fprintf(&b, "<b>Action:</b> %s\n", html.EscapeString(msg.ActionLabel))
	if !msg.Shutdown.IsZero() {
		fmt.Fprintf(&b, "<b>Shutdown:</b> %s\n", msg.Shutdown.Format(timeLayout))
	}
	if !msg.Wake.IsZero() {
		fmt.Fprintf(&b, "<b>Wake:</b> %s\n", msg.Wake.Format(timeLayout))
	}

	if msg.Outcome == models.OutcomeCancel {
		b.WriteString("\nCanceled from the warning dialog.\n")
		return b.String()
	}

	if msg.CommandLine != "" {
		fmt.Fprintf(&b, "<b>Command:</b> <code>%s</code>\n", html.EscapeString(msg.CommandLine))
	}
	if !msg.Success && msg.ErrorOutput != "" {
		fmt.Fprintf(&b, "\n<b>Error:</b> <code>%s</code>\n", html.EscapeString(msg.ErrorOutput))
	}
	return b.String()
}
