// Package wol wakes companion hosts after this machine resumes.
package wol

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/mdlayher/wol"
	"github.com/rs/zerolog"
)

// DefaultPort is the discard port magic packets are sent to.
const DefaultPort = "9"

// Service defines the interface for waking a companion host.
type Service interface {
	Wake(ctx context.Context, companion string, cfg models.WOLConfig) *models.WOLResult
}

// Client wraps the wol library for mocking.
type Client interface {
	Wake(addr string, mac net.HardwareAddr) error
}

// HTTPClient allows mocking HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultClient is the default implementation using mdlayher/wol.
type DefaultClient struct{}

// Wake sends a magic packet for mac to addr (host:port).
func (c *DefaultClient) Wake(addr string, mac net.HardwareAddr) error {
	client, err := wol.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create WOL client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if err := client.Wake(addr, mac); err != nil {
		return fmt.Errorf("failed to send WOL packet: %w", err)
	}
	return nil
}

// Impl implements the WOL Service interface.
type Impl struct {
	wolClient  Client
	httpClient HTTPClient
	clock      clock.Clock
	logger     zerolog.Logger
}

// New creates a new WOL service.
func New(logger zerolog.Logger) *Impl {
	return NewWithClients(logger, &DefaultClient{}, &http.Client{Timeout: 5 * time.Second}, clock.New())
}

// NewWithClients creates a new WOL service with custom clients (for testing).
func NewWithClients(logger zerolog.Logger, wolClient Client, httpClient HTTPClient, clk clock.Clock) *Impl {
	return &Impl{
		wolClient:  wolClient,
		httpClient: httpClient,
		clock:      clk,
		logger:     logger,
	}
}

// Wake sends a magic packet to the companion and, when a poll URL is set,
// waits until it answers or the timeout passes.
func (s *Impl) Wake(ctx context.Context, companion string, cfg models.WOLConfig) *models.WOLResult {
	result := &models.WOLResult{}
	start := s.clock.Now()
	logger := s.logger.With().Str("companion", companion).Logger()

	mac, err := net.ParseMAC(cfg.MACAddress)
	if err != nil {
		result.Error = fmt.Errorf("invalid MAC address %q: %w", cfg.MACAddress, err)
		return result
	}

	addr, err := BroadcastAddr(cfg.BroadcastIP)
	if err != nil {
		result.Error = err
		return result
	}

	logger.Info().
		Str("mac", cfg.MACAddress).
		Str("broadcast", addr).
		Msg("sending WOL packet")

	if err := s.wolClient.Wake(addr, mac); err != nil {
		result.Error = err
		return result
	}
	result.PacketSent = true

	if cfg.PollURL == "" {
		result.TargetReady = true
		result.WaitDuration = s.clock.Since(start)
		return result
	}

	logger.Info().
		Str("url", cfg.PollURL).
		Dur("timeout", cfg.Timeout).
		Msg("waiting for companion to come up")

	if err := s.waitForTarget(ctx, cfg, logger); err != nil {
		result.WaitDuration = s.clock.Since(start)
		result.Error = err
		return result
	}

	result.TargetReady = true
	result.WaitDuration = s.clock.Since(start)
	logger.Info().Dur("duration", result.WaitDuration).Msg("companion is up")
	return result
}

// BroadcastAddr turns "ip" or "ip:port" into a dialable UDP address.
func BroadcastAddr(broadcast string) (string, error) {
	host, port := broadcast, DefaultPort
	if h, p, err := net.SplitHostPort(broadcast); err == nil {
		host, port = h, p
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return "", fmt.Errorf("invalid broadcast IP: %s", broadcast)
	}
	return net.JoinHostPort(ip.String(), port), nil
}

func (s *Impl) waitForTarget(ctx context.Context, cfg models.WOLConfig, logger zerolog.Logger) error {
	deadline := s.clock.Now().Add(cfg.Timeout)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.clock.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for companion at %s", cfg.PollURL)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.PollURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := s.httpClient.Do(req)
		if err == nil {
			// any response means the host is up
			_ = resp.Body.Close()
			return nil
		}
		logger.Debug().Err(err).Msg("companion not ready yet")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(cfg.PollInterval):
		}
	}
}
