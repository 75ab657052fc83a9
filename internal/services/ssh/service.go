// Package ssh shuts companion hosts down before this machine powers down.
package ssh

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"
)

const dialTimeout = 30 * time.Second

// Service defines the interface for companion SSH operations.
type Service interface {
	Shutdown(ctx context.Context, companion string, cfg models.SSHShutdownConfig) *models.SSHResult
	TestConnection(ctx context.Context, companion string, cfg models.SSHShutdownConfig) *models.SSHResult
}

// SSHClient wraps ssh.Client for mocking.
type SSHClient interface {
	NewSession() (SSHSession, error)
	Close() error
}

// SSHSession wraps ssh.Session for mocking.
type SSHSession interface {
	CombinedOutput(cmd string) ([]byte, error)
	Close() error
}

// ClientFactory creates SSH clients.
type ClientFactory interface {
	NewClient(network, addr string, config *ssh.ClientConfig) (SSHClient, error)
}

// DefaultClientFactory is the default SSH client factory.
type DefaultClientFactory struct{}

// NewClient creates a new SSH client.
func (f *DefaultClientFactory) NewClient(network, addr string, config *ssh.ClientConfig) (SSHClient, error) {
	client, err := ssh.Dial(network, addr, config)
	if err != nil {
		return nil, err
	}
	return &defaultSSHClient{client: client}, nil
}

type defaultSSHClient struct {
	client *ssh.Client
}

func (c *defaultSSHClient) NewSession() (SSHSession, error) {
	session, err := c.client.NewSession()
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (c *defaultSSHClient) Close() error {
	return c.client.Close()
}

// Impl implements the SSH Service interface.
type Impl struct {
	clientFactory ClientFactory
	fs            afero.Fs
	logger        zerolog.Logger
}

// New creates a new SSH service reading keys from the OS filesystem.
func New(logger zerolog.Logger) *Impl {
	return NewWithClientFactory(logger, &DefaultClientFactory{}, afero.NewOsFs())
}

// NewWithClientFactory creates a new SSH service with a custom client factory (for testing).
func NewWithClientFactory(logger zerolog.Logger, factory ClientFactory, fs afero.Fs) *Impl {
	return &Impl{
		clientFactory: factory,
		fs:            fs,
		logger:        logger,
	}
}

// ShutdownCommand returns the remote command for the companion's OS.
func ShutdownCommand(cfg models.SSHShutdownConfig) string {
	if cfg.OS == "windows" {
		seconds := cfg.ShutdownDelay * 60
		if seconds == 0 {
			seconds = 60
		}
		return fmt.Sprintf("shutdown /s /t %d", seconds)
	}
	if cfg.ShutdownDelay == 0 {
		return "sudo shutdown -h now"
	}
	return fmt.Sprintf("sudo shutdown -h +%d", cfg.ShutdownDelay)
}

// Shutdown asks the companion to power off.
func (s *Impl) Shutdown(ctx context.Context, companion string, cfg models.SSHShutdownConfig) *models.SSHResult {
	result := &models.SSHResult{}
	logger := s.logger.With().Str("companion", companion).Str("host", cfg.Host).Logger()

	logger.Info().
		Int("port", cfg.Port).
		Str("user", cfg.Username).
		Int("delay", cfg.ShutdownDelay).
		Msg("shutting down companion")

	client, err := s.connect(ctx, cfg)
	if err != nil {
		result.Error = err
		return result
	}
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		result.Error = fmt.Errorf("failed to create session: %w", err)
		return result
	}
	defer func() { _ = session.Close() }()

	cmd := ShutdownCommand(cfg)
	logger.Debug().Str("command", cmd).Msg("executing shutdown command")

	output, err := session.CombinedOutput(cmd)
	result.Output = string(output)
	result.CommandRun = true

	if err != nil {
		if ctx.Err() != nil {
			result.Error = ctx.Err()
		} else {
			// the remote side often drops the connection while going down
			logger.Warn().Err(err).Str("output", result.Output).Msg("shutdown command returned error (may be expected)")
		}
	}

	logger.Info().Str("output", result.Output).Msg("shutdown command completed")
	return result
}

// TestConnection verifies connectivity without shutting the companion down.
func (s *Impl) TestConnection(ctx context.Context, companion string, cfg models.SSHShutdownConfig) *models.SSHResult {
	result := &models.SSHResult{}

	s.logger.Debug().
		Str("companion", companion).
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Msg("testing SSH connection")

	client, err := s.connect(ctx, cfg)
	if err != nil {
		result.Error = err
		return result
	}
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		result.Error = fmt.Errorf("failed to create session: %w", err)
		return result
	}
	defer func() { _ = session.Close() }()

	output, err := session.CombinedOutput("echo OK")
	result.Output = string(output)
	result.CommandRun = true
	if err != nil {
		result.Error = fmt.Errorf("test command failed: %w", err)
	}
	return result
}

func (s *Impl) buildConfig(cfg models.SSHShutdownConfig) (*ssh.ClientConfig, error) {
	key := cfg.PrivateKey
	if len(key) == 0 {
		if cfg.KeyPath == "" {
			return nil, fmt.Errorf("no private key provided")
		}
		var err error
		key, err = afero.ReadFile(s.fs, cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key from %s: %w", cfg.KeyPath, err)
		}
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // companions live on the local network
		Timeout:         dialTimeout,
	}, nil
}

// connect dials the companion, giving up early when ctx ends.
func (s *Impl) connect(ctx context.Context, cfg models.SSHShutdownConfig) (SSHClient, error) {
	sshConfig, err := s.buildConfig(cfg)
	if err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	type dialResult struct {
		client SSHClient
		err    error
	}
	dialed := make(chan dialResult, 1)
	go func() {
		client, err := s.clientFactory.NewClient("tcp", addr, sshConfig)
		dialed <- dialResult{client, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-dialed:
		if res.err != nil {
			return nil, fmt.Errorf("failed to connect: %w", res.err)
		}
		return res.client, nil
	}
}
