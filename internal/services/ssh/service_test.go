package ssh

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

type mockSSHSession struct {
	combinedOutputFunc func(cmd string) ([]byte, error)
}

func (m *mockSSHSession) CombinedOutput(cmd string) ([]byte, error) {
	if m.combinedOutputFunc != nil {
		return m.combinedOutputFunc(cmd)
	}
	return []byte(""), nil
}

func (m *mockSSHSession) Close() error {
	return nil
}

type mockSSHClient struct {
	newSessionFunc func() (SSHSession, error)
	closed         bool
}

func (m *mockSSHClient) NewSession() (SSHSession, error) {
	if m.newSessionFunc != nil {
		return m.newSessionFunc()
	}
	return &mockSSHSession{}, nil
}

func (m *mockSSHClient) Close() error {
	m.closed = true
	return nil
}

type mockClientFactory struct {
	newClientFunc func(network, addr string, config *ssh.ClientConfig) (SSHClient, error)
}

func (m *mockClientFactory) NewClient(network, addr string, config *ssh.ClientConfig) (SSHClient, error) {
	if m.newClientFunc != nil {
		return m.newClientFunc(network, addr, config)
	}
	return &mockSSHClient{}, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func generateTestKey(t *testing.T) []byte {
	t.Helper()

	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	pemBlock, err := ssh.MarshalPrivateKey(privateKey, "")
	require.NoError(t, err)

	return pem.EncodeToMemory(pemBlock)
}

func testConfig(t *testing.T) models.SSHShutdownConfig {
	return models.SSHShutdownConfig{
		Host:          "192.168.1.100",
		Port:          22,
		Username:      "root",
		PrivateKey:    generateTestKey(t),
		ShutdownDelay: 1,
	}
}

func capturingFactory(captured *string, output string, runErr error) *mockClientFactory {
	return &mockClientFactory{
		newClientFunc: func(network, addr string, config *ssh.ClientConfig) (SSHClient, error) {
			return &mockSSHClient{
				newSessionFunc: func() (SSHSession, error) {
					return &mockSSHSession{
						combinedOutputFunc: func(cmd string) ([]byte, error) {
							*captured = cmd
							return []byte(output), runErr
						},
					}, nil
				},
			}, nil
		},
	}
}

func TestShutdown_Success(t *testing.T) {
	var capturedCommand, capturedAddr string
	factory := capturingFactory(&capturedCommand, "Shutdown scheduled", nil)
	inner := factory.newClientFunc
	factory.newClientFunc = func(network, addr string, config *ssh.ClientConfig) (SSHClient, error) {
		capturedAddr = addr
		return inner(network, addr, config)
	}

	svc := NewWithClientFactory(testLogger(), factory, afero.NewMemMapFs())
	result := svc.Shutdown(context.Background(), "nas", testConfig(t))

	assert.True(t, result.CommandRun)
	assert.Contains(t, result.Output, "Shutdown scheduled")
	assert.Nil(t, result.Error)
	assert.Equal(t, "sudo shutdown -h +1", capturedCommand)
	assert.Equal(t, "192.168.1.100:22", capturedAddr)
}

func TestShutdown_RemoteDropIsNotAnError(t *testing.T) {
	var capturedCommand string
	factory := capturingFactory(&capturedCommand, "", errors.New("wait: remote command exited without exit status"))

	svc := NewWithClientFactory(testLogger(), factory, afero.NewMemMapFs())
	cfg := testConfig(t)
	cfg.ShutdownDelay = 0
	result := svc.Shutdown(context.Background(), "nas", cfg)

	assert.True(t, result.CommandRun)
	assert.Nil(t, result.Error)
	assert.Equal(t, "sudo shutdown -h now", capturedCommand)
}

func TestShutdown_ConnectionFailed(t *testing.T) {
	factory := &mockClientFactory{
		newClientFunc: func(network, addr string, config *ssh.ClientConfig) (SSHClient, error) {
			return nil, errors.New("connection refused")
		},
	}

	svc := NewWithClientFactory(testLogger(), factory, afero.NewMemMapFs())
	result := svc.Shutdown(context.Background(), "nas", testConfig(t))

	assert.False(t, result.CommandRun)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "failed to connect")
}

func TestShutdown_SessionFailed(t *testing.T) {
	client := &mockSSHClient{
		newSessionFunc: func() (SSHSession, error) {
			return nil, errors.New("session creation failed")
		},
	}
	factory := &mockClientFactory{
		newClientFunc: func(network, addr string, config *ssh.ClientConfig) (SSHClient, error) {
			return client, nil
		},
	}

	svc := NewWithClientFactory(testLogger(), factory, afero.NewMemMapFs())
	result := svc.Shutdown(context.Background(), "nas", testConfig(t))

	assert.False(t, result.CommandRun)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "failed to create session")
	assert.True(t, client.closed)
}

func TestShutdown_NoPrivateKey(t *testing.T) {
	svc := NewWithClientFactory(testLogger(), &mockClientFactory{}, afero.NewMemMapFs())

	result := svc.Shutdown(context.Background(), "nas", models.SSHShutdownConfig{
		Host:     "192.168.1.100",
		Port:     22,
		Username: "root",
	})

	assert.False(t, result.CommandRun)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "no private key")
}

func TestShutdown_InvalidPrivateKey(t *testing.T) {
	svc := NewWithClientFactory(testLogger(), &mockClientFactory{}, afero.NewMemMapFs())
	cfg := testConfig(t)
	cfg.PrivateKey = []byte("invalid key")

	result := svc.Shutdown(context.Background(), "nas", cfg)

	assert.False(t, result.CommandRun)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "failed to parse private key")
}

func TestShutdown_ContextCancelled(t *testing.T) {
	factory := &mockClientFactory{
		newClientFunc: func(network, addr string, config *ssh.ClientConfig) (SSHClient, error) {
			time.Sleep(100 * time.Millisecond)
			return &mockSSHClient{}, nil
		},
	}

	svc := NewWithClientFactory(testLogger(), factory, afero.NewMemMapFs())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	result := svc.Shutdown(ctx, "nas", testConfig(t))

	assert.False(t, result.CommandRun)
	assert.ErrorIs(t, result.Error, context.DeadlineExceeded)
}

func TestShutdownCommand(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.SSHShutdownConfig
		want string
	}{
		{"linux now", models.SSHShutdownConfig{OS: "linux"}, "sudo shutdown -h now"},
		{"linux delayed", models.SSHShutdownConfig{OS: "linux", ShutdownDelay: 5}, "sudo shutdown -h +5"},
		{"default os", models.SSHShutdownConfig{ShutdownDelay: 2}, "sudo shutdown -h +2"},
		{"windows default delay", models.SSHShutdownConfig{OS: "windows"}, "shutdown /s /t 60"},
		{"windows delayed", models.SSHShutdownConfig{OS: "windows", ShutdownDelay: 3}, "shutdown /s /t 180"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShutdownCommand(tt.cfg))
		})
	}
}

func TestTestConnection_Success(t *testing.T) {
	var capturedCommand string
	factory := capturingFactory(&capturedCommand, "OK\n", nil)

	svc := NewWithClientFactory(testLogger(), factory, afero.NewMemMapFs())
	result := svc.TestConnection(context.Background(), "nas", testConfig(t))

	assert.True(t, result.CommandRun)
	assert.Contains(t, result.Output, "OK")
	assert.Nil(t, result.Error)
	assert.Equal(t, "echo OK", capturedCommand)
}

func TestTestConnection_Failed(t *testing.T) {
	factory := &mockClientFactory{
		newClientFunc: func(network, addr string, config *ssh.ClientConfig) (SSHClient, error) {
			return nil, errors.New("connection refused")
		},
	}

	svc := NewWithClientFactory(testLogger(), factory, afero.NewMemMapFs())
	result := svc.TestConnection(context.Background(), "nas", testConfig(t))

	assert.False(t, result.CommandRun)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "failed to connect")
}

func TestBuildConfig_WithKeyPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/root/.ssh/id_ed25519", generateTestKey(t), 0o600))

	svc := NewWithClientFactory(testLogger(), &mockClientFactory{}, fs)

	sshConfig, err := svc.buildConfig(models.SSHShutdownConfig{
		Host:     "192.168.1.100",
		Port:     22,
		Username: "admin",
		KeyPath:  "/root/.ssh/id_ed25519",
	})

	require.NoError(t, err)
	assert.Equal(t, "admin", sshConfig.User)
	assert.Equal(t, dialTimeout, sshConfig.Timeout)
}

func TestBuildConfig_KeyPathNotFound(t *testing.T) {
	svc := NewWithClientFactory(testLogger(), &mockClientFactory{}, afero.NewMemMapFs())

	_, err := svc.buildConfig(models.SSHShutdownConfig{
		Host:     "192.168.1.100",
		Port:     22,
		Username: "root",
		KeyPath:  "/nonexistent/path/id_rsa",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read private key")
}
