package process

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultExecutor_Success(t *testing.T) {
	e := &DefaultExecutor{}

	result, err := e.Run(context.Background(), nil, "/bin/sh", "-c", "echo out; echo err >&2")

	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "out", result.Stdout)
	assert.Equal(t, "err", result.Stderr)
}

func TestDefaultExecutor_NonZeroExit(t *testing.T) {
	e := &DefaultExecutor{}

	result, err := e.Run(context.Background(), nil, "/bin/sh", "-c", "exit 3")

	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
}

func TestDefaultExecutor_Env(t *testing.T) {
	e := &DefaultExecutor{}

	result, err := e.Run(context.Background(), []string{"RTCWAKED_TEST=hello"}, "/bin/sh", "-c", "printf %s \"$RTCWAKED_TEST\"")

	require.NoError(t, err)
	assert.Equal(t, "hello", result.Stdout)
}

func TestDefaultExecutor_StartFailure(t *testing.T) {
	e := &DefaultExecutor{}

	_, err := e.Run(context.Background(), nil, "/nonexistent/binary")

	assert.Error(t, err)
}

func TestDefaultExecutor_ContextTimeoutKills(t *testing.T) {
	e := &DefaultExecutor{}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	result, err := e.Run(ctx, nil, "/bin/sh", "-c", "exec sleep 5")

	require.NoError(t, err)
	assert.Equal(t, -1, result.ExitCode, "killed processes report no exit status")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestCommandLine(t *testing.T) {
	assert.Equal(t, "rtcwake -m no -t 42", CommandLine("rtcwake", "-m", "no", "-t", "42"))
	assert.Equal(t, "true", CommandLine("true"))
}
