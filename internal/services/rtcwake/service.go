// Package rtcwake programs the RTC alarm and executes power transitions.
package rtcwake

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/fgeck/rtcwaked/internal/services/process"
	"github.com/rs/zerolog"
)

// ErrNoTransition is returned by ExecuteAction for ActionNone.
var ErrNoTransition = errors.New("action has no power transition")

// Service defines the interface for RTC and power operations. All calls
// block until the external command exits. Command failures are reported in
// the result; the error is reserved for invalid arguments.
type Service interface {
	ProgramAlarm(ctx context.Context, targetUTC time.Time) (*models.CommandResult, error)
	ScheduleWake(ctx context.Context, targetUTC time.Time, action models.PowerAction) (*models.CommandResult, error)
	ExecuteAction(ctx context.Context, action models.PowerAction) (*models.CommandResult, error)
}

// Options configures the commands the service runs.
type Options struct {
	RTCWakePath  string
	PowerCommand string
	Timeout      time.Duration // zero means no timeout
}

// Impl implements the Service interface.
type Impl struct {
	executor process.Executor
	opts     Options
	logger   zerolog.Logger
}

// New creates a new rtcwake service.
func New(logger zerolog.Logger, opts Options) *Impl {
	return NewWithExecutor(logger, opts, &process.DefaultExecutor{})
}

// NewWithExecutor creates a new rtcwake service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, opts Options, executor process.Executor) *Impl {
	if opts.RTCWakePath == "" {
		opts.RTCWakePath = "rtcwake"
	}
	if opts.PowerCommand == "" {
		opts.PowerCommand = "systemctl"
	}
	return &Impl{
		executor: executor,
		opts:     opts,
		logger:   logger,
	}
}

// ProgramAlarm sets the RTC alarm without changing the power state.
func (s *Impl) ProgramAlarm(ctx context.Context, targetUTC time.Time) (*models.CommandResult, error) {
	if targetUTC.IsZero() {
		return nil, fmt.Errorf("wake time is required")
	}
	return s.run(ctx, s.opts.RTCWakePath, rtcwakeArgs(models.ActionNone.Mode(), targetUTC)...), nil
}

// ScheduleWake sets the RTC alarm and enters the action's power state.
func (s *Impl) ScheduleWake(ctx context.Context, targetUTC time.Time, action models.PowerAction) (*models.CommandResult, error) {
	if targetUTC.IsZero() {
		return nil, fmt.Errorf("wake time is required")
	}
	if !action.Valid() {
		return nil, fmt.Errorf("invalid power action %d", int(action))
	}
	return s.run(ctx, s.opts.RTCWakePath, rtcwakeArgs(action.Mode(), targetUTC)...), nil
}

// ExecuteAction enters the action's power state without touching the RTC.
func (s *Impl) ExecuteAction(ctx context.Context, action models.PowerAction) (*models.CommandResult, error) {
	verb, err := powerVerb(action)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, s.opts.PowerCommand, verb), nil
}

func rtcwakeArgs(mode string, target time.Time) []string {
	return []string{"-m", mode, "-t", strconv.FormatInt(target.Unix(), 10)}
}

// powerVerb maps an action to the systemctl verb performing it.
func powerVerb(action models.PowerAction) (string, error) {
	switch action {
	case models.ActionNone:
		return "", ErrNoTransition
	case models.ActionSuspendToIdle, models.ActionSuspendToRAM:
		return "suspend", nil
	case models.ActionHibernate:
		return "hibernate", nil
	case models.ActionPowerOff:
		return "poweroff", nil
	}
	return "", fmt.Errorf("invalid power action %d", int(action))
}

func (s *Impl) run(ctx context.Context, name string, args ...string) *models.CommandResult {
	result := &models.CommandResult{
		CommandLine: process.CommandLine(name, args...),
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	s.logger.Debug().Str("command", result.CommandLine).Msg("running command")

	out, err := s.executor.Run(ctx, nil, name, args...)
	if err != nil {
		result.ExitCode = -1
		result.Stderr = fmt.Sprintf("failed to start %s: %v", name, err)
		result.Error = fmt.Errorf("failed to start %s: %w", name, err)
		s.logger.Warn().Err(err).Str("command", result.CommandLine).Msg("command failed to start")
		return result
	}

	result.Stdout = out.Stdout
	result.Stderr = out.Stderr
	result.ExitCode = out.ExitCode
	result.Success = out.ExitCode == 0
	if !result.Success {
		result.Error = fmt.Errorf("%s exited with code %d", name, out.ExitCode)
		s.logger.Warn().
			Int("exit_code", out.ExitCode).
			Str("command", result.CommandLine).
			Str("stderr", out.Stderr).
			Msg("command failed")
	}

	return result
}
