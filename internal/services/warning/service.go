// Package warning asks the desktop user whether a scheduled power action
// should proceed.
package warning

import (
	"context"
	"strconv"
	"time"

	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/fgeck/rtcwaked/internal/services/process"
	"github.com/rs/zerolog"
)

// Exit codes of the warning process.
const (
	ExitApply  = 0
	ExitSnooze = 1
)

// Service defines the interface for warning escalation.
type Service interface {
	Escalate(ctx context.Context, req Request) *models.WarningResult
}

// Request describes one warning to show.
type Request struct {
	Policy  models.WarningPolicy
	Session models.SessionContext
	Action  models.PowerAction
}

// Options configures how the warning process is launched.
type Options struct {
	WarningApp  string
	TargetUser  string
	RunuserPath string
	Timeout     time.Duration // zero means wait for the user indefinitely
}

// Impl implements the warning Service interface.
type Impl struct {
	executor process.Executor
	env      EnvProvider
	opts     Options
	logger   zerolog.Logger
}

// New creates a new warning service.
func New(logger zerolog.Logger, opts Options, env EnvProvider) *Impl {
	return NewWithExecutor(logger, opts, env, &process.DefaultExecutor{})
}

// NewWithExecutor creates a new warning service with a custom executor (for testing).
func NewWithExecutor(logger zerolog.Logger, opts Options, env EnvProvider, executor process.Executor) *Impl {
	if opts.RunuserPath == "" {
		opts.RunuserPath = "runuser"
	}
	return &Impl{
		executor: executor,
		env:      env,
		opts:     opts,
		logger:   logger,
	}
}

// Escalate shows the warning and maps the exit code to an outcome: 0 applies,
// 1 snoozes, anything else cancels. A process that cannot be started applies
// the action.
func (s *Impl) Escalate(ctx context.Context, req Request) *models.WarningResult {
	if !req.Policy.Enabled || s.opts.WarningApp == "" {
		return &models.WarningResult{Outcome: models.OutcomeApply}
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	name, args := s.command(req)

	s.logger.Info().
		Str("user", s.targetUser(req)).
		Str("action", req.Action.Label()).
		Int("countdown", req.Policy.CountdownSeconds).
		Msg("showing warning")

	out, err := s.executor.Run(ctx, nil, name, args...)
	if err != nil {
		s.logger.Warn().Err(err).Str("command", name).Msg("failed to start warning dialog, applying action")
		return &models.WarningResult{
			Outcome:  models.OutcomeApply,
			ExitCode: -1,
			Error:    err,
		}
	}

	result := &models.WarningResult{
		Launched: true,
		ExitCode: out.ExitCode,
		Stdout:   out.Stdout,
		Stderr:   out.Stderr,
	}

	switch out.ExitCode {
	case ExitApply:
		result.Outcome = models.OutcomeApply
	case ExitSnooze:
		result.Outcome = models.OutcomeSnooze
	default:
		result.Outcome = models.OutcomeCancel
	}

	if out.ExitCode != ExitApply {
		s.logger.Info().
			Int("exit_code", out.ExitCode).
			Str("stdout", out.Stdout).
			Str("stderr", out.Stderr).
			Str("outcome", string(result.Outcome)).
			Msg("warning dialog exited")
	}

	return result
}

func (s *Impl) targetUser(req Request) string {
	if s.opts.TargetUser != "" {
		return s.opts.TargetUser
	}
	return req.Session.User
}

// command builds the invocation: runuser -u <user> -- env K=V... <app> <flags>.
// Without a target user the app runs through env as the daemon's user.
func (s *Impl) command(req Request) (string, []string) {
	var args []string
	name := "env"
	if user := s.targetUser(req); user != "" {
		name = s.opts.RunuserPath
		args = append(args, "-u", user, "--", "env")
	}
	if s.env != nil {
		args = append(args, s.env.Environment(req.Session)...)
	}

	args = append(args, s.opts.WarningApp)
	args = append(args, Arguments(req.Policy, req.Action)...)
	return name, args
}

// Arguments renders the warning process flags. Visual and sound settings are
// forwarded as configured.
func Arguments(p models.WarningPolicy, action models.PowerAction) []string {
	args := []string{
		"--message", p.Message,
		"--countdown", strconv.Itoa(p.CountdownSeconds),
		"--snooze", strconv.Itoa(p.SnoozeMinutes),
	}
	if p.Theme != "" {
		args = append(args, "--theme", p.Theme)
	}
	if p.Fullscreen {
		args = append(args, "--fullscreen")
	}
	if p.Width > 0 {
		args = append(args, "--width", strconv.Itoa(p.Width))
	}
	if p.Height > 0 {
		args = append(args, "--height", strconv.Itoa(p.Height))
	}
	if p.SoundEnabled {
		args = append(args, "--sound-enabled")
		if p.SoundFile != "" {
			args = append(args, "--sound-file", p.SoundFile)
		}
		args = append(args, "--volume", strconv.Itoa(p.SoundVolume))
	}
	args = append(args, "--action", action.Label())
	return args
}
