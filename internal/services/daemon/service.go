// Package daemon drives the shutdown/wake lifecycle: it plans the next
// occurrence, arms a timer for it, asks the user, and applies the power action.
package daemon

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/fgeck/rtcwaked/internal/config"
	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/fgeck/rtcwaked/internal/services/planner"
	"github.com/fgeck/rtcwaked/internal/services/rtcwake"
	"github.com/fgeck/rtcwaked/internal/services/ssh"
	"github.com/fgeck/rtcwaked/internal/services/summary"
	"github.com/fgeck/rtcwaked/internal/services/telegram"
	"github.com/fgeck/rtcwaked/internal/services/warning"
	"github.com/fgeck/rtcwaked/internal/services/wol"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const wallClockLayout = "2006-01-02 15:04"

// Service defines the interface for the daemon.
type Service interface {
	Run(ctx context.Context) error
}

// ScheduleSource loads the schedule document.
type ScheduleSource interface {
	Load() (models.ScheduleConfig, error)
	Path() string
}

// Services bundles the collaborators the daemon drives.
type Services struct {
	Planner  planner.Service
	Power    rtcwake.Service
	Warning  warning.Service
	Summary  summary.Writer
	Audit    summary.Auditor
	WOL      wol.Service
	SSH      ssh.Service
	Telegram telegram.Service
}

// Impl implements the daemon Service interface. All fields below the
// collaborators are owned by the goroutine running Run.
type Impl struct {
	opts     models.DaemonOptions
	store    ScheduleSource
	svc      Services
	clock    clock.Clock
	logger   zerolog.Logger
	hostname string

	cfg            models.ScheduleConfig
	state          State
	pending        *Occurrence
	programmedWake time.Time
}

// New creates a daemon wired to the real commands and filesystem.
func New(logger zerolog.Logger, opts models.DaemonOptions) *Impl {
	fs := afero.NewOsFs()
	clk := clock.New()

	owner, err := summary.LookupOwner(opts.TargetUser)
	if err != nil {
		logger.Warn().Err(err).Msg("state files will keep the daemon's ownership")
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	svc := Services{
		Planner: planner.New(),
		Power: rtcwake.New(logger, rtcwake.Options{
			RTCWakePath:  opts.RTCWakePath,
			PowerCommand: opts.PowerCommand,
			Timeout:      opts.CommandTimeout,
		}),
		Warning: warning.New(logger, warning.Options{
			WarningApp:  opts.WarningApp,
			TargetUser:  opts.TargetUser,
			RunuserPath: opts.RunuserPath,
			Timeout:     opts.CommandTimeout,
		}, warning.NewSessionEnv(opts.TargetHome)),
		Summary:  summary.NewWriter(fs, opts.StateDir, owner),
		Audit:    summary.NewAuditLog(fs, opts.StateDir, owner, clk),
		WOL:      wol.New(logger),
		SSH:      ssh.New(logger),
		Telegram: telegram.New(logger),
	}

	return NewWithServices(logger, opts, config.NewScheduleStore(fs, opts.ScheduleFile), svc, clk, hostname)
}

// NewWithServices creates a daemon with custom collaborators (for testing).
func NewWithServices(
	logger zerolog.Logger,
	opts models.DaemonOptions,
	store ScheduleSource,
	svc Services,
	clk clock.Clock,
	hostname string,
) *Impl {
	if opts.PeriodicInterval <= 0 {
		opts.PeriodicInterval = config.DefaultPeriodicInterval
	}
	if opts.Debounce <= 0 {
		opts.Debounce = config.DefaultDebounce
	}
	return &Impl{
		opts:     opts,
		store:    store,
		svc:      svc,
		clock:    clk,
		logger:   logger,
		hostname: hostname,
		cfg:      config.DefaultSchedule(),
	}
}

// State returns the current lifecycle state.
func (d *Impl) State() State {
	return d.state
}

// Pending returns the armed occurrence, if any.
func (d *Impl) Pending() (Occurrence, bool) {
	if d.pending == nil {
		return Occurrence{}, false
	}
	return *d.pending, true
}

// Start records the daemon start, loads the schedule and plans the first
// occurrence.
func (d *Impl) Start(ctx context.Context) {
	d.logger.Info().
		Int("pid", os.Getpid()).
		Str("schedule", d.store.Path()).
		Msg("daemon starting")
	d.audit("daemon_start", summary.F("pid", os.Getpid()))

	d.load()
	d.PlanNext(ctx, ReasonStartup)
}

// Stop records the daemon stop.
func (d *Impl) Stop() {
	d.logger.Info().Str("state", d.state.String()).Msg("daemon stopping")
	d.audit("daemon_stop", summary.F("state", d.state))
}

// ConfigChanged records a change notification for the schedule document.
// The reload itself happens once the debounce window has passed.
func (d *Impl) ConfigChanged(op string) {
	d.logger.Debug().Str("op", op).Msg("schedule changed")
	d.audit("config_watch", summary.F("event", "changed"), summary.F("op", op))
}

// Reload re-reads the schedule and replans, replacing any snoozed occurrence.
func (d *Impl) Reload(ctx context.Context) {
	d.audit("config_reload", summary.F("path", d.store.Path()))
	d.load()
	d.PlanNext(ctx, ReasonConfigChanged)
}

// Periodic replans unless the user has snoozed the armed occurrence.
func (d *Impl) Periodic(ctx context.Context) {
	if d.pending != nil && d.pending.Snoozed() {
		d.logger.Debug().
			Time("due", d.pending.Due).
			Msg("keeping snoozed occurrence")
		return
	}
	d.PlanNext(ctx, ReasonPeriodic)
}

func (d *Impl) load() {
	cfg, err := d.store.Load()
	if err != nil {
		if errors.Is(err, config.ErrScheduleUnavailable) {
			d.logger.Warn().Err(err).Msg("using default schedule")
		} else {
			d.logger.Error().Err(err).Msg("failed to load schedule")
		}
	}
	d.cfg = cfg
}

// PlanNext asks the planner for the next occurrence, pre-programs the RTC for
// its wake instant, arms the event timer and rewrites the summary.
func (d *Impl) PlanNext(ctx context.Context, reason Reason) {
	event, ok := d.svc.Planner.NextEvent(d.cfg, d.clock.Now())
	if !ok {
		d.pending = nil
		d.setState(StateIdle, reason)
		d.logger.Info().Str("reason", string(reason)).Msg("no upcoming events")
		d.audit("schedule",
			summary.F("status", "empty"),
			summary.F("reason", reason),
		)
		return
	}

	id := uuid.NewString()
	if d.pending != nil && !d.pending.Snoozed() && sameEvent(d.pending.Event, event) {
		id = d.pending.ID
	}
	d.pending = &Occurrence{ID: id, Event: event, Due: event.Shutdown}

	d.logger.Info().
		Str("reason", string(reason)).
		Str("occurrence", id).
		Time("shutdown", event.Shutdown).
		Time("wake", event.Wake).
		Str("action", event.Action.Label()).
		Str("source", event.Source).
		Msg("next occurrence planned")
	d.audit("schedule",
		summary.F("status", "planned"),
		summary.F("reason", reason),
		summary.F("occurrence", id),
		summary.F("shutdown", event.Shutdown.Format(wallClockLayout)),
		summary.F("wake", event.Wake.Format(wallClockLayout)),
		summary.F("action", event.Action.Label()),
	)

	d.programAlarm(ctx, event)

	if _, err := d.svc.Summary.Write(event); err != nil {
		d.logger.Error().Err(err).Msg("failed to write summary")
	}

	d.setState(StateArmed, reason)
}

func (d *Impl) programAlarm(ctx context.Context, event models.PlannedEvent) {
	if !d.programmedWake.IsZero() && d.programmedWake.Equal(event.Wake) {
		return
	}

	result, err := d.svc.Power.ProgramAlarm(ctx, event.Wake.UTC())
	if err != nil {
		d.logger.Error().Err(err).Msg("cannot program RTC alarm")
		return
	}
	d.auditCommand(models.ActionNone, event.Wake, result)

	if result.Success {
		d.programmedWake = event.Wake
		d.logger.Info().
			Time("wake", event.Wake).
			Str("command", result.CommandLine).
			Msg("RTC alarm programmed")
		return
	}
	d.programmedWake = time.Time{}
	d.logger.Error().
		Time("wake", event.Wake).
		Str("command", result.CommandLine).
		Str("stderr", result.Stderr).
		Msg("failed to program RTC alarm")
}

// HandleEventDue runs the warning step for the armed occurrence once its due
// instant has been reached. Calls before that, or after ctx is done, are
// ignored.
func (d *Impl) HandleEventDue(ctx context.Context) {
	occ := d.pending
	if occ == nil || ctx.Err() != nil || d.clock.Now().Before(occ.Due) {
		return
	}

	d.setState(StateAwaitingOutcome, ReasonEventDue)
	result := d.svc.Warning.Escalate(ctx, warning.Request{
		Policy:  d.cfg.Warning,
		Session: d.cfg.Session,
		Action:  occ.Event.Action,
	})

	// The dialog was killed because the daemon is stopping, not answered by
	// the user. The occurrence is left armed.
	if ctx.Err() != nil {
		d.logger.Info().
			Str("occurrence", occ.ID).
			Int("exit_code", result.ExitCode).
			Msg("daemon stopping, warning outcome discarded")
		d.setState(StateArmed, ReasonShutdown)
		return
	}

	switch result.Outcome {
	case models.OutcomeSnooze:
		d.snooze(occ)
	case models.OutcomeCancel:
		d.cancel(ctx, occ, result)
	case models.OutcomeApply:
		d.apply(ctx, occ, result)
	default:
		d.logger.Error().Str("outcome", string(result.Outcome)).Msg("unknown warning outcome, applying action")
		d.apply(ctx, occ, result)
	}
}

func (d *Impl) snooze(occ *Occurrence) {
	minutes := d.cfg.Warning.SnoozeMinutes
	if minutes < 1 {
		minutes = 1
	}

	d.setState(StateRetrying, ReasonSnooze)
	occ.Due = d.clock.Now().Add(time.Duration(minutes) * time.Minute)
	occ.Snoozes++

	d.logger.Info().
		Str("occurrence", occ.ID).
		Int("minutes", minutes).
		Time("due", occ.Due).
		Msg("power action snoozed")
	d.audit("warning",
		summary.F("outcome", models.OutcomeSnooze),
		summary.F("minutes", minutes),
		summary.F("occurrence", occ.ID),
	)
	d.setState(StateArmed, ReasonSnooze)
}

func (d *Impl) cancel(ctx context.Context, occ *Occurrence, result *models.WarningResult) {
	d.logger.Info().
		Str("occurrence", occ.ID).
		Int("exit_code", result.ExitCode).
		Msg("power action canceled by user")
	d.audit("warning",
		summary.F("outcome", models.OutcomeCancel),
		summary.F("exit", result.ExitCode),
		summary.F("occurrence", occ.ID),
	)
	d.notify(ctx, models.TelegramMessage{
		Host:        d.hostname,
		ActionLabel: occ.Event.Action.Label(),
		Outcome:     models.OutcomeCancel,
		Shutdown:    occ.Event.Shutdown,
		Wake:        occ.Event.Wake,
	})

	d.pending = nil
	d.PlanNext(ctx, ReasonUserCanceled)
}

// apply executes the occurrence's action. Whatever happens, the next
// occurrence is planned afterwards.
func (d *Impl) apply(ctx context.Context, occ *Occurrence, warned *models.WarningResult) {
	defer d.PlanNext(ctx, ReasonActionCompleted)
	d.pending = nil

	fields := []summary.Field{
		summary.F("outcome", models.OutcomeApply),
		summary.F("launched", warned.Launched),
		summary.F("occurrence", occ.ID),
	}
	if warned.Error != nil {
		fields = append(fields, summary.F("error", warned.Error))
	}
	d.audit("warning", fields...)

	event := occ.Event
	switch {
	case event.Action == models.ActionNone:
		d.logger.Info().Str("occurrence", occ.ID).Msg("no power transition requested")
		d.audit("action",
			summary.F("status", "skipped"),
			summary.F("reason", "no_action"),
			summary.F("occurrence", occ.ID),
		)
		return
	case event.Wake.IsZero():
		d.logger.Error().Str("occurrence", occ.ID).Msg("cannot arm RTC: wake time is invalid")
		d.audit("action",
			summary.F("status", "skipped"),
			summary.F("reason", "invalid_wake"),
			summary.F("occurrence", occ.ID),
		)
		return
	}

	d.shutdownCompanions(ctx)

	var (
		result *models.CommandResult
		err    error
	)
	if event.Wake.After(d.clock.Now()) {
		result, err = d.svc.Power.ScheduleWake(ctx, event.Wake.UTC(), event.Action)
	} else {
		d.logger.Warn().
			Time("wake", event.Wake).
			Msg("wake time already passed, transitioning without RTC alarm")
		result, err = d.svc.Power.ExecuteAction(ctx, event.Action)
	}
	if err != nil {
		d.logger.Error().Err(err).Msg("cannot execute power action")
		return
	}
	d.programmedWake = time.Time{}
	d.auditCommand(event.Action, event.Wake, result)

	if result.Success {
		d.logger.Info().
			Str("action", event.Action.Label()).
			Time("wake", event.Wake).
			Str("command", result.CommandLine).
			Msg("power action completed")
	} else {
		d.logger.Error().
			Str("action", event.Action.Label()).
			Str("command", result.CommandLine).
			Str("stderr", result.Stderr).
			Int("exit_code", result.ExitCode).
			Msg("power action failed")
	}

	if result.Success && event.Action.Resumes() {
		d.wakeCompanions(ctx)
	}

	d.notify(ctx, models.TelegramMessage{
		Success:     result.Success,
		Host:        d.hostname,
		ActionLabel: event.Action.Label(),
		Outcome:     models.OutcomeApply,
		Shutdown:    event.Shutdown,
		Wake:        event.Wake,
		CommandLine: result.CommandLine,
		ErrorOutput: result.Stderr,
	})
}

func (d *Impl) setState(next State, reason Reason) {
	if d.state == next {
		return
	}
	d.logger.Debug().
		Str("from", d.state.String()).
		Str("state", next.String()).
		Str("reason", string(reason)).
		Msg("state transition")
	d.state = next
}

func (d *Impl) auditCommand(action models.PowerAction, wake time.Time, result *models.CommandResult) {
	d.audit("rtcwake",
		summary.F("action", action.Label()),
		summary.F("wake", wake.Format(wallClockLayout)),
		summary.F("command", result.CommandLine),
		summary.F("exit", result.ExitCode),
		summary.F("success", result.Success),
		summary.F("stderr", result.Stderr),
	)
}

func (d *Impl) audit(category string, fields ...summary.Field) {
	if err := d.svc.Audit.Append(category, fields...); err != nil {
		d.logger.Warn().Err(err).Str("category", category).Msg("failed to append audit log")
	}
}
