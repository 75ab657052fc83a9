package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fgeck/rtcwaked/internal/models"
	"github.com/spf13/afero"
)

// ErrScheduleUnavailable is returned when the schedule document is missing or
// unreadable. The accompanying config is always the default schedule.
var ErrScheduleUnavailable = errors.New("schedule unavailable")

// Defaults for a schedule document that does not specify them.
const (
	DefaultWarningMessage   = "System will suspend soon. Save your work."
	DefaultCountdownSeconds = 30
	DefaultSnoozeMinutes    = 5
	DefaultTheme            = "crimson"
	DefaultWidth            = 720
	DefaultHeight           = 360
	DefaultSoundVolume      = 80
)

var (
	defaultShutdownClock = models.Clock{Hour: 23, Minute: 0}
	defaultWakeClock     = models.Clock{Hour: 7, Minute: 30}
)

// DefaultSchedule returns the schedule used when no document is available.
func DefaultSchedule() models.ScheduleConfig {
	cfg := models.ScheduleConfig{
		Action: models.ActionSuspendToRAM,
		Warning: models.WarningPolicy{
			Enabled:          true,
			Message:          DefaultWarningMessage,
			CountdownSeconds: DefaultCountdownSeconds,
			SnoozeMinutes:    DefaultSnoozeMinutes,
			SoundVolume:      DefaultSoundVolume,
			Theme:            DefaultTheme,
			Width:            DefaultWidth,
			Height:           DefaultHeight,
		},
	}
	for i := range cfg.Weekly {
		cfg.Weekly[i] = defaultWeeklyEntry(time.Weekday((i + 1) % 7))
	}
	return cfg
}

func defaultWeeklyEntry(day time.Weekday) models.WeeklyEntry {
	return models.WeeklyEntry{
		Day:          day,
		ShutdownTime: defaultShutdownClock,
		WakeTime:     defaultWakeClock,
	}
}

// scheduleDocument is the JSON layout shared with the schedule editor.
type scheduleDocument struct {
	SingleShutdown dateTimeJSON `json:"singleShutdown"`
	SingleWake     dateTimeJSON `json:"singleWake"`
	ActionID       int          `json:"actionId"`
	Warning        warningJSON  `json:"warning"`
	Weekly         []weeklyJSON `json:"weekly"`
	Session        sessionJSON  `json:"session"`
}

type dateTimeJSON struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type warningJSON struct {
	Enabled          bool   `json:"enabled"`
	Message          string `json:"message"`
	CountdownSeconds int    `json:"countdownSeconds"`
	SnoozeMinutes    int    `json:"snoozeMinutes"`
	SoundEnabled     bool   `json:"soundEnabled"`
	SoundFile        string `json:"soundFile"`
	SoundVolume      int    `json:"soundVolume"`
	Theme            string `json:"theme"`
	Fullscreen       bool   `json:"fullscreen"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
}

type weeklyJSON struct {
	Day          int    `json:"day"`
	Enabled      bool   `json:"enabled"`
	ShutdownTime string `json:"shutdownTime"`
	WakeTime     string `json:"wakeTime"`
}

type sessionJSON struct {
	User           string `json:"user"`
	Display        string `json:"display"`
	XDGRuntimeDir  string `json:"xdgRuntimeDir"`
	DBusAddress    string `json:"dbusAddress"`
	XAuthority     string `json:"xauthority"`
	WaylandDisplay string `json:"waylandDisplay"`
}

// ParseSchedule decodes a schedule document. Fields that are missing or
// malformed keep their default values.
func ParseSchedule(data []byte) (models.ScheduleConfig, error) {
	cfg := DefaultSchedule()

	doc := scheduleDocument{
		ActionID: int(cfg.Action),
		Warning:  warningToJSON(cfg.Warning),
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return cfg, fmt.Errorf("parse schedule: %w", err)
	}

	cfg.SingleShutdown = normalizeDateTime(doc.SingleShutdown)
	cfg.SingleWake = normalizeDateTime(doc.SingleWake)

	cfg.Action = models.PowerAction(doc.ActionID)
	if !cfg.Action.Valid() {
		cfg.Action = models.ActionNone
	}

	cfg.Warning = warningFromJSON(doc.Warning)
	if cfg.Warning.CountdownSeconds < 0 {
		cfg.Warning.CountdownSeconds = 0
	}
	if cfg.Warning.SnoozeMinutes < 1 {
		cfg.Warning.SnoozeMinutes = 1
	}

	// a later row for the same day replaces an earlier one
	for _, row := range doc.Weekly {
		day, ok := models.WeekdayFromISO(row.Day)
		if !ok {
			continue
		}

		entry := defaultWeeklyEntry(day)
		entry.Enabled = row.Enabled
		if c, err := parseClockLenient(row.ShutdownTime); err == nil {
			entry.ShutdownTime = c
		}
		if c, err := parseClockLenient(row.WakeTime); err == nil {
			entry.WakeTime = c
		}
		cfg.Weekly[models.WeekdayIndex(day)] = entry
	}

	cfg.Session = models.SessionContext{
		User:           doc.Session.User,
		Display:        doc.Session.Display,
		XDGRuntimeDir:  doc.Session.XDGRuntimeDir,
		DBusAddress:    doc.Session.DBusAddress,
		XAuthority:     doc.Session.XAuthority,
		WaylandDisplay: doc.Session.WaylandDisplay,
	}

	return cfg, nil
}

// SerializeSchedule encodes cfg as a schedule document.
func SerializeSchedule(cfg models.ScheduleConfig) ([]byte, error) {
	doc := scheduleDocument{
		SingleShutdown: dateTimeJSON{Date: cfg.SingleShutdown.Date, Time: cfg.SingleShutdown.Time},
		SingleWake:     dateTimeJSON{Date: cfg.SingleWake.Date, Time: cfg.SingleWake.Time},
		ActionID:       int(cfg.Action),
		Warning:        warningToJSON(cfg.Warning),
		Weekly:         make([]weeklyJSON, 0, len(cfg.Weekly)),
		Session: sessionJSON{
			User:           cfg.Session.User,
			Display:        cfg.Session.Display,
			XDGRuntimeDir:  cfg.Session.XDGRuntimeDir,
			DBusAddress:    cfg.Session.DBusAddress,
			XAuthority:     cfg.Session.XAuthority,
			WaylandDisplay: cfg.Session.WaylandDisplay,
		},
	}
	for _, entry := range cfg.Weekly {
		doc.Weekly = append(doc.Weekly, weeklyJSON{
			Day:          models.ISOWeekday(entry.Day),
			Enabled:      entry.Enabled,
			ShutdownTime: entry.ShutdownTime.String(),
			WakeTime:     entry.WakeTime.String(),
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode schedule: %w", err)
	}
	return data, nil
}

func warningToJSON(w models.WarningPolicy) warningJSON {
	return warningJSON{
		Enabled:          w.Enabled,
		Message:          w.Message,
		CountdownSeconds: w.CountdownSeconds,
		SnoozeMinutes:    w.SnoozeMinutes,
		SoundEnabled:     w.SoundEnabled,
		SoundFile:        w.SoundFile,
		SoundVolume:      w.SoundVolume,
		Theme:            w.Theme,
		Fullscreen:       w.Fullscreen,
		Width:            w.Width,
		Height:           w.Height,
	}
}

func warningFromJSON(w warningJSON) models.WarningPolicy {
	return models.WarningPolicy{
		Enabled:          w.Enabled,
		Message:          w.Message,
		CountdownSeconds: w.CountdownSeconds,
		SnoozeMinutes:    w.SnoozeMinutes,
		SoundEnabled:     w.SoundEnabled,
		SoundFile:        w.SoundFile,
		SoundVolume:      w.SoundVolume,
		Theme:            w.Theme,
		Fullscreen:       w.Fullscreen,
		Width:            w.Width,
		Height:           w.Height,
	}
}

// normalizeDateTime rewrites a date/time pair to YYYY-MM-DD and HH:mm.
// Unparseable halves are cleared.
func normalizeDateTime(in dateTimeJSON) models.DateTime {
	var out models.DateTime
	if d, err := time.Parse(models.DateLayout, strings.TrimSpace(in.Date)); err == nil {
		out.Date = d.Format(models.DateLayout)
	}
	if c, err := parseClockLenient(in.Time); err == nil {
		out.Time = c.String()
	}
	return out
}

// parseClockLenient accepts HH:mm and HH:mm:ss; seconds are dropped.
func parseClockLenient(s string) (models.Clock, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("15:04:05", s); err == nil {
		return models.Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
	}
	return models.ParseClock(s)
}

// ScheduleStore reads and writes the schedule document.
type ScheduleStore struct {
	fs   afero.Fs
	path string
}

// NewScheduleStore creates a store for the document at path.
func NewScheduleStore(fs afero.Fs, path string) *ScheduleStore {
	return &ScheduleStore{fs: fs, path: path}
}

// Path returns the document path.
func (s *ScheduleStore) Path() string {
	return s.path
}

// Load reads the schedule document. On any failure the default schedule is
// returned together with an error wrapping ErrScheduleUnavailable.
func (s *ScheduleStore) Load() (models.ScheduleConfig, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSchedule(), fmt.Errorf("%w: %s does not exist", ErrScheduleUnavailable, s.path)
		}
		return DefaultSchedule(), fmt.Errorf("%w: read %s: %w", ErrScheduleUnavailable, s.path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return DefaultSchedule(), fmt.Errorf("%w: %s is empty", ErrScheduleUnavailable, s.path)
	}

	cfg, err := ParseSchedule(data)
	if err != nil {
		return DefaultSchedule(), fmt.Errorf("%w: %w", ErrScheduleUnavailable, err)
	}
	return cfg, nil
}

// Save writes the schedule document atomically.
func (s *ScheduleStore) Save(cfg models.ScheduleConfig) error {
	data, err := SerializeSchedule(cfg)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create schedule dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write schedule: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace schedule: %w", err)
	}
	return nil
}
