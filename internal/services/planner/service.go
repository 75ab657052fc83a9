// Package planner computes the next scheduled shutdown/wake occurrence.
package planner

import (
	"time"

	"github.com/fgeck/rtcwaked/internal/models"
)

// Service defines the interface for schedule planning.
type Service interface {
	NextEvent(cfg models.ScheduleConfig, now time.Time) (models.PlannedEvent, bool)
}

// Impl implements the planner Service interface. It holds no state.
type Impl struct{}

// New creates a new planner.
func New() *Impl {
	return &Impl{}
}

// NextEvent returns the occurrence with the earliest shutdown instant that is
// strictly after now, or false when nothing is scheduled. Instants are
// resolved in now's location.
func (p *Impl) NextEvent(cfg models.ScheduleConfig, now time.Time) (models.PlannedEvent, bool) {
	return NextEvent(cfg, now)
}

// NextEvent is the pure planning function behind Impl.
func NextEvent(cfg models.ScheduleConfig, now time.Time) (models.PlannedEvent, bool) {
	var (
		best  models.PlannedEvent
		found bool
	)

	consider := func(ev models.PlannedEvent) {
		if !found || ev.Shutdown.Before(best.Shutdown) {
			best = ev
			found = true
		}
	}

	if ev, ok := singleCandidate(cfg, now); ok {
		consider(ev)
	}

	for _, entry := range cfg.Weekly {
		if !entry.Enabled {
			continue
		}
		consider(weeklyCandidate(entry, cfg.Action, now))
	}

	return best, found
}

func singleCandidate(cfg models.ScheduleConfig, now time.Time) (models.PlannedEvent, bool) {
	loc := now.Location()
	shutdown, err := cfg.SingleShutdown.In(loc)
	if err != nil {
		return models.PlannedEvent{}, false
	}
	wake, err := cfg.SingleWake.In(loc)
	if err != nil {
		return models.PlannedEvent{}, false
	}
	if !shutdown.After(now) || !shutdown.Before(wake) {
		return models.PlannedEvent{}, false
	}
	return models.PlannedEvent{
		Shutdown: shutdown,
		Wake:     wake,
		Action:   cfg.Action,
		Source:   "single",
	}, true
}

func weeklyCandidate(entry models.WeeklyEntry, action models.PowerAction, now time.Time) models.PlannedEvent {
	loc := now.Location()
	offset := (int(entry.Day) - int(now.Weekday()) + 7) % 7

	year, month, day := now.Date()
	shutdown := entry.ShutdownTime.On(year, month, day+offset, loc)
	if !shutdown.After(now) {
		shutdown = entry.ShutdownTime.On(year, month, day+offset+7, loc)
	}

	sy, sm, sd := shutdown.Date()
	wake := entry.WakeTime.On(sy, sm, sd, loc)
	if !wake.After(shutdown) {
		wake = entry.WakeTime.On(sy, sm, sd+1, loc)
	}

	return models.PlannedEvent{
		Shutdown: shutdown,
		Wake:     wake,
		Action:   action,
		Source:   entry.Day.String(),
	}
}
