package models

import "time"

// ScheduleConfig is the snapshot of the user's schedule document.
type ScheduleConfig struct {
	SingleShutdown DateTime
	SingleWake     DateTime
	Action         PowerAction
	Warning        WarningPolicy
	Weekly         [7]WeeklyEntry // indexed by WeekdayIndex, Monday first
	Session        SessionContext
}

// DateTime is a local calendar date plus a time of day. Either half may be
// unset, in which case the value is not usable for planning.
type DateTime struct {
	Date string // YYYY-MM-DD
	Time string // HH:mm
}

// Valid reports whether both halves parse.
func (d DateTime) Valid() bool {
	_, err := d.In(time.Local)
	return err == nil
}

// In resolves the date and time in loc.
func (d DateTime) In(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+ClockLayout, d.Date+" "+d.Time, loc)
}

// Layouts used by the schedule document.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// WeeklyEntry is one row of the recurring schedule.
type WeeklyEntry struct {
	Day          time.Weekday
	Enabled      bool
	ShutdownTime Clock
	WakeTime     Clock
}

// Clock is a time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses an HH:mm string.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return Clock{}, err
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// String formats the clock as HH:mm.
func (c Clock) String() string {
	return time.Date(2000, 1, 1, c.Hour, c.Minute, 0, 0, time.UTC).Format(ClockLayout)
}

// On returns the instant at this time of day on the calendar date of day, in loc.
func (c Clock) On(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, c.Hour, c.Minute, 0, 0, loc)
}

// WarningPolicy controls the interactive warning shown before an action.
// Sound and visual fields are forwarded to the warning process untouched.
type WarningPolicy struct {
	Enabled          bool
	Message          string
	CountdownSeconds int
	SnoozeMinutes    int
	SoundEnabled     bool
	SoundFile        string
	SoundVolume      int
	Theme            string
	Fullscreen       bool
	Width            int
	Height           int
}

// SessionContext describes the desktop session the warning is shown in.
type SessionContext struct {
	User           string
	Display        string
	XDGRuntimeDir  string
	DBusAddress    string
	XAuthority     string
	WaylandDisplay string
}

// WeekdayIndex maps a weekday to its slot in ScheduleConfig.Weekly (Monday = 0).
func WeekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(d time.Weekday) int {
	return WeekdayIndex(d) + 1
}

// WeekdayFromISO is the inverse of ISOWeekday.
func WeekdayFromISO(n int) (time.Weekday, bool) {
	if n < 1 || n > 7 {
		return time.Sunday, false
	}
	return time.Weekday(n % 7), true
}
