package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day in minutes since midnight. 24:00 is
// allowed as an end bound.
type Clock int

const MinutesPerDay Clock = 24 * 60

func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) != 2 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	return Clock(h*60 + m), nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On returns the instant of c on the given local date. Dates are built with
// time.Date so DST gaps resolve the way the standard library normalizes them.
func (c Clock) On(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, int(c)/60, int(c)%60, 0, 0, loc)
}

// WallWindow is a wall-clock window with no date component.
type WallWindow struct {
	Start Clock
	End   Clock
}

func NewWallWindow(start, end string) (WallWindow, error) {
	s, err := ParseClock(start)
	if err != nil {
		return WallWindow{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return WallWindow{}, err
	}
	if s >= e {
		return WallWindow{}, fmt.Errorf("start %s must be before end %s", start, end)
	}
	if s == MinutesPerDay {
		return WallWindow{}, fmt.Errorf("start %s is not a valid start time", start)
	}
	return WallWindow{Start: s, End: e}, nil
}

type AvailabilityRule struct {
	ID        string
	HostID    string
	Weekday   time.Weekday
	Window    WallWindow
	CreatedAt time.Time
}

// Date is a calendar date without time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const DateLayout = "2006-01-02"

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return DateOf(t), nil
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Midnight is the first instant of d in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) AddDays(n int) Date {
	return DateOf(time.Date(d.Year, d.Month, d.Day+n, 12, 0, 0, 0, time.UTC))
}

func (d Date) Weekday() time.Weekday {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).Weekday()
}

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

// DateOverride replaces every weekly rule on one date. Window is set only
// when Available is true.
type DateOverride struct {
	HostID    string
	Date      Date
	Available bool
	Window    *WallWindow
	Reason    string
	UpdatedAt time.Time
}

func (o DateOverride) Validate() error {
	if o.Available && o.Window == nil {
		return fmt.Errorf("override %s: available overrides need a start and end", o.Date)
	}
	if o.Window != nil && o.Window.Start >= o.Window.End {
		return fmt.Errorf("override %s: start must be before end", o.Date)
	}
	return nil
}
