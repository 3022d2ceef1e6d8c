package model

import (
	"errors"
	"time"
)

type EventType struct {
	ID              string
	HostID          string
	Slug            string
	Title           string
	DurationMinutes int
	BufferBefore    int
	BufferAfter     int
	MinNotice       int
	MaxDaysAhead    int
	MaxAttendees    int
	FixedWindow     *WallWindow
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (e EventType) Validate() error {
	var errs []error
	if e.DurationMinutes <= 0 {
		errs = append(errs, errors.New("duration must be positive"))
	}
	if e.BufferBefore < 0 || e.BufferAfter < 0 {
		errs = append(errs, errors.New("buffers must not be negative"))
	}
	if e.MinNotice < 0 {
		errs = append(errs, errors.New("min notice must not be negative"))
	}
	if e.MaxDaysAhead < 1 {
		errs = append(errs, errors.New("max days ahead must be at least 1"))
	}
	if e.MaxAttendees < 1 {
		errs = append(errs, errors.New("max attendees must be at least 1"))
	}
	if e.FixedWindow != nil && e.FixedWindow.Start >= e.FixedWindow.End {
		errs = append(errs, errors.New("fixed window start must be before end"))
	}
	return errors.Join(errs...)
}

func (e EventType) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}
