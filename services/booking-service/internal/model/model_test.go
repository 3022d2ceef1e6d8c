package model

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want Clock
		ok   bool
	}{
		{"09:00", 540, true},
		{"24:00", MinutesPerDay, true},
		{"24:30", 0, false},
		{"9:00", 0, false},
		{"12:60", 0, false},
		{"ab:cd", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if (err == nil) != tc.ok {
			t.Fatalf("ParseClock(%q) err=%v, want ok=%v", tc.in, err, tc.ok)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("ParseClock(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestNewWallWindowRejectsInverted(t *testing.T) {
	if _, err := NewWallWindow("17:00", "09:00"); err == nil {
		t.Fatal("expected inverted window to fail")
	}
	if _, err := NewWallWindow("09:00", "09:00"); err == nil {
		t.Fatal("expected empty window to fail")
	}
	w, err := NewWallWindow("18:00", "24:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.End.String() != "24:00" {
		t.Fatalf("unexpected end %s", w.End)
	}
}

func TestDateHelpers(t *testing.T) {
	d, err := ParseDate("2026-03-02")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.Weekday() != time.Monday {
		t.Fatalf("expected Monday, got %s", d.Weekday())
	}
	if got := d.AddDays(30).String(); got != "2026-04-01" {
		t.Fatalf("unexpected AddDays result %s", got)
	}
	if !d.Before(d.AddDays(1)) || d.AddDays(1).Before(d) {
		t.Fatal("Before ordering broken")
	}
}

func TestOverrideValidate(t *testing.T) {
	if err := (DateOverride{Available: true}).Validate(); err == nil {
		t.Fatal("available override without window must fail")
	}
	if err := (DateOverride{Available: false, Reason: "Holiday"}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEventTypeValidate(t *testing.T) {
	et := EventType{DurationMinutes: 30, MaxDaysAhead: 30, MaxAttendees: 1}
	if err := et.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	et.DurationMinutes = 0
	et.MaxDaysAhead = 0
	if err := et.Validate(); err == nil {
		t.Fatal("expected validation errors")
	}
}

func TestStatusTransitions(t *testing.T) {
	if !StatusConfirmed.CanTransition(StatusNoShow) {
		t.Fatal("confirmed -> no show should be allowed")
	}
	if StatusCancelled.CanTransition(StatusConfirmed) {
		t.Fatal("cancelled bookings are terminal")
	}
	if StatusCompleted.CanTransition(StatusCancelled) {
		t.Fatal("completed bookings are terminal")
	}
}
