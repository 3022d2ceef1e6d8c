package scheduling

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/busy"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/interval"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

type world struct {
	host       model.Host
	eventTypes map[string]model.EventType
	rules      []model.AvailabilityRule
	overrides  []model.DateOverride
	bookings   []model.Booking
	external   []interval.Interval
	calErr     error
	calCalls   int
}

func (w *world) EventType(_ context.Context, id string) (model.EventType, error) {
	et, ok := w.eventTypes[id]
	if !ok {
		return model.EventType{}, apperr.NotFound("event type")
	}
	return et, nil
}

func (w *world) Host(_ context.Context, id string) (model.Host, error) {
	if id != w.host.ID {
		return model.Host{}, apperr.NotFound("host")
	}
	return w.host, nil
}

func (w *world) Rules(context.Context, string) ([]model.AvailabilityRule, error) {
	return w.rules, nil
}

func (w *world) Overrides(_ context.Context, _ string, from, to model.Date) ([]model.DateOverride, error) {
	var out []model.DateOverride
	for _, o := range w.overrides {
		if !o.Date.Before(from) && !to.Before(o.Date) {
			out = append(out, o)
		}
	}
	return out, nil
}

// BlockingBookings pads each booking with its event type's current buffers,
// the way the SQL join does.
func (w *world) BlockingBookings(_ context.Context, _ string, from, to time.Time, excludeID string) ([]model.BusyBooking, error) {
	var out []model.BusyBooking
	for _, b := range w.bookings {
		if b.ID == excludeID || b.Status == model.StatusCancelled {
			continue
		}
		if !b.Start.Before(to) || !b.End.After(from) {
			continue
		}
		et := w.eventTypes[b.EventTypeID]
		out = append(out, model.BusyBooking{
			ID:           b.ID,
			EventTypeID:  b.EventTypeID,
			Start:        b.Start,
			End:          b.End,
			BufferBefore: time.Duration(et.BufferBefore) * time.Minute,
			BufferAfter:  time.Duration(et.BufferAfter) * time.Minute,
		})
	}
	return out, nil
}

func (w *world) BusyIntervals(context.Context, string, time.Time, time.Time) ([]interval.Interval, error) {
	w.calCalls++
	if w.calErr != nil {
		return nil, w.calErr
	}
	return w.external, nil
}

var (
	sunday = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
)

func at(h, m int) time.Time {
	return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w, err := model.NewWallWindow("09:00", "17:00")
	if err != nil {
		t.Fatal(err)
	}
	return &world{
		host: model.Host{ID: "host-1", Timezone: "UTC"},
		eventTypes: map[string]model.EventType{
			"intro": {ID: "intro", HostID: "host-1", DurationMinutes: 30, MaxDaysAhead: 60, MaxAttendees: 1, Active: true},
		},
		rules: []model.AvailabilityRule{{HostID: "host-1", Weekday: time.Monday, Window: w}},
		bookings: []model.Booking{
			{ID: "b1", HostID: "host-1", EventTypeID: "intro", Start: at(10, 0), End: at(10, 30), Status: model.StatusConfirmed},
		},
	}
}

func newEngine(w *world, cfg Config) *Engine {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg.Clock = func() time.Time { return sunday }
	return NewEngine(w, availability.NewResolver(w), busy.NewAggregator(w, w), logger, cfg)
}

func locals(slots []availability.Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Local)
	}
	return out
}

func has(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func TestDaySlots_ExistingBooking(t *testing.T) {
	e := newEngine(newWorld(t), Config{})
	res, err := e.DaySlots(context.Background(), DayQuery{EventTypeID: "intro", Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("DaySlots: %v", err)
	}
	got := locals(res.Slots)
	for _, want := range []string{"09:00", "09:30", "10:30", "11:00", "16:30"} {
		if !has(got, want) {
			t.Fatalf("expected %s in %v", want, got)
		}
	}
	for _, banned := range []string{"10:00", "09:45", "10:15", "16:45"} {
		if has(got, banned) {
			t.Fatalf("did not expect %s in %v", banned, got)
		}
	}
}

func TestDaySlots_BufferAfter(t *testing.T) {
	w := newWorld(t)
	et := w.eventTypes["intro"]
	et.BufferAfter = 15
	w.eventTypes["intro"] = et

	res, err := newEngine(w, Config{}).DaySlots(context.Background(), DayQuery{EventTypeID: "intro", Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("DaySlots: %v", err)
	}
	got := locals(res.Slots)
	if has(got, "10:30") || has(got, "10:00") {
		t.Fatalf("10:30 must be excluded by the buffered predecessor, got %v", got)
	}
	if !has(got, "11:00") || !has(got, "10:45") {
		t.Fatalf("expected 10:45 and 11:00 to remain, got %v", got)
	}
}

func TestDaySlots_HolidayOverride(t *testing.T) {
	w := newWorld(t)
	w.overrides = []model.DateOverride{{HostID: "host-1", Date: model.DateOf(monday), Available: false, Reason: "Holiday"}}
	e := newEngine(w, Config{})

	res, err := e.DaySlots(context.Background(), DayQuery{EventTypeID: "intro", Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("DaySlots: %v", err)
	}
	if len(res.Slots) != 0 {
		t.Fatalf("expected no slots on a holiday, got %v", locals(res.Slots))
	}
	if res.Slots == nil {
		t.Fatal("empty day must be an empty list, not nil")
	}
	if w.calCalls != 0 {
		t.Fatal("a day without windows should not consult the calendar")
	}

	month, err := e.MonthDays(context.Background(), MonthQuery{EventTypeID: "intro", Month: "2026-03"})
	if err != nil {
		t.Fatalf("MonthDays: %v", err)
	}
	for _, d := range month.Dates {
		if d == model.DateOf(monday) {
			t.Fatal("holiday must be excluded from the month")
		}
	}
	if len(month.Dates) != 4 {
		t.Fatalf("expected the four remaining Mondays of March, got %v", month.Dates)
	}
}

func TestMonthDays_IdempotentAndSingleCalendarCall(t *testing.T) {
	w := newWorld(t)
	e := newEngine(w, Config{})

	first, err := e.MonthDays(context.Background(), MonthQuery{EventTypeID: "intro", Month: "2026-03"})
	if err != nil {
		t.Fatalf("MonthDays: %v", err)
	}
	if w.calCalls != 1 {
		t.Fatalf("expected one calendar call per range, got %d", w.calCalls)
	}
	second, err := e.MonthDays(context.Background(), MonthQuery{EventTypeID: "intro", Month: "2026-03"})
	if err != nil {
		t.Fatalf("MonthDays: %v", err)
	}
	if !reflect.DeepEqual(first.Dates, second.Dates) {
		t.Fatalf("month aggregation not idempotent: %v vs %v", first.Dates, second.Dates)
	}
	if len(first.Dates) != 5 || first.Dates[0].String() != "2026-03-02" {
		t.Fatalf("unexpected dates %v", first.Dates)
	}
}

func TestMonthDays_ClampsToHorizon(t *testing.T) {
	w := newWorld(t)
	et := w.eventTypes["intro"]
	et.MaxDaysAhead = 10
	w.eventTypes["intro"] = et

	res, err := newEngine(w, Config{}).MonthDays(context.Background(), MonthQuery{EventTypeID: "intro", Month: "2026-03"})
	if err != nil {
		t.Fatalf("MonthDays: %v", err)
	}
	// Horizon ends 2026-03-11: Mondays 2nd and 9th only.
	if len(res.Dates) != 2 || res.Dates[1].String() != "2026-03-09" {
		t.Fatalf("unexpected dates %v", res.Dates)
	}

	past, err := newEngine(w, Config{}).MonthDays(context.Background(), MonthQuery{EventTypeID: "intro", Month: "2026-01"})
	if err != nil || len(past.Dates) != 0 {
		t.Fatalf("past month must be empty, got %v %v", past.Dates, err)
	}
}

func TestMonthDays_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newEngine(newWorld(t), Config{}).MonthDays(ctx, MonthQuery{EventTypeID: "intro", Month: "2026-03"})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestDaySlots_CalendarUnavailable(t *testing.T) {
	w := newWorld(t)
	w.calErr = apperr.Unavailable("external calendar", errors.New("timeout"))

	_, err := newEngine(w, Config{}).DaySlots(context.Background(), DayQuery{EventTypeID: "intro", Date: "2026-03-02"})
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}

	res, err := newEngine(w, Config{DegradedMode: true}).DaySlots(context.Background(), DayQuery{EventTypeID: "intro", Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("degraded mode must serve slots: %v", err)
	}
	if !res.Degraded || len(res.Slots) == 0 || has(locals(res.Slots), "10:00") {
		t.Fatalf("unexpected degraded result %+v", res)
	}
}

func TestDaySlots_ExternalBusy(t *testing.T) {
	w := newWorld(t)
	w.external = []interval.Interval{{Start: at(13, 0), End: at(14, 0)}}
	res, err := newEngine(w, Config{}).DaySlots(context.Background(), DayQuery{EventTypeID: "intro", Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("DaySlots: %v", err)
	}
	got := locals(res.Slots)
	if has(got, "13:00") || has(got, "13:30") || has(got, "12:45") {
		t.Fatalf("external busy time must block, got %v", got)
	}
	if !has(got, "14:00") || !has(got, "12:30") {
		t.Fatalf("touching slots should remain, got %v", got)
	}
}

func TestDaySlots_RescheduleExcludesOwnBooking(t *testing.T) {
	res, err := newEngine(newWorld(t), Config{}).DaySlots(context.Background(), DayQuery{EventTypeID: "intro", Date: "2026-03-02", ExcludeBookingID: "b1"})
	if err != nil {
		t.Fatalf("DaySlots: %v", err)
	}
	if !has(locals(res.Slots), "10:00") {
		t.Fatal("the booking being moved must not block itself")
	}
}

func TestDaySlots_InputErrors(t *testing.T) {
	e := newEngine(newWorld(t), Config{})
	if _, err := e.DaySlots(context.Background(), DayQuery{EventTypeID: "intro", Date: "03/02/2026"}); !apperr.Is(err, apperr.KindInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := e.DaySlots(context.Background(), DayQuery{EventTypeID: "nope", Date: "2026-03-02"}); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	past, err := e.DaySlots(context.Background(), DayQuery{EventTypeID: "intro", Date: "2026-02-23"})
	if err != nil || len(past.Slots) != 0 {
		t.Fatalf("past dates have no slots, got %v %v", past.Slots, err)
	}
}

func TestFreeWindows(t *testing.T) {
	res, err := newEngine(newWorld(t), Config{}).FreeWindows(context.Background(), DayQuery{EventTypeID: "intro", Date: "2026-03-02"})
	if err != nil {
		t.Fatalf("FreeWindows: %v", err)
	}
	if len(res.Windows) != 2 || !res.Windows[0].End.Equal(at(10, 0)) || !res.Windows[1].Start.Equal(at(10, 30)) {
		t.Fatalf("unexpected free windows %v", res.Windows)
	}
}
