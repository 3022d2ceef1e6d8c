package busy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/interval"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

type fakeBookings struct {
	items   []model.BusyBooking
	err     error
	exclude string
}

func (f *fakeBookings) BlockingBookings(_ context.Context, _ string, from, to time.Time, excludeID string) ([]model.BusyBooking, error) {
	f.exclude = excludeID
	if f.err != nil {
		return nil, f.err
	}
	var out []model.BusyBooking
	for _, b := range f.items {
		if b.ID != excludeID && b.Start.Before(to) && b.End.After(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeOracle struct {
	busy []interval.Interval
	err  error
}

func (f fakeOracle) BusyIntervals(context.Context, string, time.Time, time.Time) ([]interval.Interval, error) {
	return f.busy, f.err
}

func TestCollectMergesSources(t *testing.T) {
	bookings := &fakeBookings{items: []model.BusyBooking{
		{ID: "b1", EventTypeID: "et", Start: at(10, 0), End: at(10, 30), BufferAfter: 15 * time.Minute},
		{ID: "b2", EventTypeID: "et", Start: at(14, 0), End: at(14, 30)},
	}}
	oracle := fakeOracle{busy: []interval.Interval{{Start: at(10, 30), End: at(11, 0)}}}
	agg := NewAggregator(bookings, oracle)

	set, err := agg.Collect(context.Background(), "host-1", interval.Interval{Start: day, End: day.Add(24 * time.Hour)}, "b2")
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if bookings.exclude != "b2" {
		t.Fatal("exclude id must reach the booking source")
	}
	merged := set.Merged()
	if len(merged) != 1 {
		t.Fatalf("expected one merged interval, got %v", merged)
	}
	if !merged[0].Start.Equal(at(10, 0)) || !merged[0].End.Equal(at(11, 0)) {
		t.Fatalf("unexpected merged interval %v", merged[0])
	}
}

func TestCollectPropagatesCalendarFailure(t *testing.T) {
	bookings := &fakeBookings{items: []model.BusyBooking{{ID: "b1", Start: at(9, 0), End: at(9, 30)}}}
	agg := NewAggregator(bookings, fakeOracle{err: apperr.Unavailable("external calendar", errors.New("timeout"))})

	set, err := agg.Collect(context.Background(), "host-1", interval.Interval{Start: day, End: day.Add(24 * time.Hour)}, "")
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if len(set.Bookings) != 1 {
		t.Fatal("bookings should still be returned for callers that degrade")
	}
}

func TestCollectBookingFailure(t *testing.T) {
	agg := NewAggregator(&fakeBookings{err: errors.New("db down")}, nil)
	if _, err := agg.Collect(context.Background(), "host-1", interval.Interval{Start: day, End: day.Add(time.Hour)}, ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestBlockedForCapacity(t *testing.T) {
	set := Set{
		Bookings: []model.BusyBooking{
			{ID: "g1", EventTypeID: "group", Start: at(9, 0), End: at(10, 0)},
			{ID: "g2", EventTypeID: "group", Start: at(9, 0), End: at(10, 0)},
			{ID: "s1", EventTypeID: "solo", Start: at(12, 0), End: at(12, 30)},
		},
		External: []interval.Interval{{Start: at(15, 0), End: at(16, 0)}},
	}

	b := set.BlockedFor("group", 5)
	if len(b.Shared) != 1 || b.Shared[0].Count != 2 || !b.Shared[0].Start.Equal(at(9, 0)) {
		t.Fatalf("unexpected shared groups %+v", b.Shared)
	}
	if len(b.Intervals) != 2 {
		t.Fatalf("solo booking and external busy must stay hard blocks, got %v", b.Intervals)
	}

	solo := set.BlockedFor("solo", 1)
	if len(solo.Shared) != 0 || len(solo.Intervals) != 3 {
		t.Fatalf("capacity 1 must block everything, got %+v", solo)
	}
}
