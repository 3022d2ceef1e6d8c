// Package busy collects everything that blocks a host's calendar.
package busy

import (
	"context"
	"fmt"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/interval"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// BookingSource lists non-cancelled bookings intersecting [from, to).
type BookingSource interface {
	BlockingBookings(ctx context.Context, hostID string, from, to time.Time, excludeID string) ([]model.BusyBooking, error)
}

// Set is the raw material for a blocked list: committed bookings with their
// own buffers and external busy intervals, which are never padded.
type Set struct {
	Bookings []model.BusyBooking
	External []interval.Interval
}

// Padded is a booking's interval widened by its event type's buffers.
func Padded(b model.BusyBooking) interval.Interval {
	return interval.Pad(interval.Interval{Start: b.Start, End: b.End}, b.BufferBefore, b.BufferAfter)
}

// Merged is the sorted, merged blocked list over every source.
func (s Set) Merged() []interval.Interval {
	all := make([]interval.Interval, 0, len(s.Bookings)+len(s.External))
	for _, b := range s.Bookings {
		all = append(all, Padded(b))
	}
	all = append(all, s.External...)
	return interval.Merge(all)
}

// BlockedFor shapes the set for one candidate event type. With capacity 1
// everything blocks. With more, bookings of the same event type are grouped
// by start so the generator can let guests join a slot until it is full.
func (s Set) BlockedFor(eventTypeID string, capacity int) availability.Blocked {
	if capacity <= 1 {
		return availability.Blocked{Intervals: s.Merged()}
	}

	var hard []interval.Interval
	groups := map[int64]*availability.Occupancy{}
	var order []int64
	for _, b := range s.Bookings {
		if b.EventTypeID != eventTypeID {
			hard = append(hard, Padded(b))
			continue
		}
		key := b.Start.UnixNano()
		g, ok := groups[key]
		if !ok {
			g = &availability.Occupancy{Start: b.Start, Span: Padded(b)}
			groups[key] = g
			order = append(order, key)
		}
		g.Count++
		if p := Padded(b); p.End.After(g.Span.End) {
			g.Span.End = p.End
		}
	}
	hard = append(hard, s.External...)

	shared := make([]availability.Occupancy, 0, len(order))
	for _, k := range order {
		shared = append(shared, *groups[k])
	}
	return availability.Blocked{Intervals: interval.Merge(hard), Shared: shared}
}

type Aggregator struct {
	bookings BookingSource
	calendar calendar.Oracle
}

func NewAggregator(bookings BookingSource, oracle calendar.Oracle) *Aggregator {
	if oracle == nil {
		oracle = calendar.None{}
	}
	return &Aggregator{bookings: bookings, calendar: oracle}
}

// Collect gathers bookings and external busy time for rng. When only the
// external calendar fails, the returned Set still carries the bookings and
// the error is the calendar's, so a caller can choose to degrade.
func (a *Aggregator) Collect(ctx context.Context, hostID string, rng interval.Interval, excludeID string) (Set, error) {
	bookings, err := a.Bookings(ctx, hostID, rng, excludeID)
	if err != nil {
		return Set{}, err
	}
	external, err := a.External(ctx, hostID, rng)
	if err != nil {
		return Set{Bookings: bookings}, err
	}
	return Set{Bookings: bookings, External: external}, nil
}

func (a *Aggregator) Bookings(ctx context.Context, hostID string, rng interval.Interval, excludeID string) ([]model.BusyBooking, error) {
	bookings, err := a.bookings.BlockingBookings(ctx, hostID, rng.Start, rng.End, excludeID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

func (a *Aggregator) External(ctx context.Context, hostID string, rng interval.Interval) ([]interval.Interval, error) {
	return a.calendar.BusyIntervals(ctx, hostID, rng.Start, rng.End)
}
