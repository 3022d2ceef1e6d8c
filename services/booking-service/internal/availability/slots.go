package availability

import (
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/interval"
)

// Slot is an offerable start time. Local is the wall-clock start (HH:MM) in
// the host's timezone.
type Slot struct {
	Start time.Time
	Local string
}

// Occupancy groups bookings of the candidate's own event type that share a
// start instant. They block other starts over Span, but a candidate at Start
// may join them until Count reaches capacity.
type Occupancy struct {
	Start time.Time
	Span  interval.Interval
	Count int
}

// Blocked is what removes capacity from free windows. Intervals must be
// merged (see interval.Merge).
type Blocked struct {
	Intervals []interval.Interval
	Shared    []Occupancy
}

// Params configures one generation run. MaxNotice may be zero for no horizon.
type Params struct {
	Duration     time.Duration
	BufferBefore time.Duration
	BufferAfter  time.Duration
	Step         time.Duration
	MinNotice    time.Time
	MaxNotice    time.Time
	Capacity     int
	Location     *time.Location
}

// StepFor returns the slot cadence for a meeting length: 15 minutes for
// meetings up to 30 minutes, 30 minutes otherwise.
func StepFor(duration time.Duration) time.Duration {
	if duration <= 30*time.Minute {
		return 15 * time.Minute
	}
	return 30 * time.Minute
}

// WithinNotice reports whether start is strictly after the minimum notice
// instant and before the horizon.
func WithinNotice(start time.Time, p Params) bool {
	if !start.After(p.MinNotice) {
		return false
	}
	return p.MaxNotice.IsZero() || start.Before(p.MaxNotice)
}

// Free reports whether a meeting starting at start, padded by the buffers in
// p, clears every blocked interval.
func Free(start time.Time, b Blocked, p Params) bool {
	candidate := interval.Pad(interval.Interval{Start: start, End: start.Add(p.Duration)}, p.BufferBefore, p.BufferAfter)
	if interval.OverlapsAny(candidate, b.Intervals) {
		return false
	}
	capacity := p.Capacity
	if capacity < 1 {
		capacity = 1
	}
	for _, o := range b.Shared {
		if !interval.Overlaps(candidate, o.Span) {
			continue
		}
		if o.Start.Equal(start) && o.Count < capacity {
			continue
		}
		return false
	}
	return true
}

// Generate enumerates accepted slot starts, window by window. Windows are not
// merged with each other, so overlapping windows can repeat a start.
func Generate(windows []interval.Interval, b Blocked, p Params) []Slot {
	var slots []Slot
	scan(windows, b, p, func(start time.Time) bool {
		slots = append(slots, Slot{Start: start, Local: localClock(start, p.Location)})
		return true
	})
	return slots
}

// HasSlot stops at the first accepted start.
func HasSlot(windows []interval.Interval, b Blocked, p Params) bool {
	found := false
	scan(windows, b, p, func(time.Time) bool {
		found = true
		return false
	})
	return found
}

func scan(windows []interval.Interval, b Blocked, p Params, yield func(time.Time) bool) {
	if p.Duration <= 0 || p.Step <= 0 {
		return
	}
	for _, w := range windows {
		for cursor := w.Start; !cursor.Add(p.Duration).After(w.End); cursor = cursor.Add(p.Step) {
			if !WithinNotice(cursor, p) || !Free(cursor, b, p) {
				continue
			}
			if !yield(cursor) {
				return
			}
		}
	}
}

func localClock(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("15:04")
}
