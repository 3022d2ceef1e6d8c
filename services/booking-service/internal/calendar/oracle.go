// Package calendar adapts external calendars into busy intervals.
package calendar

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/interval"
)

// Oracle reports a host's externally observed busy time. A host with no
// linked calendar yields an empty list and a nil error; any failure to reach
// the calendar is an error.
type Oracle interface {
	BusyIntervals(ctx context.Context, hostID string, from, to time.Time) ([]interval.Interval, error)
}

// None is used when no calendar provider is configured.
type None struct{}

func (None) BusyIntervals(context.Context, string, time.Time, time.Time) ([]interval.Interval, error) {
	return nil, nil
}

// WithTimeout bounds every call to next and reports failures as
// apperr.KindUnavailable.
func WithTimeout(next Oracle, d time.Duration) Oracle {
	if d <= 0 {
		d = 3 * time.Second
	}
	return &timeoutOracle{next: next, timeout: d}
}

type timeoutOracle struct {
	next    Oracle
	timeout time.Duration
}

func (o *timeoutOracle) BusyIntervals(ctx context.Context, hostID string, from, to time.Time) ([]interval.Interval, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	type result struct {
		busy []interval.Interval
		err  error
	}
	// Buffered so a provider ignoring ctx cannot leak this goroutine forever
	// blocked on send.
	done := make(chan result, 1)
	go func() {
		busy, err := o.next.BusyIntervals(ctx, hostID, from, to)
		done <- result{busy: busy, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, apperr.Unavailable("external calendar", ctx.Err())
	case res := <-done:
		if res.err != nil {
			if apperr.Is(res.err, apperr.KindUnavailable) {
				return nil, res.err
			}
			return nil, apperr.Unavailable("external calendar", res.err)
		}
		return res.busy, nil
	}
}
