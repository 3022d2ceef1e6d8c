// Package policy resolves the scheduling parameters an event type imposes.
package policy

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// Store loads event types and hosts. Missing rows are reported with
// apperr.KindNotFound.
type Store interface {
	EventType(ctx context.Context, id string) (model.EventType, error)
	Host(ctx context.Context, id string) (model.Host, error)
}

// Policy is an active event type bound to its host's timezone.
type Policy struct {
	EventType model.EventType
	Host      model.Host
	Location  *time.Location
}

// Resolve loads the event type and its host. Inactive event types are
// reported as not found.
func Resolve(ctx context.Context, store Store, eventTypeID string) (Policy, error) {
	et, err := store.EventType(ctx, eventTypeID)
	if err != nil {
		return Policy{}, err
	}
	if !et.Active {
		return Policy{}, apperr.NotFound("event type")
	}
	host, err := store.Host(ctx, et.HostID)
	if err != nil {
		return Policy{}, err
	}
	loc, err := host.Location()
	if err != nil {
		return Policy{}, apperr.Internal("host timezone is invalid", err)
	}
	return Policy{EventType: et, Host: host, Location: loc}, nil
}

// Today is the host-local date of now.
func (p Policy) Today(now time.Time) model.Date {
	return model.DateOf(now.In(p.Location))
}

// LastDate is the last host-local date inside the booking horizon.
func (p Policy) LastDate(now time.Time) model.Date {
	return p.Today(now).AddDays(p.EventType.MaxDaysAhead)
}

// Params builds generator parameters at now. The horizon ends at the local
// midnight closing LastDate, so the last bookable day is offered in full.
func (p Policy) Params(now time.Time) availability.Params {
	et := p.EventType
	capacity := et.MaxAttendees
	if capacity < 1 {
		capacity = 1
	}
	return availability.Params{
		Duration:     et.Duration(),
		BufferBefore: time.Duration(et.BufferBefore) * time.Minute,
		BufferAfter:  time.Duration(et.BufferAfter) * time.Minute,
		Step:         availability.StepFor(et.Duration()),
		MinNotice:    now.Add(time.Duration(et.MinNotice) * time.Minute),
		MaxNotice:    p.LastDate(now).AddDays(1).Midnight(p.Location),
		Capacity:     capacity,
		Location:     p.Location,
	}
}
