package booking

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
)

// Tx is the write side of one host-locked transaction.
type Tx interface {
	BlockingBookings(ctx context.Context, hostID string, from, to time.Time, excludeID string) ([]model.BusyBooking, error)
	InsertBooking(ctx context.Context, b model.Booking) error
	BookingForUpdate(ctx context.Context, id string) (model.Booking, error)
	UpdateBooking(ctx context.Context, b model.Booking) error
	InsertEvent(ctx context.Context, evt outbox.Event) error
}

// Store serialises writes per host. fn runs inside a transaction that holds
// the host's lock; a non-nil error rolls everything back.
type Store interface {
	WithHostLock(ctx context.Context, hostID string, fn func(ctx context.Context, tx Tx) error) error
	Booking(ctx context.Context, id string) (model.Booking, error)
	ListBookings(ctx context.Context, hostID string, f ListFilter) ([]model.Booking, error)
}

type ListFilter struct {
	From   time.Time
	To     time.Time
	Status model.BookingStatus
	Limit  int
}
