package model

import "time"

type BookingStatus string

const (
	StatusConfirmed         BookingStatus = "CONFIRMED"
	StatusCancelled         BookingStatus = "CANCELLED"
	StatusCompleted         BookingStatus = "COMPLETED"
	StatusNoShow            BookingStatus = "NO_SHOW"
	StatusPendingReschedule BookingStatus = "PENDING_RESCHEDULE"
)

var transitions = map[BookingStatus][]BookingStatus{
	StatusConfirmed:         {StatusCancelled, StatusCompleted, StatusNoShow, StatusPendingReschedule},
	StatusPendingReschedule: {StatusConfirmed, StatusCancelled},
}

func ParseBookingStatus(s string) (BookingStatus, bool) {
	switch st := BookingStatus(s); st {
	case StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow, StatusPendingReschedule:
		return st, true
	}
	return "", false
}

// CanTransition reports whether a booking may move from s to next.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Guest struct {
	Name     string
	Email    string
	Timezone string
}

type Booking struct {
	ID          string
	HostID      string
	EventTypeID string
	Start       time.Time
	End         time.Time
	Status      BookingStatus
	Guest       Guest
	Notes       string
	TokenHash   string
	CancelledAt *time.Time
	Reason      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BusyBooking is the slice of a booking that blocks the host's calendar,
// padded by the current buffers of its event type.
type BusyBooking struct {
	ID           string
	EventTypeID  string
	Start        time.Time
	End          time.Time
	BufferBefore time.Duration
	BufferAfter  time.Duration
}

type Webhook struct {
	ID        string
	HostID    string
	URL       string
	Secret    string
	CreatedAt time.Time
}
