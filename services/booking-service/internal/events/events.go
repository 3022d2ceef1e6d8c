// Package events defines the booking events written to the outbox and
// delivered to webhooks and e-mail.
package events

import (
	"encoding/json"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

const (
	BookingCreated       = "booking.created.v1"
	BookingRescheduled   = "booking.rescheduled.v1"
	BookingCancelled     = "booking.cancelled.v1"
	BookingStatusChanged = "booking.status_changed.v1"
)

// Topics lists every event type; each is published to its own topic.
var Topics = []string{BookingCreated, BookingRescheduled, BookingCancelled, BookingStatusChanged}

type BookingEvent struct {
	Type           string     `json:"type"`
	BookingID      string     `json:"booking_id"`
	HostID         string     `json:"host_id"`
	EventTypeID    string     `json:"event_type_id"`
	Status         string     `json:"status"`
	Start          time.Time  `json:"start"`
	End            time.Time  `json:"end"`
	PreviousStart  *time.Time `json:"previous_start,omitempty"`
	PreviousStatus string     `json:"previous_status,omitempty"`
	GuestName      string     `json:"guest_name"`
	GuestEmail     string     `json:"guest_email"`
	GuestTimezone  string     `json:"guest_timezone,omitempty"`
	Reason         string     `json:"reason,omitempty"`
	OccurredAt     time.Time  `json:"occurred_at"`
}

func FromBooking(eventType string, b model.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Type:          eventType,
		BookingID:     b.ID,
		HostID:        b.HostID,
		EventTypeID:   b.EventTypeID,
		Status:        string(b.Status),
		Start:         b.Start.UTC(),
		End:           b.End.UTC(),
		GuestName:     b.Guest.Name,
		GuestEmail:    b.Guest.Email,
		GuestTimezone: b.Guest.Timezone,
		Reason:        b.Reason,
		OccurredAt:    at.UTC(),
	}
}

func (e BookingEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Parse(raw []byte) (BookingEvent, error) {
	var e BookingEvent
	err := json.Unmarshal(raw, &e)
	return e, err
}
