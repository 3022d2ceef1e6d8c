package handlers

import (
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/interval"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

type slotItem struct {
	Time  string `json:"time"`
	Start string `json:"start"`
}

type windowItem struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func windowItems(in []interval.Interval) []windowItem {
	out := make([]windowItem, 0, len(in))
	for _, w := range in {
		out = append(out, windowItem{Start: w.Start.UTC().Format(time.RFC3339), End: w.End.UTC().Format(time.RFC3339)})
	}
	return out
}

type bookingItem struct {
	ID          string `json:"id"`
	HostID      string `json:"host_id"`
	EventTypeID string `json:"event_type_id"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Status      string `json:"status"`
	GuestName   string `json:"guest_name"`
	GuestEmail  string `json:"guest_email"`
	GuestTZ     string `json:"guest_timezone,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Reason      string `json:"reason,omitempty"`
	CancelledAt string `json:"cancelled_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func toBookingItem(b model.Booking) bookingItem {
	item := bookingItem{
		ID:          b.ID,
		HostID:      b.HostID,
		EventTypeID: b.EventTypeID,
		Start:       b.Start.UTC().Format(time.RFC3339),
		End:         b.End.UTC().Format(time.RFC3339),
		Status:      string(b.Status),
		GuestName:   b.Guest.Name,
		GuestEmail:  b.Guest.Email,
		GuestTZ:     b.Guest.Timezone,
		Notes:       b.Notes,
		Reason:      b.Reason,
		CreatedAt:   b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		item.CancelledAt = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

type wallWindowDTO struct {
	Start string `json:"start" validate:"required,clock"`
	End   string `json:"end" validate:"required,clock"`
}

type eventTypeDTO struct {
	ID              string         `json:"id,omitempty"`
	Slug            string         `json:"slug" validate:"required,min=1,max=64"`
	Title           string         `json:"title" validate:"required,max=200"`
	DurationMinutes int            `json:"duration_minutes" validate:"gte=1,lte=1440"`
	BufferBefore    int            `json:"buffer_before" validate:"gte=0,lte=1440"`
	BufferAfter     int            `json:"buffer_after" validate:"gte=0,lte=1440"`
	MinNotice       int            `json:"min_notice" validate:"gte=0"`
	MaxDaysAhead    int            `json:"max_days_ahead" validate:"gte=1,lte=730"`
	MaxAttendees    int            `json:"max_attendees" validate:"gte=1,lte=1000"`
	FixedWindow     *wallWindowDTO `json:"fixed_window,omitempty"`
	Active          *bool          `json:"active,omitempty"`
}

func fromEventType(et model.EventType) eventTypeDTO {
	active := et.Active
	dto := eventTypeDTO{
		ID:              et.ID,
		Slug:            et.Slug,
		Title:           et.Title,
		DurationMinutes: et.DurationMinutes,
		BufferBefore:    et.BufferBefore,
		BufferAfter:     et.BufferAfter,
		MinNotice:       et.MinNotice,
		MaxDaysAhead:    et.MaxDaysAhead,
		MaxAttendees:    et.MaxAttendees,
		Active:          &active,
	}
	if et.FixedWindow != nil {
		dto.FixedWindow = &wallWindowDTO{Start: et.FixedWindow.Start.String(), End: et.FixedWindow.End.String()}
	}
	return dto
}
