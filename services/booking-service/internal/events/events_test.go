package events

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

func TestFromBookingNormalisesToUTC(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, loc)
	b := model.Booking{
		ID:          "b1",
		HostID:      "h1",
		EventTypeID: "intro",
		Start:       start,
		End:         start.Add(30 * time.Minute),
		Status:      model.StatusConfirmed,
		Guest:       model.Guest{Name: "Ada", Email: "ada@example.com"},
	}
	evt := FromBooking(BookingCreated, b, start)
	if evt.Start.Location() != time.UTC || evt.Start.Hour() != 9 {
		t.Fatalf("expected UTC start, got %v", evt.Start)
	}

	raw, err := evt.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Type != BookingCreated || got.GuestEmail != "ada@example.com" || got.PreviousStart != nil {
		t.Fatalf("unexpected event %+v", got)
	}
}
