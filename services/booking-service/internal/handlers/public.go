package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/apperr"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/scheduling"
)

// PublicHandler serves the guest-facing booking page API.
type PublicHandler struct {
	engine   *scheduling.Engine
	bookings *booking.Service
	validate *Validator
	logger   *slog.Logger
}

func NewPublicHandler(engine *scheduling.Engine, bookings *booking.Service, validate *Validator, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{engine: engine, bookings: bookings, validate: validate, logger: logger}
}

type slotsQuery struct {
	EventTypeID      string `json:"event_type_id" validate:"required"`
	Date             string `json:"date" validate:"required,date"`
	ExcludeBookingID string `json:"exclude_booking_id"`
	Token            string `json:"token" validate:"required_with=ExcludeBookingID"`
}

type slotsResponse struct {
	EventTypeID string     `json:"event_type_id"`
	Date        string     `json:"date"`
	Timezone    string     `json:"timezone"`
	Slots       []slotItem `json:"slots"`
	Degraded    bool       `json:"degraded,omitempty"`
}

// Slots lists the bookable starts of a day. A reschedule query passes the
// booking being moved with its manage token so it does not block itself.
func (h *PublicHandler) Slots(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := slotsQuery{
		EventTypeID:      strings.TrimSpace(qs.Get("event_type_id")),
		Date:             strings.TrimSpace(qs.Get("date")),
		ExcludeBookingID: strings.TrimSpace(qs.Get("exclude_booking_id")),
		Token:            strings.TrimSpace(qs.Get("token")),
	}
	if err := h.validate.Struct(q); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if q.ExcludeBookingID != "" {
		b, err := h.bookings.Authorize(r.Context(), q.ExcludeBookingID, q.Token)
		if err != nil {
			httpx.WriteError(w, r, h.logger, err)
			return
		}
		// A reschedule keeps its event type, so only that type's slots apply.
		if b.EventTypeID != q.EventTypeID {
			httpx.WriteError(w, r, h.logger, apperr.InvalidInput("exclude_booking_id belongs to a different event type"))
			return
		}
	}

	res, err := h.engine.DaySlots(r.Context(), scheduling.DayQuery{
		EventTypeID:      q.EventTypeID,
		Date:             q.Date,
		ExcludeBookingID: q.ExcludeBookingID,
	})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	slots := make([]slotItem, 0, len(res.Slots))
	for _, s := range res.Slots {
		slots = append(slots, slotItem{Time: s.Local, Start: s.Start.UTC().Format(time.RFC3339)})
	}
	httpx.WriteJSON(w, http.StatusOK, slotsResponse{
		EventTypeID: res.EventTypeID,
		Date:        res.Date.String(),
		Timezone:    res.Timezone,
		Slots:       slots,
		Degraded:    res.Degraded,
	})
}

type monthResponse struct {
	EventTypeID string   `json:"event_type_id"`
	Month       string   `json:"month"`
	Timezone    string   `json:"timezone"`
	Dates       []string `json:"dates"`
	Degraded    bool     `json:"degraded,omitempty"`
}

func (h *PublicHandler) Month(w http.ResponseWriter, r *http.Request) {
	eventTypeID := strings.TrimSpace(r.URL.Query().Get("event_type_id"))
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if eventTypeID == "" || month == "" {
		httpx.WriteError(w, r, h.logger, apperr.InvalidInput("event_type_id and month are required"))
		return
	}
	res, err := h.engine.MonthDays(r.Context(), scheduling.MonthQuery{EventTypeID: eventTypeID, Month: month})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	dates := make([]string, 0, len(res.Dates))
	for _, d := range res.Dates {
		dates = append(dates, d.String())
	}
	httpx.WriteJSON(w, http.StatusOK, monthResponse{
		EventTypeID: res.EventTypeID,
		Month:       month,
		Timezone:    res.Timezone,
		Dates:       dates,
		Degraded:    res.Degraded,
	})
}

type freeResponse struct {
	Date     string       `json:"date"`
	Timezone string       `json:"timezone"`
	Windows  []windowItem `json:"windows"`
	Degraded bool         `json:"degraded,omitempty"`
}

func (h *PublicHandler) Free(w http.ResponseWriter, r *http.Request) {
	q := slotsQuery{
		EventTypeID: strings.TrimSpace(r.URL.Query().Get("event_type_id")),
		Date:        strings.TrimSpace(r.URL.Query().Get("date")),
	}
	if err := h.validate.Struct(q); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	res, err := h.engine.FreeWindows(r.Context(), scheduling.DayQuery{EventTypeID: q.EventTypeID, Date: q.Date})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, freeResponse{
		Date:     res.Date.String(),
		Timezone: res.Timezone,
		Windows:  windowItems(res.Windows),
		Degraded: res.Degraded,
	})
}

type createRequest struct {
	EventTypeID   string `json:"event_type_id" validate:"required"`
	Start         string `json:"start" validate:"required"`
	GuestName     string `json:"guest_name" validate:"required,max=200"`
	GuestEmail    string `json:"guest_email" validate:"required,email"`
	GuestTimezone string `json:"guest_timezone" validate:"omitempty,timezone"`
	Notes         string `json:"notes" validate:"max=2000"`
}

type createResponse struct {
	Booking     bookingItem `json:"booking"`
	ManageToken string      `json:"manage_token"`
}

func (h *PublicHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	req.GuestName = strings.TrimSpace(req.GuestName)
	req.GuestEmail = strings.TrimSpace(req.GuestEmail)
	if err := h.validate.Struct(req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	start, err := parseInstant(req.Start)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}

	created, err := h.bookings.Create(r.Context(), booking.CreateRequest{
		EventTypeID: req.EventTypeID,
		Start:       start,
		Guest:       model.Guest{Name: req.GuestName, Email: req.GuestEmail, Timezone: req.GuestTimezone},
		Notes:       req.Notes,
	})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, createResponse{Booking: toBookingItem(created.Booking), ManageToken: created.ManageToken})
}

type rescheduleRequest struct {
	BookingID string `json:"booking_id" validate:"required"`
	Token     string `json:"token" validate:"required"`
	Start     string `json:"start" validate:"required"`
}

func (h *PublicHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	start, err := parseInstant(req.Start)
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	b, err := h.bookings.Reschedule(r.Context(), booking.RescheduleRequest{BookingID: req.BookingID, Token: req.Token, Start: start})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingItem(b))
}

type guestCancelRequest struct {
	BookingID string `json:"booking_id" validate:"required"`
	Token     string `json:"token" validate:"required"`
	Reason    string `json:"reason" validate:"max=500"`
}

func (h *PublicHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req guestCancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	b, err := h.bookings.Cancel(r.Context(), booking.CancelRequest{BookingID: req.BookingID, Token: req.Token, Reason: req.Reason})
	if err != nil {
		httpx.WriteError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingItem(b))
}

func parseInstant(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, apperr.InvalidInput("start must be an RFC 3339 timestamp")
	}
	return t, nil
}
