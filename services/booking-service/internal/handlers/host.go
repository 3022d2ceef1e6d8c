package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/apperr"
	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/storage"
)

// HostStore is the settings persistence behind the dashboard API.
type HostStore interface {
	Host(ctx context.Context, id string) (model.Host, error)
	UpsertHost(ctx context.Context, h model.Host) (model.Host, error)
	SetTimezone(ctx context.Context, hostID, tz string) error

	Rules(ctx context.Context, hostID string) ([]model.AvailabilityRule, error)
	ReplaceRules(ctx context.Context, hostID string, rules []model.AvailabilityRule) error
	Overrides(ctx context.Context, hostID string, from, to model.Date) ([]model.DateOverride, error)
	UpsertOverride(ctx context.Context, o model.DateOverride) error
	DeleteOverride(ctx context.Context, hostID string, date model.Date) (bool, error)

	EventType(ctx context.Context, id string) (model.EventType, error)
	ListEventTypes(ctx context.Context, hostID string) ([]model.EventType, error)
	CreateEventType(ctx context.Context, et model.EventType) (model.EventType, error)
	UpdateEventType(ctx context.Context, et model.EventType) (model.EventType, error)
	DeactivateEventType(ctx context.Context, hostID, id string) error

	CreateWebhook(ctx context.Context, w model.Webhook) (model.Webhook, error)
	WebhooksForHost(ctx context.Context, hostID string) ([]model.Webhook, error)
	DeleteWebhook(ctx context.Context, hostID, id string) error
}

// PolicyCache drops cached hosts and event types after a settings write.
type PolicyCache interface {
	InvalidateEventType(ctx context.Context, id string)
	InvalidateHost(ctx context.Context, id string)
}

type noCache struct{}

func (noCache) InvalidateEventType(context.Context, string) {}
func (noCache) InvalidateHost(context.Context, string)      {}

// HostHandler serves the authenticated host dashboard API. Every route
// expects auth.RequireHost in front of it.
type HostHandler struct {
	store    HostStore
	bookings *booking.Service
	cache    PolicyCache
	validate *Validator
	logger   *slog.Logger
}

func NewHostHandler(store HostStore, bookings *booking.Service, cache PolicyCache, validate *Validator, logger *slog.Logger) *HostHandler {
	if cache == nil {
		cache = noCache{}
	}
	return &HostHandler{store: store, bookings: bookings, cache: cache, validate: validate, logger: logger}
}

func (h *HostHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpx.WriteError(w, r, h.logger, err)
}

// decode reads and validates a JSON body.
func (h *HostHandler) decode(r *http.Request, dst any) error {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

type hostDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name" validate:"max=200"`
	Email    string `json:"email" validate:"omitempty,email"`
	Timezone string `json:"timezone" validate:"required,timezone"`
}

func (h *HostHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	host, err := h.store.Host(r.Context(), auth.HostIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, hostDTO{ID: host.ID, Name: host.Name, Email: host.Email, Timezone: host.Timezone})
}

func (h *HostHandler) PutProfile(w http.ResponseWriter, r *http.Request) {
	var req hostDTO
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	hostID := auth.HostIDFromContext(r.Context())
	host, err := h.store.UpsertHost(r.Context(), model.Host{ID: hostID, Name: strings.TrimSpace(req.Name), Email: strings.TrimSpace(req.Email), Timezone: req.Timezone})
	if err != nil {
		h.fail(w, r, apperr.Internal("failed to save host", err))
		return
	}
	h.cache.InvalidateHost(r.Context(), hostID)
	httpx.WriteJSON(w, http.StatusOK, hostDTO{ID: host.ID, Name: host.Name, Email: host.Email, Timezone: host.Timezone})
}

type timezoneRequest struct {
	Timezone string `json:"timezone" validate:"required,timezone"`
}

func (h *HostHandler) PutTimezone(w http.ResponseWriter, r *http.Request) {
	var req timezoneRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	hostID := auth.HostIDFromContext(r.Context())
	if err := h.store.SetTimezone(r.Context(), hostID, req.Timezone); err != nil {
		h.fail(w, r, apperr.Internal("failed to save timezone", err))
		return
	}
	h.cache.InvalidateHost(r.Context(), hostID)
	httpx.WriteJSON(w, http.StatusOK, req)
}

type ruleDTO struct {
	Weekday int    `json:"weekday" validate:"gte=0,lte=6"`
	Start   string `json:"start" validate:"required,clock"`
	End     string `json:"end" validate:"required,clock"`
}

type rulesRequest struct {
	Rules []ruleDTO `json:"rules" validate:"max=100,dive"`
}

func (h *HostHandler) GetRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.store.Rules(r.Context(), auth.HostIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, apperr.Internal("failed to load rules", err))
		return
	}
	out := make([]ruleDTO, 0, len(rules))
	for _, rule := range rules {
		out = append(out, ruleDTO{Weekday: int(rule.Weekday), Start: rule.Window.Start.String(), End: rule.Window.End.String()})
	}
	httpx.WriteJSON(w, http.StatusOK, rulesRequest{Rules: out})
}

// PutRules replaces the whole weekly schedule. Inverted windows reject the
// entire request.
func (h *HostHandler) PutRules(w http.ResponseWriter, r *http.Request) {
	var req rulesRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	hostID := auth.HostIDFromContext(r.Context())
	rules := make([]model.AvailabilityRule, 0, len(req.Rules))
	for i, dto := range req.Rules {
		win, err := model.NewWallWindow(dto.Start, dto.End)
		if err != nil {
			h.fail(w, r, apperr.InvalidInput("rules["+strconv.Itoa(i)+"]: "+err.Error()))
			return
		}
		rules = append(rules, model.AvailabilityRule{HostID: hostID, Weekday: time.Weekday(dto.Weekday), Window: win})
	}
	if err := h.store.ReplaceRules(r.Context(), hostID, rules); err != nil {
		h.fail(w, r, apperr.Internal("failed to save rules", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type overrideDTO struct {
	Date      string `json:"date" validate:"required,date"`
	Available bool   `json:"available"`
	Start     string `json:"start,omitempty" validate:"required_if=Available true,omitempty,clock"`
	End       string `json:"end,omitempty" validate:"required_if=Available true,omitempty,clock"`
	Reason    string `json:"reason,omitempty" validate:"max=200"`
}

func (h *HostHandler) GetOverrides(w http.ResponseWriter, r *http.Request) {
	from, to, err := dateRange(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	overrides, err := h.store.Overrides(r.Context(), auth.HostIDFromContext(r.Context()), from, to)
	if err != nil {
		h.fail(w, r, apperr.Internal("failed to load overrides", err))
		return
	}
	out := make([]overrideDTO, 0, len(overrides))
	for _, o := range overrides {
		dto := overrideDTO{Date: o.Date.String(), Available: o.Available, Reason: o.Reason}
		if o.Window != nil {
			dto.Start, dto.End = o.Window.Start.String(), o.Window.End.String()
		}
		out = append(out, dto)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"overrides": out})
}

func (h *HostHandler) PutOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideDTO
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	date, _ := model.ParseDate(req.Date)
	o := model.DateOverride{
		HostID:    auth.HostIDFromContext(r.Context()),
		Date:      date,
		Available: req.Available,
		Reason:    strings.TrimSpace(req.Reason),
	}
	if req.Available {
		win, err := model.NewWallWindow(req.Start, req.End)
		if err != nil {
			h.fail(w, r, apperr.InvalidInput(err.Error()))
			return
		}
		o.Window = &win
	}
	if err := o.Validate(); err != nil {
		h.fail(w, r, apperr.InvalidInput(err.Error()))
		return
	}
	if err := h.store.UpsertOverride(r.Context(), o); err != nil {
		h.fail(w, r, apperr.Internal("failed to save override", err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, req)
}

func (h *HostHandler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	date, err := model.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		h.fail(w, r, apperr.InvalidInput(err.Error()))
		return
	}
	found, err := h.store.DeleteOverride(r.Context(), auth.HostIDFromContext(r.Context()), date)
	if err != nil {
		h.fail(w, r, apperr.Internal("failed to delete override", err))
		return
	}
	if !found {
		h.fail(w, r, apperr.NotFound("override"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HostHandler) ListEventTypes(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListEventTypes(r.Context(), auth.HostIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, apperr.Internal("failed to list event types", err))
		return
	}
	out := make([]eventTypeDTO, 0, len(list))
	for _, et := range list {
		out = append(out, fromEventType(et))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"event_types": out})
}

func (h *HostHandler) CreateEventType(w http.ResponseWriter, r *http.Request) {
	et, err := h.eventTypeFromBody(r, "")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.store.Host(r.Context(), et.HostID); err != nil {
		h.fail(w, r, apperr.InvalidInput("set the host profile before creating event types"))
		return
	}
	created, err := h.store.CreateEventType(r.Context(), et)
	if err != nil {
		h.fail(w, r, storeWriteError(err, "event type"))
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, fromEventType(created))
}

func (h *HostHandler) UpdateEventType(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	et, err := h.eventTypeFromBody(r, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	updated, err := h.store.UpdateEventType(r.Context(), et)
	if err != nil {
		h.fail(w, r, storeWriteError(err, "event type"))
		return
	}
	h.cache.InvalidateEventType(r.Context(), id)
	httpx.WriteJSON(w, http.StatusOK, fromEventType(updated))
}

func (h *HostHandler) DeactivateEventType(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.store.DeactivateEventType(r.Context(), auth.HostIDFromContext(r.Context()), id); err != nil {
		h.fail(w, r, storeWriteError(err, "event type"))
		return
	}
	h.cache.InvalidateEventType(r.Context(), id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *HostHandler) eventTypeFromBody(r *http.Request, id string) (model.EventType, error) {
	var req eventTypeDTO
	if err := h.decode(r, &req); err != nil {
		return model.EventType{}, err
	}
	et := model.EventType{
		ID:              id,
		HostID:          auth.HostIDFromContext(r.Context()),
		Slug:            strings.TrimSpace(req.Slug),
		Title:           strings.TrimSpace(req.Title),
		DurationMinutes: req.DurationMinutes,
		BufferBefore:    req.BufferBefore,
		BufferAfter:     req.BufferAfter,
		MinNotice:       req.MinNotice,
		MaxDaysAhead:    req.MaxDaysAhead,
		MaxAttendees:    req.MaxAttendees,
		Active:          req.Active == nil || *req.Active,
	}
	if req.FixedWindow != nil {
		win, err := model.NewWallWindow(req.FixedWindow.Start, req.FixedWindow.End)
		if err != nil {
			return model.EventType{}, apperr.InvalidInput("fixed_window: " + err.Error())
		}
		et.FixedWindow = &win
	}
	if err := et.Validate(); err != nil {
		return model.EventType{}, apperr.InvalidInput(err.Error())
	}
	return et, nil
}

func (h *HostHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	var f booking.ListFilter
	var err error
	if raw := qs.Get("from"); raw != "" {
		if f.From, err = parseInstant(raw); err != nil {
			h.fail(w, r, apperr.InvalidInput("from must be an RFC 3339 timestamp"))
			return
		}
	}
	if raw := qs.Get("to"); raw != "" {
		if f.To, err = parseInstant(raw); err != nil {
			h.fail(w, r, apperr.InvalidInput("to must be an RFC 3339 timestamp"))
			return
		}
	}
	if raw := qs.Get("status"); raw != "" {
		status, ok := model.ParseBookingStatus(strings.ToUpper(raw))
		if !ok {
			h.fail(w, r, apperr.InvalidInput("unknown status "+raw))
			return
		}
		f.Status = status
	}
	if raw := qs.Get("limit"); raw != "" {
		if f.Limit, err = strconv.Atoi(raw); err != nil {
			h.fail(w, r, apperr.InvalidInput("limit must be a number"))
			return
		}
	}

	list, err := h.bookings.List(r.Context(), auth.HostIDFromContext(r.Context()), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]bookingItem, 0, len(list))
	for _, b := range list {
		out = append(out, toBookingItem(b))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"bookings": out})
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=CONFIRMED CANCELLED COMPLETED NO_SHOW PENDING_RESCHEDULE"`
	Reason string `json:"reason" validate:"max=500"`
}

func (h *HostHandler) SetBookingStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	status, _ := model.ParseBookingStatus(req.Status)
	hostID := auth.HostIDFromContext(r.Context())

	var b model.Booking
	var err error
	if status == model.StatusCancelled {
		b, err = h.bookings.Cancel(r.Context(), booking.CancelRequest{BookingID: r.PathValue("id"), HostID: hostID, Reason: req.Reason})
	} else {
		b, err = h.bookings.SetStatus(r.Context(), hostID, r.PathValue("id"), status, req.Reason)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingItem(b))
}

type webhookRequest struct {
	URL    string `json:"url" validate:"required,url,startswith=http"`
	Secret string `json:"secret" validate:"omitempty,min=16"`
}

type webhookDTO struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Secret    string `json:"secret,omitempty"`
	CreatedAt string `json:"created_at"`
}

// CreateWebhook returns the signing secret once; listings omit it.
func (h *HostHandler) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := h.decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Secret == "" {
		secret, err := newSecret()
		if err != nil {
			h.fail(w, r, apperr.Internal("failed to generate secret", err))
			return
		}
		req.Secret = secret
	}
	hook, err := h.store.CreateWebhook(r.Context(), model.Webhook{HostID: auth.HostIDFromContext(r.Context()), URL: req.URL, Secret: req.Secret})
	if err != nil {
		h.fail(w, r, storeWriteError(err, "webhook"))
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, webhookDTO{ID: hook.ID, URL: hook.URL, Secret: hook.Secret, CreatedAt: hook.CreatedAt.UTC().Format(time.RFC3339)})
}

func (h *HostHandler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	hooks, err := h.store.WebhooksForHost(r.Context(), auth.HostIDFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, apperr.Internal("failed to list webhooks", err))
		return
	}
	out := make([]webhookDTO, 0, len(hooks))
	for _, hook := range hooks {
		out = append(out, webhookDTO{ID: hook.ID, URL: hook.URL, CreatedAt: hook.CreatedAt.UTC().Format(time.RFC3339)})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"webhooks": out})
}

func (h *HostHandler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteWebhook(r.Context(), auth.HostIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		h.fail(w, r, storeWriteError(err, "webhook"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func dateRange(r *http.Request) (model.Date, model.Date, error) {
	from, err := model.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		return model.Date{}, model.Date{}, apperr.InvalidInput(err.Error())
	}
	to, err := model.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		return model.Date{}, model.Date{}, apperr.InvalidInput(err.Error())
	}
	if to.Before(from) {
		return model.Date{}, model.Date{}, apperr.InvalidInput("to must not be before from")
	}
	return from, to, nil
}

// storeWriteError keeps apperr kinds from the store and hides the rest.
func storeWriteError(err error, resource string) error {
	if apperr.KindOf(err) != apperr.KindInternal {
		return err
	}
	if storage.IsUniqueViolation(err) {
		return apperr.Conflict(resource + " already exists")
	}
	if storage.IsForeignKeyViolation(err) {
		return apperr.InvalidInput("set the host profile before creating a " + resource)
	}
	return apperr.Internal("failed to save "+resource, err)
}

func newSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
