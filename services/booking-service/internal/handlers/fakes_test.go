package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/apperr"
	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/busy"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/interval"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/scheduling"
)

// memStore backs every interface the handlers reach, guarded by one mutex.
type memStore struct {
	mu         sync.Mutex
	hosts      map[string]model.Host
	rules      map[string][]model.AvailabilityRule
	overrides  map[string]model.DateOverride
	eventTypes map[string]model.EventType
	bookings   map[string]model.Booking
	webhooks   map[string]model.Webhook
	events     []outbox.Event
	calErr     error
	seq        int
}

func newMemStore() *memStore {
	return &memStore{
		hosts:      map[string]model.Host{},
		rules:      map[string][]model.AvailabilityRule{},
		overrides:  map[string]model.DateOverride{},
		eventTypes: map[string]model.EventType{},
		bookings:   map[string]model.Booking{},
		webhooks:   map[string]model.Webhook{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memStore) Host(_ context.Context, id string) (model.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hosts[id]
	if !ok {
		return model.Host{}, apperr.NotFound("host")
	}
	return h, nil
}

func (m *memStore) UpsertHost(_ context.Context, h model.Host) (model.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hosts[h.ID] = h
	return h, nil
}

func (m *memStore) SetTimezone(_ context.Context, hostID, tz string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hosts[hostID]
	h.ID, h.Timezone = hostID, tz
	m.hosts[hostID] = h
	return nil
}

func (m *memStore) Rules(_ context.Context, hostID string) ([]model.AvailabilityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AvailabilityRule(nil), m.rules[hostID]...), nil
}

func (m *memStore) ReplaceRules(_ context.Context, hostID string, rules []model.AvailabilityRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[hostID] = rules
	return nil
}

func (m *memStore) Overrides(_ context.Context, hostID string, from, to model.Date) ([]model.DateOverride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DateOverride
	for _, o := range m.overrides {
		if o.HostID == hostID && !o.Date.Before(from) && !to.Before(o.Date) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) UpsertOverride(_ context.Context, o model.DateOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[o.HostID+"/"+o.Date.String()] = o
	return nil
}

func (m *memStore) DeleteOverride(_ context.Context, hostID string, date model.Date) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := hostID + "/" + date.String()
	_, ok := m.overrides[key]
	delete(m.overrides, key)
	return ok, nil
}

func (m *memStore) EventType(_ context.Context, id string) (model.EventType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	et, ok := m.eventTypes[id]
	if !ok {
		return model.EventType{}, apperr.NotFound("event type")
	}
	return et, nil
}

func (m *memStore) ListEventTypes(_ context.Context, hostID string) ([]model.EventType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.EventType
	for _, et := range m.eventTypes {
		if et.HostID == hostID {
			out = append(out, et)
		}
	}
	return out, nil
}

func (m *memStore) CreateEventType(_ context.Context, et model.EventType) (model.EventType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if et.ID == "" {
		et.ID = m.nextID("et")
	}
	m.eventTypes[et.ID] = et
	return et, nil
}

func (m *memStore) UpdateEventType(_ context.Context, et model.EventType) (model.EventType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.eventTypes[et.ID]
	if !ok || cur.HostID != et.HostID {
		return model.EventType{}, apperr.NotFound("event type")
	}
	m.eventTypes[et.ID] = et
	return et, nil
}

func (m *memStore) DeactivateEventType(_ context.Context, hostID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	et, ok := m.eventTypes[id]
	if !ok || et.HostID != hostID {
		return apperr.NotFound("event type")
	}
	et.Active = false
	m.eventTypes[id] = et
	return nil
}

func (m *memStore) CreateWebhook(_ context.Context, w model.Webhook) (model.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.ID = m.nextID("wh")
	w.CreatedAt = time.Now()
	m.webhooks[w.ID] = w
	return w, nil
}

func (m *memStore) WebhooksForHost(_ context.Context, hostID string) ([]model.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Webhook
	for _, w := range m.webhooks {
		if w.HostID == hostID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memStore) DeleteWebhook(_ context.Context, hostID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.webhooks[id]
	if !ok || w.HostID != hostID {
		return apperr.NotFound("webhook")
	}
	delete(m.webhooks, id)
	return nil
}

func (m *memStore) BusyIntervals(context.Context, string, time.Time, time.Time) ([]interval.Interval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return nil, m.calErr
}

func (m *memStore) BlockingBookings(_ context.Context, hostID string, from, to time.Time, excludeID string) ([]model.BusyBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blocking(hostID, from, to, excludeID), nil
}

func (m *memStore) blocking(hostID string, from, to time.Time, excludeID string) []model.BusyBooking {
	var out []model.BusyBooking
	for _, b := range m.bookings {
		if b.HostID != hostID || b.ID == excludeID || b.Status == model.StatusCancelled {
			continue
		}
		if !b.Start.Before(to) || !b.End.After(from) {
			continue
		}
		et := m.eventTypes[b.EventTypeID]
		out = append(out, model.BusyBooking{
			ID:           b.ID,
			EventTypeID:  b.EventTypeID,
			Start:        b.Start,
			End:          b.End,
			BufferBefore: time.Duration(et.BufferBefore) * time.Minute,
			BufferAfter:  time.Duration(et.BufferAfter) * time.Minute,
		})
	}
	return out
}

func (m *memStore) Booking(_ context.Context, id string) (model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return model.Booking{}, apperr.NotFound("booking")
	}
	return b, nil
}

func (m *memStore) ListBookings(_ context.Context, hostID string, f booking.ListFilter) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.HostID == hostID && (f.Status == "" || f.Status == b.Status) {
			out = append(out, b)
		}
	}
	return out, nil
}

// WithHostLock holds the store mutex for the whole transaction.
func (m *memStore) WithHostLock(ctx context.Context, _ string, fn func(ctx context.Context, tx booking.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{m: m, writes: map[string]model.Booking{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, b := range tx.writes {
		m.bookings[id] = b
	}
	m.events = append(m.events, tx.events...)
	return nil
}

type memTx struct {
	m      *memStore
	writes map[string]model.Booking
	events []outbox.Event
}

func (t *memTx) BlockingBookings(_ context.Context, hostID string, from, to time.Time, excludeID string) ([]model.BusyBooking, error) {
	return t.m.blocking(hostID, from, to, excludeID), nil
}

func (t *memTx) InsertBooking(_ context.Context, b model.Booking) error {
	t.writes[b.ID] = b
	return nil
}

func (t *memTx) BookingForUpdate(_ context.Context, id string) (model.Booking, error) {
	if b, ok := t.writes[id]; ok {
		return b, nil
	}
	b, ok := t.m.bookings[id]
	if !ok {
		return model.Booking{}, apperr.NotFound("booking")
	}
	return b, nil
}

func (t *memTx) UpdateBooking(_ context.Context, b model.Booking) error {
	t.writes[b.ID] = b
	return nil
}

func (t *memTx) InsertEvent(_ context.Context, evt outbox.Event) error {
	t.events = append(t.events, evt)
	return nil
}

var sunday = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type testServer struct {
	store    *memStore
	handler  http.Handler
	verifier *auth.Verifier
	linker   *fakeLinker
}

// newTestServer seeds host-1 with Monday 09:00-17:00 availability and a
// 30 minute "intro" event type.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := newMemStore()
	win, err := model.NewWallWindow("09:00", "17:00")
	if err != nil {
		t.Fatal(err)
	}
	store.hosts["host-1"] = model.Host{ID: "host-1", Name: "Grace", Timezone: "UTC"}
	store.rules["host-1"] = []model.AvailabilityRule{{HostID: "host-1", Weekday: time.Monday, Window: win}}
	store.eventTypes["intro"] = model.EventType{ID: "intro", HostID: "host-1", Slug: "intro", Title: "Intro", DurationMinutes: 30, MaxDaysAhead: 60, MaxAttendees: 1, Active: true}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := scheduling.NewEngine(store, availability.NewResolver(store), busy.NewAggregator(store, store), logger, scheduling.Config{
		Clock: func() time.Time { return sunday },
	})
	bookings := booking.NewService(engine, store, store, logger)
	verifier, err := auth.NewVerifier("test-secret")
	if err != nil {
		t.Fatal(err)
	}
	validate := NewValidator()

	linker := &fakeLinker{}
	mux := http.NewServeMux()
	Routes{
		Public:         NewPublicHandler(engine, bookings, validate, logger),
		Host:           NewHostHandler(store, bookings, nil, validate, logger),
		Calendar:       NewCalendarHandler(linker, verifier, logger),
		HostMiddleware: []httpx.Middleware{auth.RequireHost(verifier)},
	}.Register(mux)
	return &testServer{store: store, verifier: verifier, linker: linker, handler: mux}
}

func (s *testServer) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, r)
	return rec
}

func (s *testServer) hostToken(t *testing.T, hostID string) string {
	t.Helper()
	tok, err := s.verifier.Sign(hostID, "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

type fakeLinker struct {
	hostID, code string
}

func (f *fakeLinker) AuthURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + state
}

func (f *fakeLinker) Exchange(_ context.Context, hostID, code string) error {
	f.hostID, f.code = hostID, code
	return nil
}
