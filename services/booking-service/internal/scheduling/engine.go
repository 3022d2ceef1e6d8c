// Package scheduling answers slot queries by combining a host's availability,
// busy time and event type policy.
package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/busy"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/interval"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/policy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Lookaround widens busy queries so bookings just outside a window still
// block it through their buffers.
const Lookaround = 24 * time.Hour

type Config struct {
	// DegradedMode answers slot queries from internal bookings alone when the
	// external calendar is unavailable. Booking commits never degrade.
	DegradedMode bool
	// Clock overrides time.Now.
	Clock func() time.Time
}

type Engine struct {
	policies policy.Store
	resolver *availability.Resolver
	busy     *busy.Aggregator
	cfg      Config
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewEngine(policies policy.Store, resolver *availability.Resolver, agg *busy.Aggregator, logger *slog.Logger, cfg Config) *Engine {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Engine{
		policies: policies,
		resolver: resolver,
		busy:     agg,
		cfg:      cfg,
		logger:   logger,
		tracer:   otel.Tracer("scheduling"),
		now:      now,
	}
}

// Now is the engine clock, shared with booking commits.
func (e *Engine) Now() time.Time {
	return e.now()
}

type DayQuery struct {
	EventTypeID      string
	Date             string
	ExcludeBookingID string
}

type DayResult struct {
	EventTypeID string
	Date        model.Date
	Timezone    string
	Slots       []availability.Slot
	Degraded    bool
}

// DaySlots lists the bookable starts of one host-local date. A day without
// availability is an empty result, not an error. ExcludeBookingID removes a
// booking being rescheduled from its own conflict set.
func (e *Engine) DaySlots(ctx context.Context, q DayQuery) (DayResult, error) {
	ctx, span := e.tracer.Start(ctx, "scheduling.day_slots", trace.WithAttributes(
		attribute.String("event_type_id", q.EventTypeID),
		attribute.String("date", q.Date),
	))
	defer span.End()

	date, err := model.ParseDate(q.Date)
	if err != nil {
		return DayResult{}, apperr.InvalidInput(err.Error())
	}
	p, err := policy.Resolve(ctx, e.policies, q.EventTypeID)
	if err != nil {
		return DayResult{}, record(span, err)
	}

	now := e.now()
	res := DayResult{EventTypeID: p.EventType.ID, Date: date, Timezone: p.Host.Timezone, Slots: []availability.Slot{}}
	if date.Before(p.Today(now)) || p.LastDate(now).Before(date) {
		return res, nil
	}

	sched, err := e.resolver.Load(ctx, p.Host.ID, p.Location, date, date)
	if err != nil {
		return DayResult{}, record(span, apperr.Internal("failed to load availability", err))
	}
	windows := sched.Windows(date, p.EventType.FixedWindow)
	if len(windows) == 0 {
		return res, nil
	}

	set, degraded, err := e.collect(ctx, p, spanOf(windows), q.ExcludeBookingID)
	if err != nil {
		return DayResult{}, record(span, err)
	}
	params := p.Params(now)
	res.Slots = dedupe(availability.Generate(windows, set.BlockedFor(p.EventType.ID, params.Capacity), params))
	res.Degraded = degraded
	span.SetAttributes(attribute.Int("slots", len(res.Slots)), attribute.Bool("degraded", degraded))
	return res, nil
}

type MonthQuery struct {
	EventTypeID string
	Month       string
}

type RangeResult struct {
	EventTypeID string
	Timezone    string
	Dates       []model.Date
	Degraded    bool
}

// MonthDays lists the dates of a YYYY-MM month that have at least one slot.
func (e *Engine) MonthDays(ctx context.Context, q MonthQuery) (RangeResult, error) {
	first, err := time.Parse("2006-01", q.Month)
	if err != nil {
		return RangeResult{}, apperr.InvalidInput(fmt.Sprintf("invalid month %q (want YYYY-MM)", q.Month))
	}
	from := model.DateOf(first)
	to := model.DateOf(first.AddDate(0, 1, -1))
	return e.DatesWithSlots(ctx, q.EventTypeID, from, to)
}

// DatesWithSlots scans [from, to] clamped to [today, horizon] and stops at
// the first slot of each day. Busy time is collected once for the whole
// range. The scan honours ctx between days and writes nothing.
func (e *Engine) DatesWithSlots(ctx context.Context, eventTypeID string, from, to model.Date) (RangeResult, error) {
	ctx, span := e.tracer.Start(ctx, "scheduling.dates_with_slots", trace.WithAttributes(
		attribute.String("event_type_id", eventTypeID),
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
	defer span.End()

	if to.Before(from) {
		return RangeResult{}, apperr.InvalidInput("range end is before range start")
	}
	p, err := policy.Resolve(ctx, e.policies, eventTypeID)
	if err != nil {
		return RangeResult{}, record(span, err)
	}

	now := e.now()
	res := RangeResult{EventTypeID: p.EventType.ID, Timezone: p.Host.Timezone, Dates: []model.Date{}}
	if today := p.Today(now); from.Before(today) {
		from = today
	}
	if last := p.LastDate(now); last.Before(to) {
		to = last
	}
	if to.Before(from) {
		return res, nil
	}

	sched, err := e.resolver.Load(ctx, p.Host.ID, p.Location, from, to)
	if err != nil {
		return RangeResult{}, record(span, apperr.Internal("failed to load availability", err))
	}
	rng := interval.Interval{Start: from.Midnight(p.Location), End: to.AddDays(1).Midnight(p.Location)}
	set, degraded, err := e.collect(ctx, p, rng, "")
	if err != nil {
		return RangeResult{}, record(span, err)
	}

	params := p.Params(now)
	blocked := set.BlockedFor(p.EventType.ID, params.Capacity)
	for d := from; !to.Before(d); d = d.AddDays(1) {
		if err := ctx.Err(); err != nil {
			return RangeResult{}, record(span, apperr.Wrap(err, apperr.KindUnavailable, "slot scan cancelled"))
		}
		if availability.HasSlot(sched.Windows(d, p.EventType.FixedWindow), blocked, params) {
			res.Dates = append(res.Dates, d)
		}
	}
	res.Degraded = degraded
	return res, nil
}

type FreeResult struct {
	Date     model.Date
	Timezone string
	Windows  []interval.Interval
	Degraded bool
}

// FreeWindows returns the day's availability minus every blocked interval,
// without slot alignment or event type buffers.
func (e *Engine) FreeWindows(ctx context.Context, q DayQuery) (FreeResult, error) {
	date, err := model.ParseDate(q.Date)
	if err != nil {
		return FreeResult{}, apperr.InvalidInput(err.Error())
	}
	p, err := policy.Resolve(ctx, e.policies, q.EventTypeID)
	if err != nil {
		return FreeResult{}, err
	}
	res := FreeResult{Date: date, Timezone: p.Host.Timezone, Windows: []interval.Interval{}}

	sched, err := e.resolver.Load(ctx, p.Host.ID, p.Location, date, date)
	if err != nil {
		return FreeResult{}, apperr.Internal("failed to load availability", err)
	}
	windows := sched.Windows(date, p.EventType.FixedWindow)
	if len(windows) == 0 {
		return res, nil
	}
	set, degraded, err := e.collect(ctx, p, spanOf(windows), q.ExcludeBookingID)
	if err != nil {
		return FreeResult{}, err
	}
	if free := interval.Subtract(windows, set.Merged()); len(free) > 0 {
		res.Windows = free
	}
	res.Degraded = degraded
	return res, nil
}

// Admit checks that start is inside the notice period and a free window of
// its host-local date, and returns the external busy intervals around it.
// A calendar failure is always returned; commits do not degrade.
func (e *Engine) Admit(ctx context.Context, p policy.Policy, start time.Time) ([]interval.Interval, error) {
	params := p.Params(e.now())
	if !availability.WithinNotice(start, params) {
		return nil, apperr.Conflict("requested time is outside the bookable period")
	}

	meeting := interval.Interval{Start: start, End: start.Add(params.Duration)}
	date := model.DateOf(start.In(p.Location))
	windows, err := e.resolver.Resolve(ctx, p.Host.ID, p.Location, date, p.EventType.FixedWindow)
	if err != nil {
		return nil, apperr.Internal("failed to load availability", err)
	}
	inside := false
	for _, w := range windows {
		if interval.Contains(w, meeting) {
			inside = true
			break
		}
	}
	if !inside {
		return nil, apperr.Conflict("requested time is outside host availability")
	}

	return e.busy.External(ctx, p.Host.ID, interval.Pad(meeting, Lookaround, Lookaround))
}

func (e *Engine) collect(ctx context.Context, p policy.Policy, rng interval.Interval, excludeID string) (busy.Set, bool, error) {
	set, err := e.busy.Collect(ctx, p.Host.ID, interval.Pad(rng, Lookaround, Lookaround), excludeID)
	if err == nil {
		return set, false, nil
	}
	if !apperr.Is(err, apperr.KindUnavailable) {
		return busy.Set{}, false, apperr.Internal("failed to load busy time", err)
	}
	if !e.cfg.DegradedMode {
		return busy.Set{}, false, err
	}
	e.logger.Warn("external calendar unavailable; serving internal bookings only",
		"host_id", p.Host.ID,
		"event_type_id", p.EventType.ID,
		"err", err,
	)
	return set, true, nil
}

func spanOf(windows []interval.Interval) interval.Interval {
	s := windows[0]
	for _, w := range windows[1:] {
		if w.Start.Before(s.Start) {
			s.Start = w.Start
		}
		if w.End.After(s.End) {
			s.End = w.End
		}
	}
	return s
}

func dedupe(slots []availability.Slot) []availability.Slot {
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	out := slots[:0]
	for i, s := range slots {
		if i > 0 && s.Start.Equal(out[len(out)-1].Start) {
			continue
		}
		out = append(out, s)
	}
	if out == nil {
		return []availability.Slot{}
	}
	return out
}

func record(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(apperr.KindOf(err)))
	return err
}
