package availability

import (
	"context"
	"sort"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/interval"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
)

// Source loads a host's availability configuration.
type Source interface {
	Rules(ctx context.Context, hostID string) ([]model.AvailabilityRule, error)
	Overrides(ctx context.Context, hostID string, from, to model.Date) ([]model.DateOverride, error)
}

// Schedule is a host's weekly rules plus the date overrides loaded for a
// range of dates.
type Schedule struct {
	loc       *time.Location
	rules     map[time.Weekday][]model.WallWindow
	overrides map[model.Date]model.DateOverride
}

func NewSchedule(loc *time.Location, rules []model.AvailabilityRule, overrides []model.DateOverride) *Schedule {
	s := &Schedule{
		loc:       loc,
		rules:     map[time.Weekday][]model.WallWindow{},
		overrides: make(map[model.Date]model.DateOverride, len(overrides)),
	}
	for _, r := range rules {
		s.rules[r.Weekday] = append(s.rules[r.Weekday], r.Window)
	}
	for wd := range s.rules {
		ws := s.rules[wd]
		sort.Slice(ws, func(i, j int) bool { return ws[i].Start < ws[j].Start })
	}
	for _, o := range overrides {
		s.overrides[o.Date] = o
	}
	return s
}

func (s *Schedule) Location() *time.Location {
	return s.loc
}

// Windows returns the free windows of date in start order. Overlapping rules
// are returned as-is. A date override replaces the weekly rules; an
// unavailable override empties the day. When fixed is set it replaces the
// day's windows, but only on days that have any availability at all.
func (s *Schedule) Windows(date model.Date, fixed *model.WallWindow) []interval.Interval {
	var wall []model.WallWindow
	if o, ok := s.overrides[date]; ok {
		if !o.Available || o.Window == nil {
			return nil
		}
		wall = []model.WallWindow{*o.Window}
	} else {
		wall = s.rules[date.Weekday()]
	}
	if len(wall) == 0 {
		return nil
	}
	if fixed != nil {
		wall = []model.WallWindow{*fixed}
	}

	out := make([]interval.Interval, 0, len(wall))
	for _, w := range wall {
		iv := interval.Interval{
			Start: w.Start.On(date.Year, date.Month, date.Day, s.loc),
			End:   w.End.On(date.Year, date.Month, date.Day, s.loc),
		}
		// A window swallowed by a DST transition can collapse; skip it.
		if iv.Empty() {
			continue
		}
		out = append(out, iv)
	}
	return out
}

type Resolver struct {
	src Source
}

func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// Load reads rules once and overrides for [from, to].
func (r *Resolver) Load(ctx context.Context, hostID string, loc *time.Location, from, to model.Date) (*Schedule, error) {
	rules, err := r.src.Rules(ctx, hostID)
	if err != nil {
		return nil, err
	}
	overrides, err := r.src.Overrides(ctx, hostID, from, to)
	if err != nil {
		return nil, err
	}
	return NewSchedule(loc, rules, overrides), nil
}

// Resolve returns the free windows for a single date.
func (r *Resolver) Resolve(ctx context.Context, hostID string, loc *time.Location, date model.Date, fixed *model.WallWindow) ([]interval.Interval, error) {
	s, err := r.Load(ctx, hostID, loc, date, date)
	if err != nil {
		return nil, err
	}
	return s.Windows(date, fixed), nil
}
