// Package booking commits, moves and cancels bookings. Every write runs
// under the host lock and re-checks the slot against fresh bookings, so two
// overlapping confirmed bookings for one host cannot both commit.
package booking

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/slotbook/libs/apperr"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/busy"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/events"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/interval"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/scheduling"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	engine   *scheduling.Engine
	policies policy.Store
	store    Store
	logger   *slog.Logger
	tracer   trace.Tracer
	hashCost int
}

func NewService(engine *scheduling.Engine, policies policy.Store, store Store, logger *slog.Logger) *Service {
	return &Service{
		engine:   engine,
		policies: policies,
		store:    store,
		logger:   logger,
		tracer:   otel.Tracer("booking"),
		hashCost: bcrypt.DefaultCost,
	}
}

type CreateRequest struct {
	EventTypeID string
	Start       time.Time
	Guest       model.Guest
	Notes       string
}

// Created carries the manage token in clear text. It is returned once and
// only its hash is stored.
type Created struct {
	Booking     model.Booking
	ManageToken string
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Created, error) {
	ctx, span := s.tracer.Start(ctx, "booking.create", trace.WithAttributes(
		attribute.String("event_type_id", req.EventTypeID),
	))
	defer span.End()

	p, err := policy.Resolve(ctx, s.policies, req.EventTypeID)
	if err != nil {
		return Created{}, err
	}
	start, err := wholeMinute(req.Start)
	if err != nil {
		return Created{}, err
	}
	external, err := s.engine.Admit(ctx, p, start)
	if err != nil {
		return Created{}, err
	}

	token := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), s.hashCost)
	if err != nil {
		return Created{}, apperr.Internal("failed to hash manage token", err)
	}

	now := s.engine.Now().UTC()
	b := model.Booking{
		ID:          uuid.NewString(),
		HostID:      p.Host.ID,
		EventTypeID: p.EventType.ID,
		Start:       start,
		End:         start.Add(p.EventType.Duration()),
		Status:      model.StatusConfirmed,
		Guest:       req.Guest,
		Notes:       strings.TrimSpace(req.Notes),
		TokenHash:   string(hash),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.store.WithHostLock(ctx, p.Host.ID, func(ctx context.Context, tx Tx) error {
		if err := s.checkFree(ctx, tx, p, b.Start, "", external); err != nil {
			return err
		}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return apperr.Internal("failed to insert booking", err)
		}
		return s.emit(ctx, tx, events.FromBooking(events.BookingCreated, b, now))
	})
	if err != nil {
		return Created{}, err
	}
	span.SetAttributes(attribute.String("booking_id", b.ID))
	s.logger.Info("booking created", "booking_id", b.ID, "host_id", b.HostID, "event_type_id", b.EventTypeID, "start", b.Start)
	return Created{Booking: b, ManageToken: token}, nil
}

type RescheduleRequest struct {
	BookingID string
	Token     string
	Start     time.Time
}

// Reschedule moves a booking to a new start. The booking does not conflict
// with itself, so it may move into time overlapping its old slot.
func (s *Service) Reschedule(ctx context.Context, req RescheduleRequest) (model.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.reschedule", trace.WithAttributes(
		attribute.String("booking_id", req.BookingID),
	))
	defer span.End()

	current, err := s.Authorize(ctx, req.BookingID, req.Token)
	if err != nil {
		return model.Booking{}, err
	}
	if !movable(current.Status) {
		return model.Booking{}, apperr.Conflict("booking cannot be rescheduled")
	}
	p, err := policy.Resolve(ctx, s.policies, current.EventTypeID)
	if err != nil {
		return model.Booking{}, err
	}
	start, err := wholeMinute(req.Start)
	if err != nil {
		return model.Booking{}, err
	}
	external, err := s.engine.Admit(ctx, p, start)
	if err != nil {
		return model.Booking{}, err
	}

	var moved model.Booking
	err = s.store.WithHostLock(ctx, current.HostID, func(ctx context.Context, tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, current.ID)
		if err != nil {
			return err
		}
		if !movable(b.Status) {
			return apperr.Conflict("booking cannot be rescheduled")
		}
		if err := s.checkFree(ctx, tx, p, start, b.ID, external); err != nil {
			return err
		}

		now := s.engine.Now().UTC()
		previousStart, previousStatus := b.Start, b.Status
		b.Start = start
		b.End = start.Add(p.EventType.Duration())
		b.Status = model.StatusConfirmed
		b.UpdatedAt = now
		if err := tx.UpdateBooking(ctx, b); err != nil {
			return apperr.Internal("failed to update booking", err)
		}
		evt := events.FromBooking(events.BookingRescheduled, b, now)
		evt.PreviousStart = &previousStart
		evt.PreviousStatus = string(previousStatus)
		if err := s.emit(ctx, tx, evt); err != nil {
			return err
		}
		moved = b
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	s.logger.Info("booking rescheduled", "booking_id", moved.ID, "host_id", moved.HostID, "start", moved.Start)
	return moved, nil
}

type CancelRequest struct {
	BookingID string
	// Either Token (guest) or HostID (authenticated host) authorises the call.
	Token  string
	HostID string
	Reason string
}

// Cancel is idempotent: cancelling a cancelled booking returns it unchanged.
func (s *Service) Cancel(ctx context.Context, req CancelRequest) (model.Booking, error) {
	b, err := s.authorizeEither(ctx, req.BookingID, req.Token, req.HostID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.Status == model.StatusCancelled {
		return b, nil
	}
	return s.transition(ctx, b, model.StatusCancelled, strings.TrimSpace(req.Reason), apperr.Conflict("booking cannot be cancelled"))
}

// SetStatus applies a host-driven status change.
func (s *Service) SetStatus(ctx context.Context, hostID, bookingID string, status model.BookingStatus, reason string) (model.Booking, error) {
	b, err := s.authorizeEither(ctx, bookingID, "", hostID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.Status == status {
		return b, nil
	}
	return s.transition(ctx, b, status, strings.TrimSpace(reason), apperr.InvalidInput("status change from "+string(b.Status)+" to "+string(status)+" is not allowed"))
}

func (s *Service) List(ctx context.Context, hostID string, f ListFilter) ([]model.Booking, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	out, err := s.store.ListBookings(ctx, hostID, f)
	if err != nil {
		return nil, apperr.Internal("failed to list bookings", err)
	}
	return out, nil
}

// Authorize loads a booking and checks a guest manage token against it.
func (s *Service) Authorize(ctx context.Context, bookingID, token string) (model.Booking, error) {
	b, err := s.store.Booking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if token == "" || b.TokenHash == "" || bcrypt.CompareHashAndPassword([]byte(b.TokenHash), []byte(token)) != nil {
		return model.Booking{}, apperr.Unauthorized("invalid manage token")
	}
	return b, nil
}

func (s *Service) authorizeEither(ctx context.Context, bookingID, token, hostID string) (model.Booking, error) {
	if hostID == "" {
		return s.Authorize(ctx, bookingID, token)
	}
	b, err := s.store.Booking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.HostID != hostID {
		return model.Booking{}, apperr.NotFound("booking")
	}
	return b, nil
}

func (s *Service) transition(ctx context.Context, b model.Booking, next model.BookingStatus, reason string, refused error) (model.Booking, error) {
	var updated model.Booking
	err := s.store.WithHostLock(ctx, b.HostID, func(ctx context.Context, tx Tx) error {
		cur, err := tx.BookingForUpdate(ctx, b.ID)
		if err != nil {
			return err
		}
		if cur.Status == next {
			updated = cur
			return nil
		}
		if !cur.Status.CanTransition(next) {
			return refused
		}

		now := s.engine.Now().UTC()
		previous := cur.Status
		cur.Status = next
		cur.UpdatedAt = now
		if reason != "" {
			cur.Reason = reason
		}
		eventType := events.BookingStatusChanged
		if next == model.StatusCancelled {
			cur.CancelledAt = &now
			eventType = events.BookingCancelled
		}
		if err := tx.UpdateBooking(ctx, cur); err != nil {
			return apperr.Internal("failed to update booking", err)
		}
		evt := events.FromBooking(eventType, cur, now)
		evt.PreviousStatus = string(previous)
		if err := s.emit(ctx, tx, evt); err != nil {
			return err
		}
		updated = cur
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}
	s.logger.Info("booking status changed", "booking_id", updated.ID, "host_id", updated.HostID, "status", updated.Status)
	return updated, nil
}

// checkFree re-reads blocking bookings inside the lock and runs the same
// test the slot generator applies.
func (s *Service) checkFree(ctx context.Context, tx Tx, p policy.Policy, start time.Time, excludeID string, external []interval.Interval) error {
	params := p.Params(s.engine.Now())
	meeting := interval.Interval{Start: start, End: start.Add(params.Duration)}
	rng := interval.Pad(meeting, scheduling.Lookaround, scheduling.Lookaround)
	bookings, err := tx.BlockingBookings(ctx, p.Host.ID, rng.Start, rng.End, excludeID)
	if err != nil {
		return apperr.Internal("failed to load bookings", err)
	}
	blocked := busy.Set{Bookings: bookings, External: external}.BlockedFor(p.EventType.ID, params.Capacity)
	if !availability.Free(start, blocked, params) {
		return apperr.Conflict("the selected time is no longer available")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, tx Tx, evt events.BookingEvent) error {
	payload, err := evt.Marshal()
	if err != nil {
		return apperr.Internal("failed to build event payload", err)
	}
	if err := tx.InsertEvent(ctx, outbox.Event{
		AggregateType: "host",
		AggregateID:   evt.HostID,
		EventType:     evt.Type,
		Payload:       payload,
	}); err != nil {
		return apperr.Internal("failed to write outbox event", err)
	}
	return nil
}

func movable(s model.BookingStatus) bool {
	return s == model.StatusConfirmed || s == model.StatusPendingReschedule
}

// wholeMinute rejects starts with seconds so the committed slot is exactly
// the one the guest picked.
func wholeMinute(t time.Time) (time.Time, error) {
	u := t.UTC()
	if !u.Truncate(time.Minute).Equal(u) {
		return time.Time{}, apperr.InvalidInput("start must fall on a whole minute")
	}
	return u, nil
}
