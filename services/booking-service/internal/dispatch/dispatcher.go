// Package dispatch delivers booking events to webhooks and e-mail.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/events"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"github.com/segmentio/kafka-go"
)

type WebhookSource interface {
	WebhooksForHost(ctx context.Context, hostID string) ([]model.Webhook, error)
}

type HostSource interface {
	Host(ctx context.Context, id string) (model.Host, error)
}

type Dispatcher struct {
	hooks   WebhookSource
	hosts   HostSource
	webhook *WebhookSender
	mail    Mailer
	logger  *slog.Logger
}

func NewDispatcher(hooks WebhookSource, hosts HostSource, webhook *WebhookSender, mail Mailer, logger *slog.Logger) *Dispatcher {
	if mail == nil {
		mail = NoopMailer{}
	}
	return &Dispatcher{hooks: hooks, hosts: hosts, webhook: webhook, mail: mail, logger: logger}
}

// Handle is a consumer.Handler. Every webhook and recipient is attempted;
// failures are joined into the returned error.
func (d *Dispatcher) Handle(ctx context.Context, msg kafka.Message) error {
	evt, err := events.Parse(msg.Value)
	if err != nil {
		d.logger.Error("invalid booking event payload", "err", err, "topic", msg.Topic)
		return nil
	}
	meta := kafkax.ExtractEventMeta(msg)

	var errs []error
	hooks, err := d.hooks.WebhooksForHost(ctx, evt.HostID)
	if err != nil {
		errs = append(errs, fmt.Errorf("list webhooks: %w", err))
	}
	for _, h := range hooks {
		if err := d.webhook.Send(ctx, h, meta.EventType, meta.EventID, msg.Value); err != nil {
			d.logger.Warn("webhook delivery failed", "host_id", evt.HostID, "webhook_id", h.ID, "booking_id", evt.BookingID, "err", err)
			errs = append(errs, err)
		}
	}

	host, err := d.hosts.Host(ctx, evt.HostID)
	if err != nil {
		errs = append(errs, fmt.Errorf("load host: %w", err))
	}
	subject, body := Compose(evt, host)
	for _, to := range []string{evt.GuestEmail, host.Email} {
		if strings.TrimSpace(to) == "" {
			continue
		}
		if err := d.mail.Send(to, subject, body); err != nil {
			d.logger.Warn("email delivery failed", "booking_id", evt.BookingID, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Compose renders the notification for evt. Times are shown in the guest's
// zone when known, otherwise in the host's.
func Compose(evt events.BookingEvent, host model.Host) (string, string) {
	loc := time.UTC
	for _, tz := range []string{evt.GuestTimezone, host.Timezone} {
		if tz == "" {
			continue
		}
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
			break
		}
	}
	when := evt.Start.In(loc).Format("Mon 2 Jan 2006 15:04 MST")

	var subject string
	switch evt.Type {
	case events.BookingCreated:
		subject = "Booking confirmed: " + when
	case events.BookingRescheduled:
		subject = "Booking moved: " + when
	case events.BookingCancelled:
		subject = "Booking cancelled: " + when
	default:
		subject = fmt.Sprintf("Booking %s: %s", strings.ToLower(evt.Status), when)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", evt.GuestName)
	fmt.Fprintf(&b, "Host: %s\n", host.Name)
	fmt.Fprintf(&b, "When: %s\n", when)
	fmt.Fprintf(&b, "Duration: %s\n", evt.End.Sub(evt.Start))
	if evt.PreviousStart != nil {
		fmt.Fprintf(&b, "Previously: %s\n", evt.PreviousStart.In(loc).Format("Mon 2 Jan 2006 15:04 MST"))
	}
	fmt.Fprintf(&b, "Status: %s\n", evt.Status)
	if evt.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", evt.Reason)
	}
	fmt.Fprintf(&b, "Reference: %s\n", evt.BookingID)
	return subject, b.String()
}
