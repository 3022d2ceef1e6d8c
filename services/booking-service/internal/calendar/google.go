package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/interval"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// TokenStore persists per-host OAuth tokens and the calendars to consult.
type TokenStore interface {
	CalendarToken(ctx context.Context, hostID string) (*oauth2.Token, []string, bool, error)
	SaveCalendarToken(ctx context.Context, hostID string, tok *oauth2.Token) error
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (c GoogleConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURL != ""
}

// GoogleOracle reads busy time through the Calendar FreeBusy API.
type GoogleOracle struct {
	oauth  *oauth2.Config
	tokens TokenStore
	logger *slog.Logger
	opts   []option.ClientOption
}

func NewGoogleOracle(cfg GoogleConfig, tokens TokenStore, logger *slog.Logger, opts ...option.ClientOption) *GoogleOracle {
	return &GoogleOracle{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{gcal.CalendarReadonlyScope},
			Endpoint:     google.Endpoint,
		},
		tokens: tokens,
		logger: logger,
		opts:   opts,
	}
}

// AuthURL is where a host is sent to grant read access. state must be
// verified on callback.
func (g *GoogleOracle) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and stores it.
func (g *GoogleOracle) Exchange(ctx context.Context, hostID, code string) error {
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}
	return g.tokens.SaveCalendarToken(ctx, hostID, tok)
}

func (g *GoogleOracle) BusyIntervals(ctx context.Context, hostID string, from, to time.Time) ([]interval.Interval, error) {
	tok, calendarIDs, ok, err := g.tokens.CalendarToken(ctx, hostID)
	if err != nil {
		return nil, fmt.Errorf("load calendar token: %w", err)
	}
	if !ok {
		return nil, nil
	}
	if len(calendarIDs) == 0 {
		calendarIDs = []string{"primary"}
	}

	src := g.oauth.TokenSource(ctx, tok)
	current, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh calendar token: %w", err)
	}
	if current.AccessToken != tok.AccessToken {
		if err := g.tokens.SaveCalendarToken(ctx, hostID, current); err != nil {
			g.logger.Warn("persist refreshed calendar token failed", "host_id", hostID, "err", err)
		}
	}

	opts := append([]option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, oauth2.StaticTokenSource(current)))}, g.opts...)
	srv, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	req := &gcal.FreeBusyRequest{
		TimeMin: from.UTC().Format(time.RFC3339),
		TimeMax: to.UTC().Format(time.RFC3339),
	}
	for _, id := range calendarIDs {
		req.Items = append(req.Items, &gcal.FreeBusyRequestItem{Id: id})
	}
	resp, err := srv.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}

	var busy []interval.Interval
	for id, cal := range resp.Calendars {
		if len(cal.Errors) > 0 {
			return nil, fmt.Errorf("calendar %s: %s", id, cal.Errors[0].Reason)
		}
		for _, p := range cal.Busy {
			iv, err := parsePeriod(p)
			if err != nil {
				return nil, fmt.Errorf("calendar %s: %w", id, err)
			}
			busy = append(busy, iv)
		}
	}
	return interval.Merge(busy), nil
}

func parsePeriod(p *gcal.TimePeriod) (interval.Interval, error) {
	if p == nil {
		return interval.Interval{}, errors.New("empty busy period")
	}
	start, err := time.Parse(time.RFC3339, p.Start)
	if err != nil {
		return interval.Interval{}, fmt.Errorf("busy start %q: %w", p.Start, err)
	}
	end, err := time.Parse(time.RFC3339, p.End)
	if err != nil {
		return interval.Interval{}, fmt.Errorf("busy end %q: %w", p.End, err)
	}
	return interval.Interval{Start: start, End: end}, nil
}
