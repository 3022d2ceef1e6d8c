package storage

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// CalendarToken returns ok=false when the host has not linked a calendar.
func (s *Store) CalendarToken(ctx context.Context, hostID string) (*oauth2.Token, []string, bool, error) {
	var tok oauth2.Token
	var expiry *time.Time
	var calendars []string
	err := s.pool.QueryRow(ctx, `
		SELECT access_token, refresh_token, token_type, expiry, calendar_ids
		FROM calendar_tokens
		WHERE host_id = $1
	`, hostID).Scan(&tok.AccessToken, &tok.RefreshToken, &tok.TokenType, &expiry, &calendars)
	if IsNotFound(err) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, err
	}
	if expiry != nil {
		tok.Expiry = *expiry
	}
	return &tok, calendars, true, nil
}

// SaveCalendarToken keeps the stored refresh token when a refreshed token
// comes back without one.
func (s *Store) SaveCalendarToken(ctx context.Context, hostID string, tok *oauth2.Token) error {
	var expiry *time.Time
	if !tok.Expiry.IsZero() {
		expiry = &tok.Expiry
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO calendar_tokens (host_id, access_token, refresh_token, token_type, expiry)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (host_id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), calendar_tokens.refresh_token),
		    token_type = EXCLUDED.token_type,
		    expiry = EXCLUDED.expiry,
		    updated_at = now()
	`, hostID, tok.AccessToken, tok.RefreshToken, tok.TokenType, expiry)
	return err
}
