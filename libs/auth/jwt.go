package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/md-rashed-zaman/slotbook/libs/apperr"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
)

type ctxKey int

const ctxKeyHostID ctxKey = iota

// Claims identifies an authenticated host. Subject carries the host id.
type Claims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose,omitempty"`
}

// Verifier signs and verifies HS256 tokens with a shared secret.
type Verifier struct {
	secret []byte
	leeway time.Duration
	now    func() time.Time
}

func NewVerifier(secret string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Verifier{secret: []byte(secret), leeway: 5 * time.Second, now: time.Now}, nil
}

// Sign issues a token for hostID. purpose scopes short-lived tokens such as
// OAuth state so they cannot be replayed as session tokens.
func (v *Verifier) Sign(hostID, purpose string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   hostID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Purpose: purpose,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func (v *Verifier) Verify(token, purpose string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return Claims{}, err
	}
	if claims.Subject == "" {
		return Claims{}, errors.New("token has no subject")
	}
	if claims.Purpose != purpose {
		return Claims{}, errors.New("token purpose mismatch")
	}
	return claims, nil
}

// RequireHost rejects requests without a valid bearer session token and
// stores the host id in the request context.
func RequireHost(v *Verifier) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			parts := strings.Fields(r.Header.Get("Authorization"))
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				httpx.WriteError(w, r, nil, apperr.Unauthorized("missing bearer token"))
				return
			}
			claims, err := v.Verify(parts[1], "")
			if err != nil {
				httpx.WriteError(w, r, nil, apperr.Unauthorized("invalid token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithHostID(r.Context(), claims.Subject)))
		})
	}
}

func WithHostID(ctx context.Context, hostID string) context.Context {
	return context.WithValue(ctx, ctxKeyHostID, hostID)
}

func HostIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyHostID).(string)
	return v
}
