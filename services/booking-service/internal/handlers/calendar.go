package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/apperr"
	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
)

const oauthStatePurpose = "oauth_state"

// Linker is the OAuth side of an external calendar provider.
type Linker interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, hostID, code string) error
}

type CalendarHandler struct {
	linker   Linker
	verifier *auth.Verifier
	logger   *slog.Logger
}

func NewCalendarHandler(linker Linker, verifier *auth.Verifier, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{linker: linker, verifier: verifier, logger: logger}
}

// Connect returns the consent URL. The state is a short-lived token naming
// the host, so the callback needs no session.
func (h *CalendarHandler) Connect(w http.ResponseWriter, r *http.Request) {
	state, err := h.verifier.Sign(auth.HostIDFromContext(r.Context()), oauthStatePurpose, 10*time.Minute)
	if err != nil {
		httpx.WriteError(w, r, h.logger, apperr.Internal("failed to sign state", err))
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"url": h.linker.AuthURL(state)})
}

func (h *CalendarHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if msg := r.URL.Query().Get("error"); msg != "" {
		httpx.WriteError(w, r, h.logger, apperr.InvalidInput("calendar consent was not granted: "+msg))
		return
	}
	claims, err := h.verifier.Verify(r.URL.Query().Get("state"), oauthStatePurpose)
	if err != nil {
		httpx.WriteError(w, r, h.logger, apperr.Unauthorized("invalid or expired state"))
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		httpx.WriteError(w, r, h.logger, apperr.InvalidInput("code is required"))
		return
	}
	if err := h.linker.Exchange(r.Context(), claims.Subject, code); err != nil {
		httpx.WriteError(w, r, h.logger, apperr.Unavailable("calendar provider", err))
		return
	}
	h.logger.Info("calendar linked", "host_id", claims.Subject)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"linked": true})
}
