package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/slotbook/libs/apperr"
)

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// WriteError renders err with the status of its apperr kind. Causes of
// internal errors are logged, not returned.
func WriteError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	e := apperr.As(err)
	status := apperr.HTTPStatus(e.Kind)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed",
			"request_id", RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"code", string(e.Kind),
			"err", err,
		)
	}
	WriteJSON(w, status, errorBody{Code: string(e.Kind), Message: e.Message, Details: e.Details})
}

// DecodeJSON reads a single JSON object, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.InvalidInput("request body is empty")
		}
		return apperr.Wrap(err, apperr.KindInvalidInput, "invalid json body")
	}
	return nil
}
