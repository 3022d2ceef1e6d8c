package dispatch

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/model"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	SignatureHeader = "X-Slotbook-Signature"
	EventHeader     = "X-Slotbook-Event"
	DeliveryHeader  = "X-Slotbook-Delivery"
)

// WebhookSender posts signed event payloads to host-registered URLs.
type WebhookSender struct {
	http *http.Client
}

func NewWebhookSender(timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSender{
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Sign returns the hex HMAC-SHA256 of body under secret, prefixed "sha256=".
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (s *WebhookSender) Send(ctx context.Context, hook model.Webhook, eventType, deliveryID string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, eventType)
	req.Header.Set(DeliveryHeader, deliveryID)
	req.Header.Set(SignatureHeader, Sign(hook.Secret, body))

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned %d", hook.ID, resp.StatusCode)
	}
	return nil
}
