package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/config"
)

// Payload is the JSON body delivered to the service worker.
type Payload struct {
	Title      string `json:"title"`
	Body       string `json:"body"`
	WorkflowID string `json:"workflow_id,omitempty"`
	Status     string `json:"status,omitempty"`
	Tag        string `json:"tag,omitempty"`
}

type Sender struct {
	vapidEnv *config.VAPIDEnv
	store    *Store
}

func NewSender(vapidEnv *config.VAPIDEnv, store *Store) *Sender {
	return &Sender{
		vapidEnv: vapidEnv,
		store:    store,
	}
}

// Configured reports whether VAPID keys are present. Without them the
// sender is a no-op.
func (s *Sender) Configured() bool {
	return s.vapidEnv.PublicKey != "" && s.vapidEnv.PrivateKey != ""
}

func (s *Sender) SendToAll(ctx context.Context, payload *Payload) {
	if !s.Configured() {
		slog.Debug("push notification: VAPID keys not configured, skipping")
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("push notification: failed to marshal payload", "error", err)
		return
	}

	for _, sub := range s.store.List() {
		s.sendToSubscription(ctx, sub, data)
	}
}

func (s *Sender) sendToSubscription(_ context.Context, sub *Subscription, data []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}

	resp, err := webpush.SendNotification(data, wpSub, &webpush.Options{
		VAPIDPublicKey:  s.vapidEnv.PublicKey,
		VAPIDPrivateKey: s.vapidEnv.PrivateKey,
		Subscriber:      s.vapidEnv.Subscriber,
		TTL:             86400,
	})
	if err != nil {
		slog.Error("push notification: failed to send", "endpoint", sub.Endpoint, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		slog.Info("push notification: subscription expired, removing", "endpoint", sub.Endpoint)
		s.store.DeleteByEndpoint(sub.Endpoint)
		return
	}

	if resp.StatusCode >= 400 {
		slog.Warn("push notification: unexpected status", "endpoint", sub.Endpoint, "status", resp.StatusCode)
	}
}
