package notification

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/IlamSingleBrainCell/enterprise-ai-studio/internal/config"
	"github.com/IlamSingleBrainCell/enterprise-ai-studio/pkg/cerr"
)

type Server struct {
	vapidEnv *config.VAPIDEnv
	store    *Store
	sender   *Sender
}

func NewServer(vapidEnv *config.VAPIDEnv, store *Store, sender *Sender) *Server {
	return &Server{
		vapidEnv: vapidEnv,
		store:    store,
		sender:   sender,
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/notifications/vapid-public-key", s.vapidPublicKey)
	r.Post("/notifications/subscribe", s.subscribe)
	r.Post("/notifications/unsubscribe", s.unsubscribe)
	r.Post("/notifications/test", s.test)
}

func (s *Server) vapidPublicKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.vapidEnv.PublicKey == "" {
		cerr.SetNewJSONError(ctx, cerr.FailedPrecondition, "VAPID keys not configured", nil)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]string{"public_key": s.vapidEnv.PublicKey})
}

type subscribeRequest struct {
	Endpoint  string `json:"endpoint"`
	P256dhKey string `json:"p256dh_key"`
	AuthKey   string `json:"auth_key"`
}

func (s *Server) subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.Endpoint == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "endpoint is required", nil)
		return
	}
	if req.P256dhKey == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "p256dh_key is required", nil)
		return
	}
	if req.AuthKey == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "auth_key is required", nil)
		return
	}

	sub := s.store.Upsert(&Subscription{
		Endpoint:  req.Endpoint,
		P256dhKey: req.P256dhKey,
		AuthKey:   req.AuthKey,
	})
	cerr.SetJSONResponse(ctx, sub)
}

func (s *Server) unsubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.Endpoint == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "endpoint is required", nil)
		return
	}

	// Idempotent: unsubscribing an unknown endpoint is not an error.
	s.store.DeleteByEndpoint(req.Endpoint)
	cerr.SetJSONResponse(ctx, map[string]string{"message": "Subscription removed"})
}

func (s *Server) test(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	s.sender.SendToAll(ctx, &Payload{
		Title: "Enterprise AI Studio",
		Body:  "Push notifications are working!",
	})
	cerr.SetJSONResponse(ctx, map[string]string{"message": "Test notification sent"})
}
