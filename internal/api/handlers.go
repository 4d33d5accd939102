package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"palaver/internal/content"
	"palaver/internal/models"
)

// Coordinator is the read-only slice of the hub the REST surface needs.
type Coordinator interface {
	Rooms() []models.RoomInfo
	Online() []string
	IsOnline(name string) bool
}

// SubscriptionStore persists Web Push subscriptions.
type SubscriptionStore interface {
	SaveSubscription(name string, subscription []byte) error
}

type API struct {
	hub    Coordinator
	subs   SubscriptionStore
	logger zerolog.Logger
}

func New(hub Coordinator, subs SubscriptionStore, logger zerolog.Logger) *API {
	return &API{hub: hub, subs: subs, logger: logger}
}

// RoomsHandler returns the public room list (name + creator pairs).
func (a *API) RoomsHandler(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, a.hub.Rooms())
}

// PresenceHandler returns the names of all live identities.
func (a *API) PresenceHandler(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, a.hub.Online())
}

// SubscribeHandler registers a Web Push subscription for a live identity.
func (a *API) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string          `json:"name"`
		Subscription json.RawMessage `json:"subscription"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := content.ValidateName(req.Name); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !a.hub.IsOnline(req.Name) {
		http.Error(w, "Unknown identity", http.StatusNotFound)
		return
	}
	if len(req.Subscription) == 0 {
		http.Error(w, "Missing subscription", http.StatusBadRequest)
		return
	}

	if a.subs == nil {
		http.Error(w, "Push not configured", http.StatusServiceUnavailable)
		return
	}
	if err := a.subs.SaveSubscription(req.Name, req.Subscription); err != nil {
		a.logger.Error().Err(err).Str("name", req.Name).Msg("failed to save push subscription")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// HealthHandler reports liveness.
func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error().Err(err).Msg("failed to encode response")
	}
}
