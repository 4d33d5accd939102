// Package push delivers best-effort Web Push notifications to identities
// with no live connection. It is a fire-and-forget sink: failures are logged
// and never reach the coordinator's state transitions.
package push

import (
	"encoding/json"
	"errors"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"

	"palaver/internal/models"
)

// SubscriptionStore resolves an identity's stored push subscription.
type SubscriptionStore interface {
	GetSubscription(name string) ([]byte, error)
}

type Notifier struct {
	store      SubscriptionStore
	subscriber string
	publicKey  string
	privateKey string
	logger     zerolog.Logger
}

// New creates a Notifier. When the VAPID key pair is empty the Notifier is
// disabled and every call is a no-op.
func New(store SubscriptionStore, subscriber, publicKey, privateKey string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		store:      store,
		subscriber: subscriber,
		publicKey:  publicKey,
		privateKey: privateKey,
		logger:     logger,
	}
}

func (n *Notifier) enabled() bool {
	return n != nil && n.store != nil && n.publicKey != "" && n.privateKey != ""
}

// NotifyUnread pushes an unread-counter update to an offline identity's
// registered endpoint, if any. Safe to call from a goroutine; it never
// returns an error to the caller.
func (n *Notifier) NotifyUnread(name, from string, count int) {
	if !n.enabled() {
		return
	}

	blob, err := n.store.GetSubscription(name)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			n.logger.Warn().Err(err).Str("name", name).Msg("push subscription lookup failed")
		}
		return
	}

	var sub webpush.Subscription
	if err := json.Unmarshal(blob, &sub); err != nil {
		n.logger.Warn().Err(err).Str("name", name).Msg("corrupt push subscription")
		return
	}

	payload, err := json.Marshal(map[string]any{
		"from":  from,
		"count": count,
	})
	if err != nil {
		return
	}

	resp, err := webpush.SendNotification(payload, &sub, &webpush.Options{
		Subscriber:      n.subscriber,
		VAPIDPublicKey:  n.publicKey,
		VAPIDPrivateKey: n.privateKey,
		TTL:             60,
	})
	if err != nil {
		n.logger.Debug().Err(err).Str("name", name).Msg("push delivery failed")
		return
	}
	_ = resp.Body.Close()
}
