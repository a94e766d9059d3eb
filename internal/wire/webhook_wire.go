package wire

import (
	"provalab-api/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

// The webhook authenticates with its shared secret, not a session.
func wireWebhook(r chi.Router, webhookHandler *adaptor.WebhookHandler) {
	r.Post("/api/hotmart/webhook", webhookHandler.Hotmart)
}
