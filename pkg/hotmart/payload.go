// Package hotmart reads Hotmart webhook notifications.
//
// Hotmart has shipped several payload versions, so each logical field is
// looked up through an ordered list of candidate paths and the first
// non-blank string wins:
//
//	event:       event, event_name, type (upper-cased)
//	buyer email: data.buyer.email, buyer.email, data.subscriber.email,
//	             subscriber.email, data.purchase.buyer.email,
//	             purchase.buyer.email, email
//	purchase id: data.purchase.transaction, purchase.transaction,
//	             data.purchase.id, purchase.id, data.id, id
package hotmart

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strings"

	"provalab-api/internal/data/entity"
)

const HeaderToken = "X-Hotmart-Hottok"

var (
	EventPaths = [][]string{
		{"event"},
		{"event_name"},
		{"type"},
	}
	EmailPaths = [][]string{
		{"data", "buyer", "email"},
		{"buyer", "email"},
		{"data", "subscriber", "email"},
		{"subscriber", "email"},
		{"data", "purchase", "buyer", "email"},
		{"purchase", "buyer", "email"},
		{"email"},
	}
	PurchasePaths = [][]string{
		{"data", "purchase", "transaction"},
		{"purchase", "transaction"},
		{"data", "purchase", "id"},
		{"purchase", "id"},
		{"data", "id"},
		{"id"},
	}
)

var (
	approvedEvents = map[string]bool{"PURCHASE_APPROVED": true}
	canceledEvents = map[string]bool{"PURCHASE_CANCELED": true, "SUBSCRIPTION_CANCELED": true}
)

type Notification struct {
	Event      string
	BuyerEmail string
	PurchaseID string
}

// Kind classifies the event; anything unrecognized is PaymentUnknown.
func (n Notification) Kind() entity.PaymentEvent {
	switch {
	case approvedEvents[n.Event]:
		return entity.PaymentApproved
	case canceledEvents[n.Event]:
		return entity.PaymentCanceled
	default:
		return entity.PaymentUnknown
	}
}

// Parse decodes a webhook body. Only malformed JSON is an error; missing
// fields come back empty.
func Parse(body []byte) (Notification, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return Notification{}, fmt.Errorf("hotmart: decode payload: %w", err)
	}

	return Notification{
		Event:      strings.ToUpper(Extract(payload, EventPaths...)),
		BuyerEmail: Extract(payload, EmailPaths...),
		PurchaseID: Extract(payload, PurchasePaths...),
	}, nil
}

// Extract returns the first non-blank string found along paths, trimmed.
func Extract(payload map[string]any, paths ...[]string) string {
	for _, path := range paths {
		var cur any = payload
		for _, key := range path {
			m, ok := cur.(map[string]any)
			if !ok {
				cur = nil
				break
			}
			cur = m[key]
		}
		if s, ok := cur.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

// ValidToken compares the shared secret in constant time.
func ValidToken(got, want string) bool {
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
