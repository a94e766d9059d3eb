package entity

import (
	"fmt"
	"strings"
)

type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

func (p Plan) Valid() bool {
	return p == PlanFree || p == PlanPremium
}

func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown plan %q", s)
	}
	return p, nil
}

// PlanProfile shares its id with the owning user.
type PlanProfile struct {
	Base
	Email      string  `db:"email"`
	Plan       Plan    `db:"plan"`
	FreeUses   int     `db:"free_uses"`
	UsesCount  int     `db:"uses_count"`
	PurchaseID *string `db:"hotmart_purchase_id"`
}

// Remaining is nil for premium plans.
func (p *PlanProfile) Remaining() *int {
	switch p.Plan {
	case PlanPremium:
		return nil
	case PlanFree:
		left := p.FreeUses - p.UsesCount
		if left < 0 {
			left = 0
		}
		return &left
	default:
		return nil
	}
}

// LimitReached is the check done before a metered action.
func (p *PlanProfile) LimitReached() bool {
	switch p.Plan {
	case PlanPremium:
		return false
	case PlanFree:
		return p.UsesCount >= p.FreeUses
	default:
		return true
	}
}

type PaymentEvent string

const (
	PaymentApproved PaymentEvent = "approved"
	PaymentCanceled PaymentEvent = "canceled"
	PaymentUnknown  PaymentEvent = "unknown"
)

// Valid reports whether e is an event the plan service acts on.
func (e PaymentEvent) Valid() bool {
	return e == PaymentApproved || e == PaymentCanceled
}
