package response

import (
	"time"

	"provalab-api/internal/data/entity"
)

type ProfileResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FullName  *string   `json:"full_name,omitempty"`
	AvatarURL *string   `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlanResponse.Remaining is null for premium plans.
type PlanResponse struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	Plan        entity.Plan `json:"plan"`
	FreeUses    int         `json:"free_uses"`
	UsesCount   int         `json:"uses_count"`
	Remaining   *int        `json:"remaining"`
	PurchaseID  *string     `json:"hotmart_purchase_id"`
	CheckoutURL string      `json:"checkout_url"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

type WebhookResponse struct {
	Status    string `json:"status"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	Processed bool   `json:"processed,omitempty"`
}

func ProfileToResponse(p *entity.Profile) *ProfileResponse {
	if p == nil {
		return nil
	}
	return &ProfileResponse{
		ID:        p.ID.String(),
		UserID:    p.UserID.String(),
		FullName:  p.FullName,
		AvatarURL: p.AvatarURL,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func PlanToResponse(p *entity.PlanProfile, checkoutURL string) PlanResponse {
	return PlanResponse{
		ID:          p.ID.String(),
		Email:       p.Email,
		Plan:        p.Plan,
		FreeUses:    p.FreeUses,
		UsesCount:   p.UsesCount,
		Remaining:   p.Remaining(),
		PurchaseID:  p.PurchaseID,
		CheckoutURL: checkoutURL,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
