package adaptor

import (
	"io"
	"net/http"

	"provalab-api/internal/data/entity"
	"provalab-api/internal/dto/response"
	"provalab-api/internal/usecase"
	"provalab-api/pkg/hotmart"
	"provalab-api/pkg/utils"

	"go.uber.org/zap"
)

const (
	webhookOK      = "ok"
	webhookIgnored = "ignored"
)

type WebhookHandler struct {
	plan  usecase.PlanService
	token string
	log   *zap.Logger
}

func NewWebhookHandler(plan usecase.PlanService, token string, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		plan:  plan,
		token: token,
		log:   log.With(zap.String("handler", "webhook")),
	}
}

// Hotmart handles POST /api/hotmart/webhook
func (h *WebhookHandler) Hotmart(w http.ResponseWriter, r *http.Request) {
	if h.token == "" {
		h.log.Error("Hotmart webhook token not configured")
		utils.ResponseInternalError(w, "Webhook not configured")
		return
	}
	if !hotmart.ValidToken(r.Header.Get(hotmart.HeaderToken), h.token) {
		h.log.Warn("Hotmart webhook with invalid token", zap.String("ip", utils.ClientIP(r)))
		utils.ResponseUnauthorized(w, "Invalid webhook token")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	n, err := hotmart.Parse(body)
	if err != nil {
		h.log.Warn("Hotmart webhook with malformed payload", zap.Error(err))
		utils.ResponseBadRequest(w, "Invalid payload", nil)
		return
	}

	kind := n.Kind()
	if kind == entity.PaymentUnknown {
		h.log.Info("Hotmart event ignored", zap.String("event", n.Event))
		utils.ResponseSuccess(w, "Event ignored", response.WebhookResponse{
			Status: webhookIgnored,
			Event:  n.Event,
			Reason: string(usecase.PaymentUnknownEvent),
		})
		return
	}

	outcome, err := h.plan.ApplyPaymentEvent(r.Context(), n.BuyerEmail, kind, n.PurchaseID)
	if err != nil {
		handleServiceError(h.log, w, err, "apply payment event")
		return
	}

	if outcome != usecase.PaymentApplied {
		utils.ResponseSuccess(w, "Event ignored", response.WebhookResponse{
			Status: webhookIgnored,
			Event:  n.Event,
			Reason: string(outcome),
		})
		return
	}

	utils.ResponseSuccess(w, "Event processed", response.WebhookResponse{
		Status:    webhookOK,
		Event:     n.Event,
		Processed: true,
	})
}
