package adaptor

import (
	"net/http"

	"account-service/internal/usecase"
	"account-service/pkg/utils"

	"go.uber.org/zap"
)

type SubscriptionHandler struct {
	service usecase.SubscriptionService
	log     *zap.Logger
}

func NewSubscriptionHandler(service usecase.SubscriptionService, log *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		service: service,
		log:     log,
	}
}

// Create handles POST /api/subscription
func (h *SubscriptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := utils.GetPrincipal(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	checkout, err := h.service.CreateSubscription(r.Context(), principal)
	if err != nil {
		handleServiceError(w, h.log, err, "create subscription")
		return
	}

	utils.ResponseCreated(w, "Checkout created, follow redirect_url to pay", checkout)
}

// Status handles GET /api/subscription
func (h *SubscriptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	principal, ok := utils.GetPrincipal(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	status, err := h.service.GetStatus(r.Context(), principal)
	if err != nil {
		handleServiceError(w, h.log, err, "get subscription")
		return
	}

	utils.ResponseSuccess(w, status.Message, status)
}

// Success handles GET /api/subscription/success, the provider's return URL.
// Stripe appends session_id, Mercado Pago appends preapproval_id.
func (h *SubscriptionHandler) Success(w http.ResponseWriter, r *http.Request) {
	principal, ok := utils.GetPrincipal(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	query := r.URL.Query()
	reference := query.Get("session_id")
	if reference == "" {
		reference = query.Get("preapproval_id")
	}

	status, err := h.service.Reconcile(r.Context(), principal, reference)
	if err != nil {
		handleServiceError(w, h.log, err, "reconcile subscription")
		return
	}

	utils.ResponseSuccess(w, status.Message, status)
}
