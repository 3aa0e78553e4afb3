package response

import "account-service/internal/data/entity"

type CheckoutResponse struct {
	Provider    string                    `json:"provider"`
	Status      entity.SubscriptionStatus `json:"status"`
	ReferenceID string                    `json:"reference_id"`
	RedirectURL string                    `json:"redirect_url"`
}

type SubscriptionResponse struct {
	Status      entity.SubscriptionStatus `json:"status"`
	ReferenceID string                    `json:"reference_id,omitempty"`
	Message     string                    `json:"message"`
}
