// Package payment hides the payment backends behind one Provider interface.
// Implementations only translate provider objects; the mapping of provider
// states onto local subscription states belongs to the caller.
package payment

import (
	"context"
	"errors"
)

var ErrEmptyReference = errors.New("empty provider reference")

// Plan is the recurring charge pinned when a checkout is created.
type Plan struct {
	Reason   string
	Amount   float64
	Currency string
	// PriceID references a price object owned by the provider, when it has one.
	PriceID string
}

// Checkout is the provider object the user is redirected to.
type Checkout struct {
	ReferenceID string
	RedirectURL string
}

// Status is the provider's raw view of a checkout or pre-approval.
type Status struct {
	ReferenceID    string
	State          string
	SubscriptionID string
}

type Provider interface {
	Name() string
	CreateCustomer(ctx context.Context, email, idempotencyKey string) (string, error)
	CreateCheckout(ctx context.Context, customerID, email string, plan Plan) (*Checkout, error)
	GetStatus(ctx context.Context, referenceID string) (*Status, error)
}
