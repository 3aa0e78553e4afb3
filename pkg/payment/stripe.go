package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// States reported by StripeProvider.GetStatus besides stripe's payment_status values.
const (
	StripeStateOpen        = "open"
	StripeStateExpired     = "expired"
	StripeStateInvalidMode = "invalid_mode"
)

// StripeProvider creates subscription-mode Checkout Sessions paid by card or boleto.
type StripeProvider struct {
	api        *client.API
	successURL string
	cancelURL  string
}

func NewStripeProvider(secretKey, baseURL string) *StripeProvider {
	return newStripeProvider(secretKey, baseURL, nil)
}

// newStripeProvider accepts custom backends; nil uses stripe's defaults.
func newStripeProvider(secretKey, baseURL string, backends *stripe.Backends) *StripeProvider {
	base := strings.TrimRight(baseURL, "/")
	return &StripeProvider{
		api:        client.New(secretKey, backends),
		successURL: base + "/api/subscription/success?session_id={CHECKOUT_SESSION_ID}",
		cancelURL:  base + "/api/subscription",
	}
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) CreateCustomer(ctx context.Context, email, idempotencyKey string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	params.AddMetadata("account_email", email)
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	customer, err := p.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return customer.ID, nil
}

func (p *StripeProvider) CreateCheckout(ctx context.Context, customerID, _ string, plan Plan) (*Checkout, error) {
	if plan.PriceID == "" {
		return nil, fmt.Errorf("stripe checkout: price id is required")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card", "boleto"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.successURL),
		CancelURL:  stripe.String(p.cancelURL),
		Locale:     stripe.String("pt-BR"),
	}
	params.Context = ctx

	session, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}

	return &Checkout{ReferenceID: session.ID, RedirectURL: session.URL}, nil
}

// GetStatus reports "open" while the session is still open and "expired" once
// it can no longer be paid, otherwise the session's payment_status
// (paid, unpaid, no_payment_required).
func (p *StripeProvider) GetStatus(ctx context.Context, referenceID string) (*Status, error) {
	if referenceID == "" {
		return nil, ErrEmptyReference
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := p.api.CheckoutSessions.Get(referenceID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get checkout session %s: %w", referenceID, err)
	}

	status := &Status{ReferenceID: session.ID}
	if session.Subscription != nil {
		status.SubscriptionID = session.Subscription.ID
	}

	switch {
	case session.Mode != stripe.CheckoutSessionModeSubscription:
		status.State = StripeStateInvalidMode
	case session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		status.State = string(session.PaymentStatus)
	case session.Status == stripe.CheckoutSessionStatusOpen:
		status.State = StripeStateOpen
	case session.Status == stripe.CheckoutSessionStatusExpired:
		status.State = StripeStateExpired
	default:
		status.State = string(session.PaymentStatus)
	}

	return status, nil
}
