package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/customer"
	"github.com/mercadopago/sdk-go/pkg/preapproval"
)

// MercadoPagoProvider creates recurring pre-approvals billed monthly.
type MercadoPagoProvider struct {
	customers    customer.Client
	preapprovals preapproval.Client
	backURL      string
}

func NewMercadoPagoProvider(accessToken, baseURL string) (*MercadoPagoProvider, error) {
	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, fmt.Errorf("mercadopago config: %w", err)
	}

	return &MercadoPagoProvider{
		customers:    customer.NewClient(cfg),
		preapprovals: preapproval.NewClient(cfg),
		backURL:      strings.TrimRight(baseURL, "/") + "/api/subscription/success",
	}, nil
}

func (p *MercadoPagoProvider) Name() string { return "mercadopago" }

// CreateCustomer ignores idempotencyKey; the caller's row lock prevents duplicates.
func (p *MercadoPagoProvider) CreateCustomer(ctx context.Context, email, _ string) (string, error) {
	res, err := p.customers.Create(ctx, customer.Request{Email: email})
	if err != nil {
		return "", fmt.Errorf("mercadopago create customer: %w", err)
	}
	return res.ID, nil
}

func (p *MercadoPagoProvider) CreateCheckout(ctx context.Context, customerID, email string, plan Plan) (*Checkout, error) {
	req := preapproval.Request{
		Reason:            plan.Reason,
		PayerEmail:        email,
		BackURL:           p.backURL,
		ExternalReference: customerID,
		AutoRecurring: &preapproval.AutoRecurringRequest{
			Frequency:         1,
			FrequencyType:     "months",
			TransactionAmount: plan.Amount,
			CurrencyID:        plan.Currency,
		},
	}

	res, err := p.preapprovals.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mercadopago create preapproval: %w", err)
	}

	return &Checkout{ReferenceID: res.ID, RedirectURL: res.InitPoint}, nil
}

// GetStatus reports the pre-approval status (pending, authorized, paused, cancelled).
func (p *MercadoPagoProvider) GetStatus(ctx context.Context, referenceID string) (*Status, error) {
	if referenceID == "" {
		return nil, ErrEmptyReference
	}

	res, err := p.preapprovals.Get(ctx, referenceID)
	if err != nil {
		return nil, fmt.Errorf("mercadopago get preapproval %s: %w", referenceID, err)
	}

	return &Status{
		ReferenceID:    res.ID,
		State:          res.Status,
		SubscriptionID: res.ID,
	}, nil
}
