package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"account-service/internal/data/entity"
	"account-service/internal/data/repository"
	"account-service/internal/dto/response"
	"account-service/pkg/metrics"
	"account-service/pkg/payment"
	"account-service/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errNoProvider = errors.New("payment provider not configured")

type SubscriptionService interface {
	CreateSubscription(ctx context.Context, principal entity.Principal) (*response.CheckoutResponse, error)
	Reconcile(ctx context.Context, principal entity.Principal, referenceID string) (*response.SubscriptionResponse, error)
	GetStatus(ctx context.Context, principal entity.Principal) (*response.SubscriptionResponse, error)
}

type subscriptionService struct {
	users    repository.UserRepository
	provider payment.Provider
	plan     payment.Plan
	timeout  time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewSubscriptionService(
	userRepo repository.UserRepository,
	provider payment.Provider,
	config utils.PaymentConfig,
	log *zap.Logger,
) SubscriptionService {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &subscriptionService{
		users:    userRepo,
		provider: provider,
		plan: payment.Plan{
			Reason:   config.PlanReason,
			Amount:   config.PlanAmount,
			Currency: config.PlanCurrency,
			PriceID:  config.StripePriceID,
		},
		timeout: timeout,
		log:     log.With(zap.String("service", "subscription")),
		now:     time.Now,
	}
}

// providerStates maps raw provider states onto local statuses. Anything not
// listed is a failure and resolves to inactive.
var providerStates = map[string]entity.SubscriptionStatus{
	"paid":                entity.SubscriptionActive,
	"no_payment_required": entity.SubscriptionActive,
	"authorized":          entity.SubscriptionActive,
	"open":                entity.SubscriptionPending,
	"unpaid":              entity.SubscriptionPending,
	"pending":             entity.SubscriptionPending,
}

// MapProviderState resolves a provider state to the local subscription status.
func MapProviderState(state string) entity.SubscriptionStatus {
	if status, ok := providerStates[strings.ToLower(strings.TrimSpace(state))]; ok {
		return status
	}
	return entity.SubscriptionInactive
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, principal entity.Principal) (*response.CheckoutResponse, error) {
	if s.provider == nil {
		return nil, errNoProvider
	}
	providerName := s.provider.Name()

	var (
		checkout    *payment.Checkout
		providerErr error
	)

	// The row lock serialises concurrent attempts of one user. The customer id is
	// committed even when the checkout fails, so a retry reuses it.
	err := s.users.WithinTx(ctx, func(tx repository.UserRepository) error {
		// 1. Lock user and check the status guard
		user, err := tx.FindByIDForUpdate(ctx, principal.UserID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
		if user.SubscriptionStatus != entity.SubscriptionInactive {
			return ErrAlreadySubscribed
		}

		now := s.now()

		// 2. Ensure exactly one provider customer
		customerID := ""
		if user.ProviderCustomerID != nil {
			customerID = *user.ProviderCustomerID
		}
		if customerID == "" {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			customerID, err = s.provider.CreateCustomer(pctx, user.Email, "customer-"+user.ID.String())
			cancel()
			if err != nil {
				providerErr = fmt.Errorf("%w: create customer: %w", ErrProvider, err)
				return nil
			}

			if err := tx.SetProviderCustomer(ctx, user.ID, customerID, now); err != nil {
				return err
			}
		}

		// 3. Create checkout
		pctx, cancel := context.WithTimeout(ctx, s.timeout)
		checkout, err = s.provider.CreateCheckout(pctx, customerID, user.Email, s.plan)
		cancel()
		if err != nil {
			providerErr = fmt.Errorf("%w: create checkout: %w", ErrProvider, err)
			return nil
		}
		if checkout.ReferenceID == "" || checkout.RedirectURL == "" {
			providerErr = fmt.Errorf("%w: checkout without reference or redirect", ErrProvider)
			return nil
		}

		// 4. Status and reference move together
		ok, err := tx.MarkSubscriptionPending(ctx, user.ID, checkout.ReferenceID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadySubscribed
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrAlreadySubscribed) {
			metrics.SubscriptionEventsTotal.WithLabelValues("create", providerName, "rejected").Inc()
			return nil, err
		}
		metrics.SubscriptionEventsTotal.WithLabelValues("create", providerName, "error").Inc()
		s.log.Error("Failed to create subscription", zap.Error(err), zap.String("user_id", principal.UserID.String()))
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	if providerErr != nil {
		metrics.SubscriptionEventsTotal.WithLabelValues("create", providerName, "provider_error").Inc()
		s.log.Error("Payment provider rejected subscription",
			zap.Error(providerErr),
			zap.String("user_id", principal.UserID.String()),
		)
		return nil, providerErr
	}

	metrics.SubscriptionEventsTotal.WithLabelValues("create", providerName, "ok").Inc()
	s.log.Info("Subscription checkout created",
		zap.String("user_id", principal.UserID.String()),
		zap.String("reference_id", checkout.ReferenceID),
	)

	return &response.CheckoutResponse{
		Provider:    providerName,
		Status:      entity.SubscriptionPending,
		ReferenceID: checkout.ReferenceID,
		RedirectURL: checkout.RedirectURL,
	}, nil
}

func (s *subscriptionService) Reconcile(ctx context.Context, principal entity.Principal, referenceID string) (*response.SubscriptionResponse, error) {
	// 1. Reference must be present and belong to the requester's current attempt
	referenceID = strings.TrimSpace(referenceID)
	if referenceID == "" {
		return nil, ErrMissingReference
	}
	if s.provider == nil {
		return nil, errNoProvider
	}
	providerName := s.provider.Name()

	user, err := s.users.FindByEmail(ctx, normalizeEmail(principal.Email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.ProviderSubscriptionID == nil || *user.ProviderSubscriptionID != referenceID {
		metrics.SubscriptionEventsTotal.WithLabelValues("reconcile", providerName, "reference_mismatch").Inc()
		s.log.Warn("Reconcile with foreign reference",
			zap.String("user_id", user.ID.String()),
			zap.String("reference_id", referenceID),
		)
		return nil, ErrReferenceMismatch
	}

	// 2. Active is terminal
	if user.SubscriptionStatus == entity.SubscriptionActive {
		return subscriptionResponse(entity.SubscriptionActive, referenceID), nil
	}

	// 3. Ask the provider
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	status, err := s.provider.GetStatus(pctx, referenceID)
	cancel()
	if err != nil {
		metrics.SubscriptionEventsTotal.WithLabelValues("reconcile", providerName, "provider_error").Inc()
		s.log.Error("Failed to fetch subscription status", zap.Error(err), zap.String("reference_id", referenceID))
		return nil, fmt.Errorf("%w: get status: %w", ErrProvider, err)
	}

	// 4. Apply the mapped status
	target := MapProviderState(status.State)
	now := s.now()

	switch target {
	case entity.SubscriptionPending:
		// nothing to write, report what is stored
		target = user.SubscriptionStatus

	case entity.SubscriptionActive:
		from := []entity.SubscriptionStatus{entity.SubscriptionPending, entity.SubscriptionActive}
		ok, err := s.users.ApplySubscriptionStatus(ctx, user.ID, referenceID, target, from, now)
		if err != nil {
			return nil, fmt.Errorf("failed to activate subscription: %w", err)
		}
		if !ok {
			return nil, ErrReferenceMismatch
		}

	case entity.SubscriptionInactive:
		from := []entity.SubscriptionStatus{entity.SubscriptionPending}
		ok, err := s.users.ApplySubscriptionStatus(ctx, user.ID, referenceID, target, from, now)
		if err != nil {
			return nil, fmt.Errorf("failed to deactivate subscription: %w", err)
		}
		if !ok {
			return s.currentAfterLostRace(ctx, user.ID, referenceID)
		}
	}

	metrics.SubscriptionEventsTotal.WithLabelValues("reconcile", providerName, string(target)).Inc()
	s.log.Info("Subscription reconciled",
		zap.String("user_id", user.ID.String()),
		zap.String("reference_id", referenceID),
		zap.String("provider_state", status.State),
		zap.String("status", string(target)),
	)

	return subscriptionResponse(target, referenceID), nil
}

func (s *subscriptionService) GetStatus(ctx context.Context, principal entity.Principal) (*response.SubscriptionResponse, error) {
	user, err := s.users.FindByID(ctx, principal.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	reference := ""
	if user.ProviderSubscriptionID != nil {
		reference = *user.ProviderSubscriptionID
	}

	return subscriptionResponse(user.SubscriptionStatus, reference), nil
}

// currentAfterLostRace handles a failure report arriving after another request
// already activated the same reference.
func (s *subscriptionService) currentAfterLostRace(ctx context.Context, userID uuid.UUID, referenceID string) (*response.SubscriptionResponse, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if user.SubscriptionStatus == entity.SubscriptionActive &&
		user.ProviderSubscriptionID != nil && *user.ProviderSubscriptionID == referenceID {
		return subscriptionResponse(entity.SubscriptionActive, referenceID), nil
	}

	return nil, ErrReferenceMismatch
}

func subscriptionResponse(status entity.SubscriptionStatus, reference string) *response.SubscriptionResponse {
	resp := &response.SubscriptionResponse{Status: status, ReferenceID: reference}

	switch status {
	case entity.SubscriptionActive:
		resp.Message = "Subscription active."
	case entity.SubscriptionPending:
		resp.Message = "Payment pending. The subscription is activated once the provider confirms it."
	default:
		resp.Message = "Subscription inactive. The payment failed or was not completed."
	}

	return resp
}
