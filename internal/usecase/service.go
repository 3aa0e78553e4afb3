package usecase

import (
	"account-service/internal/data/repository"
	"account-service/pkg/mailer"
	"account-service/pkg/payment"
	"account-service/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Auth         AuthService
	User         UserService
	Subscription SubscriptionService
}

// Dependencies are the outside collaborators of the services. Limiter may be nil.
type Dependencies struct {
	Hasher   utils.SecretHasher
	Codes    utils.CodeGenerator
	Mailer   mailer.Mailer
	Limiter  AttemptLimiter
	Payments payment.Provider
}

func NewService(repo *repository.Repository, deps Dependencies, config *utils.Config, log *zap.Logger) *Service {
	notifier := NewNotifier(deps.Mailer, config.App.Name, log)

	return &Service{
		Auth:         NewAuthService(repo, deps.Hasher, deps.Codes, notifier, deps.Limiter, config.Auth, log),
		User:         NewUserService(repo.User, log),
		Subscription: NewSubscriptionService(repo.User, deps.Payments, config.Payment, log),
	}
}
