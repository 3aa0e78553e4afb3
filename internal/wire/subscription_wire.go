package wire

import (
	"account-service/internal/adaptor"
	"account-service/internal/data/repository"
	"account-service/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// wireSubscription mounts the subscription routes. All of them need a session;
// the success route also accepts the session cookie set at login.
func wireSubscription(
	r chi.Router,
	subscriptionHandler *adaptor.SubscriptionHandler,
	repo *repository.Repository,
	log *zap.Logger,
) {
	r.With(middleware.RequireSession(repo.Session, log)).Route("/api/subscription", func(r chi.Router) {
		r.Post("/", subscriptionHandler.Create)
		r.Get("/", subscriptionHandler.Status)
		r.Get("/success", subscriptionHandler.Success)
	})
}
