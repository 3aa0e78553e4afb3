package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"account-service/cmd"
	"account-service/internal/data/migrations"
	"account-service/internal/data/repository"
	"account-service/internal/usecase"
	"account-service/internal/wire"
	"account-service/pkg/database"
	"account-service/pkg/mailer"
	"account-service/pkg/payment"
	"account-service/pkg/ratelimit"
	"account-service/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
		zap.String("payment_provider", config.Payment.Provider),
	)

	ctx := context.Background()

	// Schema first, the pool only sees a migrated database
	if config.Database.AutoMigrate {
		if err := database.Migrate(ctx, config.Database, migrations.FS); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Database migrated")
	}

	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	repos := repository.NewRepository(db, logger)

	cleanCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if removed, err := repos.Session.CleanExpiredSessions(cleanCtx); err != nil {
		logger.Warn("Failed to clean expired sessions", zap.Error(err))
	} else {
		logger.Info("Expired sessions cleaned", zap.Int64("removed", removed))
	}
	cancel()

	provider, err := newPaymentProvider(config)
	if err != nil {
		logger.Fatal("Failed to init payment provider", zap.Error(err))
	}

	deps := usecase.Dependencies{
		Hasher:   utils.NewBcryptHasher(config.Auth.BcryptCost),
		Codes:    utils.NewCodeGenerator(),
		Mailer:   mailer.New(config.Email, logger),
		Payments: provider,
	}

	if config.Redis.Enabled() {
		client, err := ratelimit.Connect(ctx, config.Redis.Addr, config.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer client.Close()

		deps.Limiter = ratelimit.NewAttemptLimiter(client, config.Auth.MaxCodeAttempts, config.Auth.AttemptWindow)
		logger.Info("Code attempt limiter enabled", zap.Int("max_attempts", config.Auth.MaxCodeAttempts))
	} else {
		logger.Warn("REDIS_ADDR not set, code attempts are not limited")
	}

	// Wire all dependencies
	app := wire.Wiring(repos, deps, config, logger)

	if err := cmd.APIServer(app.Router, config.App.Port, logger); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

func newPaymentProvider(config *utils.Config) (payment.Provider, error) {
	switch config.Payment.Provider {
	case utils.PaymentProviderStripe:
		return payment.NewStripeProvider(config.Payment.StripeSecretKey, config.App.BaseURL), nil
	case utils.PaymentProviderMercadoPago:
		return payment.NewMercadoPagoProvider(config.Payment.MercadoPagoToken, config.App.BaseURL)
	default:
		return nil, fmt.Errorf("unknown payment provider %q", config.Payment.Provider)
	}
}
