package utils

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Email    EmailConfig
	Auth     AuthConfig
	Payment  PaymentConfig
}

type AppConfig struct {
	Name           string
	Port           string
	Debug          bool
	LogPath        string
	BaseURL        string
	RequestTimeout time.Duration
}

type DatabaseConfig struct {
	Host        string
	Port        string
	Name        string
	User        string
	Password    string
	SSLMode     string
	MaxConns    int32
	AutoMigrate bool
}

type RedisConfig struct {
	Addr string
	DB   int
}

// Enabled reports whether an attempt limiter backend is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Enabled reports whether SMTP delivery is configured. Without it codes are only logged.
func (e EmailConfig) Enabled() bool {
	return e.Host != "" && e.Port != 0 && e.From != ""
}

type AuthConfig struct {
	BcryptCost              int
	VerificationTTL         time.Duration
	ResetTTL                time.Duration
	SessionTTL              time.Duration
	RememberMeTTL           time.Duration
	RequireVerifiedForReset bool
	MaxCodeAttempts         int
	AttemptWindow           time.Duration
}

type PaymentConfig struct {
	Provider         string
	StripeSecretKey  string
	StripePriceID    string
	MercadoPagoToken string
	PlanReason       string
	PlanAmount       float64
	PlanCurrency     string
	Timeout          time.Duration
}

const (
	PaymentProviderStripe      = "stripe"
	PaymentProviderMercadoPago = "mercadopago"
)

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "account-service")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("BASE_URL", "http://localhost:8080")
	viper.SetDefault("REQUEST_TIMEOUT", "30s")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("DB_AUTO_MIGRATE", true)

	viper.SetDefault("REDIS_DB", 0)

	viper.SetDefault("SMTP_PORT", 587)

	viper.SetDefault("BCRYPT_COST", 12)
	viper.SetDefault("VERIFICATION_TTL", "24h")
	viper.SetDefault("RESET_TTL", "1h")
	viper.SetDefault("SESSION_TTL", "1h")
	viper.SetDefault("REMEMBER_ME_TTL", "720h")
	viper.SetDefault("REQUIRE_VERIFIED_FOR_RESET", true)
	viper.SetDefault("MAX_CODE_ATTEMPTS", 5)
	viper.SetDefault("CODE_ATTEMPT_WINDOW", "15m")

	viper.SetDefault("PAYMENT_PROVIDER", PaymentProviderStripe)
	viper.SetDefault("PLAN_REASON", "Monthly subscription")
	viper.SetDefault("PLAN_AMOUNT", 29.90)
	viper.SetDefault("PLAN_CURRENCY", "BRL")
	viper.SetDefault("PAYMENT_TIMEOUT", "15s")

	// .env is optional, the environment always wins
	if _, err := os.Stat(".env"); err == nil {
		if err := viper.ReadInConfig(); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:           viper.GetString("APP_NAME"),
			Port:           viper.GetString("PORT"),
			Debug:          viper.GetBool("DEBUG"),
			LogPath:        viper.GetString("LOG_PATH"),
			BaseURL:        viper.GetString("BASE_URL"),
			RequestTimeout: viper.GetDuration("REQUEST_TIMEOUT"),
		},
		Database: DatabaseConfig{
			Host:        viper.GetString("DB_HOST"),
			Port:        viper.GetString("DB_PORT"),
			Name:        viper.GetString("DB_NAME"),
			User:        viper.GetString("DB_USER"),
			Password:    viper.GetString("DB_PASS"),
			SSLMode:     viper.GetString("DB_SSLMODE"),
			MaxConns:    viper.GetInt32("DB_MAX_CONNS"),
			AutoMigrate: viper.GetBool("DB_AUTO_MIGRATE"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		Email: EmailConfig{
			Host:     viper.GetString("SMTP_HOST"),
			Port:     viper.GetInt("SMTP_PORT"),
			User:     viper.GetString("SMTP_USER"),
			Password: viper.GetString("SMTP_PASS"),
			From:     viper.GetString("EMAIL_FROM"),
		},
		Auth: AuthConfig{
			BcryptCost:              viper.GetInt("BCRYPT_COST"),
			VerificationTTL:         viper.GetDuration("VERIFICATION_TTL"),
			ResetTTL:                viper.GetDuration("RESET_TTL"),
			SessionTTL:              viper.GetDuration("SESSION_TTL"),
			RememberMeTTL:           viper.GetDuration("REMEMBER_ME_TTL"),
			RequireVerifiedForReset: viper.GetBool("REQUIRE_VERIFIED_FOR_RESET"),
			MaxCodeAttempts:         viper.GetInt("MAX_CODE_ATTEMPTS"),
			AttemptWindow:           viper.GetDuration("CODE_ATTEMPT_WINDOW"),
		},
		Payment: PaymentConfig{
			Provider:         viper.GetString("PAYMENT_PROVIDER"),
			StripeSecretKey:  viper.GetString("STRIPE_SECRET_KEY"),
			StripePriceID:    viper.GetString("STRIPE_PRICE_ID"),
			MercadoPagoToken: viper.GetString("MERCADOPAGO_ACCESS_TOKEN"),
			PlanReason:       viper.GetString("PLAN_REASON"),
			PlanAmount:       viper.GetFloat64("PLAN_AMOUNT"),
			PlanCurrency:     viper.GetString("PLAN_CURRENCY"),
			Timeout:          viper.GetDuration("PAYMENT_TIMEOUT"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.Database.Name == "" || c.Database.User == "" {
		return fmt.Errorf("DB_NAME and DB_USER are required")
	}
	if c.Auth.VerificationTTL <= 0 || c.Auth.ResetTTL <= 0 {
		return fmt.Errorf("VERIFICATION_TTL and RESET_TTL must be positive")
	}
	if c.Auth.SessionTTL <= 0 || c.Auth.RememberMeTTL < c.Auth.SessionTTL {
		return fmt.Errorf("SESSION_TTL must be positive and not longer than REMEMBER_ME_TTL")
	}

	switch c.Payment.Provider {
	case PaymentProviderStripe:
		if c.Payment.StripeSecretKey == "" || c.Payment.StripePriceID == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY and STRIPE_PRICE_ID are required for the stripe provider")
		}
	case PaymentProviderMercadoPago:
		if c.Payment.MercadoPagoToken == "" {
			return fmt.Errorf("MERCADOPAGO_ACCESS_TOKEN is required for the mercadopago provider")
		}
		if c.Payment.PlanAmount <= 0 || c.Payment.PlanCurrency == "" {
			return fmt.Errorf("PLAN_AMOUNT and PLAN_CURRENCY are required for the mercadopago provider")
		}
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.Payment.Provider)
	}

	return nil
}
