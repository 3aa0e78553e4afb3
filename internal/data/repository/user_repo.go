package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"account-service/internal/data/entity"
	"account-service/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// Credential lifecycle. Every Consume* call is a single conditional UPDATE
	// keyed on the stored hash and expiry; false means nothing matched.
	ConsumeVerification(ctx context.Context, id uuid.UUID, codeHash string, now time.Time) (bool, error)
	SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt, now time.Time) error
	ConsumeReset(ctx context.Context, id uuid.UUID, tokenHash, newPasswordHash string, now time.Time) (bool, error)

	// Subscription fields, written only by the subscription service.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.User, error)
	SetProviderCustomer(ctx context.Context, id uuid.UUID, customerID string, now time.Time) error
	MarkSubscriptionPending(ctx context.Context, id uuid.UUID, reference string, now time.Time) (bool, error)
	ApplySubscriptionStatus(ctx context.Context, id uuid.UUID, reference string, status entity.SubscriptionStatus, from []entity.SubscriptionStatus, now time.Time) (bool, error)

	// WithinTx runs fn against a repository bound to one transaction.
	WithinTx(ctx context.Context, fn func(repo UserRepository) error) error
}

type userRepository struct {
	db   querier
	pool database.PgxIface // nil when bound to a transaction
	log  *zap.Logger
}

func NewUserRepository(db database.PgxIface, log *zap.Logger) UserRepository {
	return &userRepository{
		db:   db,
		pool: db,
		log:  log.With(zap.String("repository", "user")),
	}
}

const userColumns = `
	id, email, password, verified,
	verification_code_hash, verification_expires_at,
	reset_token_hash, reset_expires_at,
	subscription_status, provider_customer_id, provider_subscription_id,
	created_at, updated_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	var user entity.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Verified,
		&user.VerificationCodeHash,
		&user.VerificationExpiresAt,
		&user.ResetTokenHash,
		&user.ResetExpiresAt,
		&user.SubscriptionStatus,
		&user.ProviderCustomerID,
		&user.ProviderSubscriptionID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user record. A unique violation on email is reported as ErrDuplicateEmail.
func (ur *userRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (id, email, password, verified,
		                   verification_code_hash, verification_expires_at,
		                   subscription_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := ur.db.Exec(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Verified,
		user.VerificationCodeHash,
		user.VerificationExpiresAt,
		user.SubscriptionStatus,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		ur.log.Error("Failed to create user", zap.Error(err), zap.String("email", user.Email))
		return fmt.Errorf("create user %s: %w", user.Email, err)
	}

	return nil
}

func (ur *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(ur.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		ur.log.Error("Failed to find user by ID", zap.Error(err), zap.String("user_id", id.String()))
		return nil, fmt.Errorf("find user by ID %s: %w", id.String(), err)
	}

	return user, nil
}

// FindByEmail expects an already normalized (lower-case) email.
func (ur *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(ur.db.QueryRow(ctx, query, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		ur.log.Error("Failed to find user by email", zap.Error(err), zap.String("email", email))
		return nil, fmt.Errorf("find user by email %s: %w", email, err)
	}

	return user, nil
}

func (ur *userRepository) ConsumeVerification(ctx context.Context, id uuid.UUID, codeHash string, now time.Time) (bool, error) {
	query := `
		UPDATE users
		SET verified = TRUE,
		    verification_code_hash = NULL,
		    verification_expires_at = NULL,
		    updated_at = $3
		WHERE id = $1
		  AND verified = FALSE
		  AND verification_code_hash = $2
		  AND verification_expires_at >= $3
	`

	result, err := ur.db.Exec(ctx, query, id, codeHash, now)
	if err != nil {
		ur.log.Error("Failed to consume verification code", zap.Error(err), zap.String("user_id", id.String()))
		return false, fmt.Errorf("consume verification for %s: %w", id.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

// SetResetToken overwrites any outstanding reset token.
func (ur *userRepository) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt, now time.Time) error {
	query := `
		UPDATE users
		SET reset_token_hash = $2, reset_expires_at = $3, updated_at = $4
		WHERE id = $1
	`

	result, err := ur.db.Exec(ctx, query, id, tokenHash, expiresAt, now)
	if err != nil {
		ur.log.Error("Failed to store reset token", zap.Error(err), zap.String("user_id", id.String()))
		return fmt.Errorf("set reset token for %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found", id.String())
	}

	return nil
}

func (ur *userRepository) ConsumeReset(ctx context.Context, id uuid.UUID, tokenHash, newPasswordHash string, now time.Time) (bool, error) {
	query := `
		UPDATE users
		SET password = $3,
		    reset_token_hash = NULL,
		    reset_expires_at = NULL,
		    updated_at = $4
		WHERE id = $1
		  AND reset_token_hash = $2
		  AND reset_expires_at >= $4
	`

	result, err := ur.db.Exec(ctx, query, id, tokenHash, newPasswordHash, now)
	if err != nil {
		ur.log.Error("Failed to consume reset token", zap.Error(err), zap.String("user_id", id.String()))
		return false, fmt.Errorf("consume reset for %s: %w", id.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

// FindByIDForUpdate locks the row until the surrounding transaction ends.
func (ur *userRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`

	user, err := scanUser(ur.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		ur.log.Error("Failed to lock user", zap.Error(err), zap.String("user_id", id.String()))
		return nil, fmt.Errorf("lock user %s: %w", id.String(), err)
	}

	return user, nil
}

// SetProviderCustomer stores the customer reference once; an existing value is kept.
func (ur *userRepository) SetProviderCustomer(ctx context.Context, id uuid.UUID, customerID string, now time.Time) error {
	query := `
		UPDATE users
		SET provider_customer_id = $2, updated_at = $3
		WHERE id = $1 AND provider_customer_id IS NULL
	`

	result, err := ur.db.Exec(ctx, query, id, customerID, now)
	if err != nil {
		ur.log.Error("Failed to store provider customer", zap.Error(err), zap.String("user_id", id.String()))
		return fmt.Errorf("set provider customer for %s: %w", id.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("user %s not found or customer already set", id.String())
	}

	return nil
}

// MarkSubscriptionPending moves inactive -> pending and records the provider reference together.
func (ur *userRepository) MarkSubscriptionPending(ctx context.Context, id uuid.UUID, reference string, now time.Time) (bool, error) {
	query := `
		UPDATE users
		SET subscription_status = $2, provider_subscription_id = $3, updated_at = $4
		WHERE id = $1 AND subscription_status = $5
	`

	result, err := ur.db.Exec(ctx, query, id, entity.SubscriptionPending, reference, now, entity.SubscriptionInactive)
	if err != nil {
		ur.log.Error("Failed to mark subscription pending", zap.Error(err), zap.String("user_id", id.String()))
		return false, fmt.Errorf("mark subscription pending for %s: %w", id.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

// ApplySubscriptionStatus sets status only when the row still carries reference
// and its current status is one of from.
func (ur *userRepository) ApplySubscriptionStatus(
	ctx context.Context,
	id uuid.UUID,
	reference string,
	status entity.SubscriptionStatus,
	from []entity.SubscriptionStatus,
	now time.Time,
) (bool, error) {
	query := `
		UPDATE users
		SET subscription_status = $3, updated_at = $4
		WHERE id = $1
		  AND provider_subscription_id = $2
		  AND subscription_status = ANY($5)
	`

	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	result, err := ur.db.Exec(ctx, query, id, reference, status, now, allowed)
	if err != nil {
		ur.log.Error("Failed to apply subscription status",
			zap.Error(err),
			zap.String("user_id", id.String()),
			zap.String("status", string(status)),
		)
		return false, fmt.Errorf("apply subscription status for %s: %w", id.String(), err)
	}

	return result.RowsAffected() == 1, nil
}

func (ur *userRepository) WithinTx(ctx context.Context, fn func(repo UserRepository) error) error {
	if ur.pool == nil {
		return ErrNestedTx
	}

	return database.WithTx(ctx, ur.pool, func(tx pgx.Tx) error {
		return fn(&userRepository{db: tx, log: ur.log})
	})
}
