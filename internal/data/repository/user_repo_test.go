package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"account-service/internal/data/entity"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var userRowColumns = []string{
	"id", "email", "password", "verified",
	"verification_code_hash", "verification_expires_at",
	"reset_token_hash", "reset_expires_at",
	"subscription_status", "provider_customer_id", "provider_subscription_id",
	"created_at", "updated_at",
}

func newUserRepo(t *testing.T) (UserRepository, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewUserRepository(mock, zap.NewNop()), mock
}

func TestUserRepository_CreateDuplicateEmail(t *testing.T) {
	repo, mock := newUserRepo(t)
	now := time.Now()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(
			pgxmock.AnyArg(), "a@x.com", "hash", false,
			pgxmock.AnyArg(), pgxmock.AnyArg(),
			entity.SubscriptionInactive, pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	err := repo.Create(context.Background(), &entity.User{
		BaseNoDelete:       entity.BaseNoDelete{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Email:              "a@x.com",
		PasswordHash:       "hash",
		SubscriptionStatus: entity.SubscriptionInactive,
	})

	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_FindByEmail(t *testing.T) {
	repo, mock := newUserRepo(t)
	ctx := context.Background()

	id := uuid.New()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	codeHash := "code-hash"
	expires := now.Add(24 * time.Hour)

	mock.ExpectQuery("(?s)SELECT .* FROM users WHERE email = \\$1").
		WithArgs("a@x.com").
		WillReturnRows(pgxmock.NewRows(userRowColumns).AddRow(
			id, "a@x.com", "pw-hash", false,
			&codeHash, &expires,
			(*string)(nil), (*time.Time)(nil),
			entity.SubscriptionInactive, (*string)(nil), (*string)(nil),
			now, now,
		))

	user, err := repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotNil(t, user)

	assert.Equal(t, id, user.ID)
	assert.False(t, user.Verified)
	assert.True(t, user.HasPendingVerification())
	assert.False(t, user.HasResetInFlight())
	assert.Equal(t, entity.SubscriptionInactive, user.SubscriptionStatus)

	mock.ExpectQuery("(?s)SELECT .* FROM users WHERE email = \\$1").
		WithArgs("ghost@x.com").
		WillReturnRows(pgxmock.NewRows(userRowColumns))

	user, err = repo.FindByEmail(ctx, "ghost@x.com")
	require.NoError(t, err)
	assert.Nil(t, user)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ConsumeVerification(t *testing.T) {
	repo, mock := newUserRepo(t)
	ctx := context.Background()
	id := uuid.New()
	now := time.Now()

	mock.ExpectExec("UPDATE users").
		WithArgs(id, "code-hash", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE users").
		WithArgs(id, "code-hash", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.ConsumeVerification(ctx, id, "code-hash", now)
	require.NoError(t, err)
	assert.True(t, ok)

	// second call finds the code already cleared
	ok, err = repo.ConsumeVerification(ctx, id, "code-hash", now)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ConsumeResetError(t *testing.T) {
	repo, mock := newUserRepo(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectExec("UPDATE users").
		WithArgs(id, "token-hash", "new-hash", now).
		WillReturnError(errors.New("connection reset"))

	ok, err := repo.ConsumeReset(context.Background(), id, "token-hash", "new-hash", now)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_ApplySubscriptionStatus(t *testing.T) {
	repo, mock := newUserRepo(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectExec("UPDATE users").
		WithArgs(id, "cs_test_1", entity.SubscriptionActive, now, []string{"pending", "active"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.ApplySubscriptionStatus(context.Background(), id, "cs_test_1", entity.SubscriptionActive,
		[]entity.SubscriptionStatus{entity.SubscriptionPending, entity.SubscriptionActive}, now)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_WithinTx(t *testing.T) {
	repo, mock := newUserRepo(t)
	ctx := context.Background()
	id := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").
		WithArgs(id, "cus_1", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectRollback()

	err := repo.WithinTx(ctx, func(tx UserRepository) error {
		if err := tx.SetProviderCustomer(ctx, id, "cus_1", now); err != nil {
			return err
		}
		// a transaction-bound repository cannot open another one
		return tx.WithinTx(ctx, func(UserRepository) error { return nil })
	})

	assert.ErrorIs(t, err, ErrNestedTx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_WithinTxCommits(t *testing.T) {
	repo, mock := newUserRepo(t)
	ctx := context.Background()
	id := uuid.New()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").
		WithArgs(id, entity.SubscriptionPending, "cs_test_1", now, entity.SubscriptionInactive).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := repo.WithinTx(ctx, func(tx UserRepository) error {
		ok, err := tx.MarkSubscriptionPending(ctx, id, "cs_test_1", now)
		if err != nil {
			return err
		}
		assert.True(t, ok)
		return nil
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
