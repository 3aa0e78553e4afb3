package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"account-service/internal/data/entity"
	"account-service/internal/data/repository"
	"account-service/internal/dto/request"
	"account-service/internal/dto/response"
	"account-service/pkg/metrics"
	"account-service/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Attempt limiter scopes
const (
	scopeVerifyEmail   = "verify_email"
	scopeResetPassword = "reset_password"
)

type AuthService interface {
	Register(ctx context.Context, req *request.RegisterRequest) (*response.RegisterResponse, error)
	VerifyEmail(ctx context.Context, req *request.VerifyEmailRequest) (*response.MessageResponse, error)
	Login(ctx context.Context, req *request.LoginRequest) (*response.AuthResponse, error)
	Logout(ctx context.Context, token string) error
	RequestPasswordReset(ctx context.Context, req *request.ForgotPasswordRequest) (*response.PasswordResetResponse, error)
	ResetPassword(ctx context.Context, req *request.ResetPasswordRequest) (*response.MessageResponse, error)
}

// AttemptLimiter counts wrong codes per scope and email. Implementations must
// be safe for concurrent use.
type AttemptLimiter interface {
	Locked(ctx context.Context, scope, email string) (bool, error)
	RegisterFailure(ctx context.Context, scope, email string) error
	Reset(ctx context.Context, scope, email string) error
}

type authService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	hasher   utils.SecretHasher
	codes    utils.CodeGenerator
	notifier Notifier
	limiter  AttemptLimiter // optional
	config   utils.AuthConfig
	log      *zap.Logger
	now      func() time.Time

	// compared against when the email is unknown so both login failures cost one hash check
	dummyHash string
}

func NewAuthService(
	repo *repository.Repository,
	hasher utils.SecretHasher,
	codes utils.CodeGenerator,
	notifier Notifier,
	limiter AttemptLimiter,
	config utils.AuthConfig,
	log *zap.Logger,
) AuthService {
	s := &authService{
		users:    repo.User,
		sessions: repo.Session,
		hasher:   hasher,
		codes:    codes,
		notifier: notifier,
		limiter:  limiter,
		config:   config,
		log:      log.With(zap.String("service", "auth")),
		now:      time.Now,
	}

	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		s.log.Warn("Failed to prepare dummy password hash", zap.Error(err))
	}
	s.dummyHash = dummy

	return s
}

func (s *authService) Register(ctx context.Context, req *request.RegisterRequest) (*response.RegisterResponse, error) {
	// 1. Validate input
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Register validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("%w: %s", ErrValidation, utils.FormatValidationErrors(errs))
	}
	email := normalizeEmail(req.Email)

	// 2. Check email is free
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		metrics.AuthEventsTotal.WithLabelValues("register", "duplicate").Inc()
		return nil, ErrDuplicateEmail
	}

	// 3. Hash password and verification code
	passwordHash, err := s.hasher.Hash(req.Password)
	if errors.Is(err, utils.ErrSecretTooLong) {
		return nil, fmt.Errorf("%w: password: %w", ErrValidation, err)
	}
	if err != nil {
		s.log.Error("Failed to hash password", zap.Error(err))
		return nil, fmt.Errorf("failed to process password: %w", err)
	}

	code, codeHash, err := s.newCode()
	if err != nil {
		return nil, err
	}

	// 4. Persist user
	now := s.now()
	expiresAt := now.Add(s.config.VerificationTTL)
	user := &entity.User{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        utils.GenerateUUID(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Email:                 email,
		PasswordHash:          passwordHash,
		Verified:              false,
		VerificationCodeHash:  &codeHash,
		VerificationExpiresAt: &expiresAt,
		SubscriptionStatus:    entity.SubscriptionInactive,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			metrics.AuthEventsTotal.WithLabelValues("register", "duplicate").Inc()
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	// 5. Deliver code, the account stays registered whatever the outcome
	sent := s.notifier.SendVerificationCode(ctx, email, code, s.config.VerificationTTL) == nil

	metrics.AuthEventsTotal.WithLabelValues("register", "ok").Inc()
	s.log.Info("User registered",
		zap.String("user_id", user.ID.String()),
		zap.String("email", email),
		zap.Bool("notification_sent", sent),
	)

	message := "Account created. Check your e-mail for the verification code."
	if !sent {
		message = "Account created, but the verification e-mail could not be sent."
	}

	return &response.RegisterResponse{
		UserID:                user.ID.String(),
		Email:                 email,
		VerificationExpiresAt: expiresAt,
		NotificationSent:      sent,
		Message:               message,
	}, nil
}

func (s *authService) VerifyEmail(ctx context.Context, req *request.VerifyEmailRequest) (*response.MessageResponse, error) {
	// 1. Validate
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Verify email validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("%w: %s", ErrValidation, utils.FormatValidationErrors(errs))
	}
	email := normalizeEmail(req.Email)

	if s.locked(ctx, scopeVerifyEmail, email) {
		metrics.AuthEventsTotal.WithLabelValues("verify_email", "locked").Inc()
		return nil, ErrTooManyAttempts
	}

	// 2. Find user
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.Verified {
		return nil, ErrAlreadyVerified
	}
	if !user.HasPendingVerification() {
		return nil, ErrCodeMismatch
	}

	// 3. Expiry first, then the code itself
	now := s.now()
	if now.After(*user.VerificationExpiresAt) {
		metrics.AuthEventsTotal.WithLabelValues("verify_email", "expired").Inc()
		return nil, ErrCodeExpired
	}
	if !s.hasher.Verify(req.Code, *user.VerificationCodeHash) {
		s.registerFailure(ctx, scopeVerifyEmail, email)
		metrics.AuthEventsTotal.WithLabelValues("verify_email", "mismatch").Inc()
		return nil, ErrCodeMismatch
	}

	// 4. Consume, a concurrent winner leaves nothing to match
	ok, err := s.users.ConsumeVerification(ctx, user.ID, *user.VerificationCodeHash, now)
	if err != nil {
		return nil, fmt.Errorf("failed to verify email: %w", err)
	}
	if !ok {
		return nil, ErrCodeMismatch
	}

	s.resetAttempts(ctx, scopeVerifyEmail, email)
	metrics.AuthEventsTotal.WithLabelValues("verify_email", "ok").Inc()
	s.log.Info("Email verified", zap.String("user_id", user.ID.String()), zap.String("email", email))

	return &response.MessageResponse{Message: "E-mail verified. You can log in now."}, nil
}

func (s *authService) Login(ctx context.Context, req *request.LoginRequest) (*response.AuthResponse, error) {
	// 1. Validate
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Login validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("%w: %s", ErrValidation, utils.FormatValidationErrors(errs))
	}
	email := normalizeEmail(req.Email)

	// 2. Find user
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		s.hasher.Verify(req.Password, s.dummyHash)
		metrics.AuthEventsTotal.WithLabelValues("login", "invalid_credentials").Inc()
		s.log.Warn("Login for unknown email", zap.String("email", email))
		return nil, ErrInvalidCredentials
	}

	// 3. Check password, then verification state
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		metrics.AuthEventsTotal.WithLabelValues("login", "invalid_credentials").Inc()
		s.log.Warn("Invalid password", zap.String("user_id", user.ID.String()))
		return nil, ErrInvalidCredentials
	}
	if !user.Verified {
		metrics.AuthEventsTotal.WithLabelValues("login", "not_verified").Inc()
		return nil, ErrNotVerified
	}

	// 4. Create session
	session, err := s.createSession(ctx, user.ID, req)
	if err != nil {
		s.log.Error("Failed to create session", zap.Error(err), zap.String("user_id", user.ID.String()))
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	metrics.AuthEventsTotal.WithLabelValues("login", "ok").Inc()
	s.log.Info("User logged in",
		zap.String("user_id", user.ID.String()),
		zap.Bool("remember_me", session.RememberMe),
	)

	resp := response.AuthToResponse(user, session)
	return &resp, nil
}

func (s *authService) Logout(ctx context.Context, token string) error {
	tokenUUID, err := uuid.Parse(token)
	if err != nil {
		return fmt.Errorf("%w: invalid token format", ErrValidation)
	}

	principal, err := s.sessions.FindPrincipal(ctx, tokenUUID)
	if err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}

	if err := s.sessions.Revoke(ctx, tokenUUID); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to logout: %w", err)
	}

	fields := []zap.Field{}
	if principal != nil {
		fields = append(fields, zap.String("user_id", principal.UserID.String()))
	}
	s.log.Info("User logged out", fields...)
	return nil
}

func (s *authService) RequestPasswordReset(ctx context.Context, req *request.ForgotPasswordRequest) (*response.PasswordResetResponse, error) {
	// 1. Validate
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Forgot password validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("%w: %s", ErrValidation, utils.FormatValidationErrors(errs))
	}
	email := normalizeEmail(req.Email)

	// 2. Find user
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		metrics.AuthEventsTotal.WithLabelValues("forgot_password", "unknown_email").Inc()
		return nil, ErrUserNotFound
	}
	if s.config.RequireVerifiedForReset && !user.Verified {
		metrics.AuthEventsTotal.WithLabelValues("forgot_password", "not_verified").Inc()
		return nil, ErrNotVerified
	}

	// 3. Issue token, replacing any outstanding one
	code, codeHash, err := s.newCode()
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(s.config.ResetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, codeHash, expiresAt, now); err != nil {
		return nil, fmt.Errorf("failed to store reset token: %w", err)
	}

	// 4. Deliver code
	sent := s.notifier.SendPasswordResetCode(ctx, email, code, s.config.ResetTTL) == nil

	metrics.AuthEventsTotal.WithLabelValues("forgot_password", "ok").Inc()
	s.log.Info("Password reset requested",
		zap.String("user_id", user.ID.String()),
		zap.Bool("notification_sent", sent),
	)

	message := "A reset code was sent to your e-mail."
	if !sent {
		message = "A reset code was issued, but the e-mail could not be sent."
	}

	return &response.PasswordResetResponse{
		Email:            email,
		ExpiresAt:        expiresAt,
		NotificationSent: sent,
		Message:          message,
	}, nil
}

func (s *authService) ResetPassword(ctx context.Context, req *request.ResetPasswordRequest) (*response.MessageResponse, error) {
	// 1. Validate
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Reset password validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("%w: %s", ErrValidation, utils.FormatValidationErrors(errs))
	}
	email := normalizeEmail(req.Email)

	if s.locked(ctx, scopeResetPassword, email) {
		metrics.AuthEventsTotal.WithLabelValues("reset_password", "locked").Inc()
		return nil, ErrTooManyAttempts
	}

	// 2. Find user with a reset in flight
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.HasResetInFlight() {
		return nil, ErrNoResetInFlight
	}

	// 3. Expiry, then the code
	now := s.now()
	if now.After(*user.ResetExpiresAt) {
		metrics.AuthEventsTotal.WithLabelValues("reset_password", "expired").Inc()
		return nil, ErrCodeExpired
	}
	if !s.hasher.Verify(req.Code, *user.ResetTokenHash) {
		s.registerFailure(ctx, scopeResetPassword, email)
		metrics.AuthEventsTotal.WithLabelValues("reset_password", "mismatch").Inc()
		return nil, ErrCodeMismatch
	}

	// 4. Swap password and clear the token in one statement
	newHash, err := s.hasher.Hash(req.NewPassword)
	if errors.Is(err, utils.ErrSecretTooLong) {
		return nil, fmt.Errorf("%w: new_password: %w", ErrValidation, err)
	}
	if err != nil {
		s.log.Error("Failed to hash password", zap.Error(err))
		return nil, fmt.Errorf("failed to process password: %w", err)
	}

	ok, err := s.users.ConsumeReset(ctx, user.ID, *user.ResetTokenHash, newHash, now)
	if err != nil {
		return nil, fmt.Errorf("failed to reset password: %w", err)
	}
	if !ok {
		metrics.AuthEventsTotal.WithLabelValues("reset_password", "consumed").Inc()
		return nil, ErrCodeMismatch
	}

	// 5. Existing sessions were opened with the old password
	if err := s.sessions.RevokeAllUserSessions(ctx, user.ID); err != nil {
		s.log.Warn("Failed to revoke sessions after reset", zap.Error(err), zap.String("user_id", user.ID.String()))
	}

	s.resetAttempts(ctx, scopeResetPassword, email)
	metrics.AuthEventsTotal.WithLabelValues("reset_password", "ok").Inc()
	s.log.Info("Password reset", zap.String("user_id", user.ID.String()))

	return &response.MessageResponse{Message: "Password updated. You can log in with the new password."}, nil
}

// ==================== HELPER METHODS ====================

func (s *authService) newCode() (code, codeHash string, err error) {
	code, err = s.codes.Next()
	if err != nil {
		s.log.Error("Failed to generate code", zap.Error(err))
		return "", "", fmt.Errorf("failed to generate code: %w", err)
	}

	codeHash, err = s.hasher.Hash(code)
	if err != nil {
		s.log.Error("Failed to hash code", zap.Error(err))
		return "", "", fmt.Errorf("failed to process code: %w", err)
	}

	return code, codeHash, nil
}

func (s *authService) createSession(ctx context.Context, userID uuid.UUID, req *request.LoginRequest) (*entity.Session, error) {
	ttl := s.config.SessionTTL
	if req.RememberMe {
		ttl = s.config.RememberMeTTL
	}

	now := s.now()
	session := &entity.Session{
		BaseSimple: entity.BaseSimple{
			ID:        utils.GenerateUUID(),
			CreatedAt: now,
		},
		UserID:     userID,
		Token:      utils.GenerateSessionToken(),
		RememberMe: req.RememberMe,
		ExpiresAt:  now.Add(ttl),
	}
	if req.UserAgent != "" {
		session.UserAgent = &req.UserAgent
	}
	if req.IPAddress != "" {
		session.IPAddress = &req.IPAddress
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

// Limiter failures never block the caller.

func (s *authService) locked(ctx context.Context, scope, email string) bool {
	if s.limiter == nil {
		return false
	}
	locked, err := s.limiter.Locked(ctx, scope, email)
	if err != nil {
		s.log.Warn("Attempt limiter unavailable", zap.Error(err), zap.String("scope", scope))
		return false
	}
	return locked
}

func (s *authService) registerFailure(ctx context.Context, scope, email string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RegisterFailure(ctx, scope, email); err != nil {
		s.log.Warn("Failed to register code attempt", zap.Error(err), zap.String("scope", scope))
	}
}

func (s *authService) resetAttempts(ctx context.Context, scope, email string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Reset(ctx, scope, email); err != nil {
		s.log.Warn("Failed to reset code attempts", zap.Error(err), zap.String("scope", scope))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
