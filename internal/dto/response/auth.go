package response

import (
	"time"

	"account-service/internal/data/entity"
)

// RegisterResponse reports the committed account. NotificationSent is false when
// the verification mail could not be delivered; the account exists regardless.
type RegisterResponse struct {
	UserID                string    `json:"user_id"`
	Email                 string    `json:"email"`
	VerificationExpiresAt time.Time `json:"verification_expires_at"`
	NotificationSent      bool      `json:"notification_sent"`
	Message               string    `json:"message"`
}

type PasswordResetResponse struct {
	Email            string    `json:"email"`
	ExpiresAt        time.Time `json:"expires_at"`
	NotificationSent bool      `json:"notification_sent"`
	Message          string    `json:"message"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type AuthResponse struct {
	UserID             string                    `json:"user_id"`
	Email              string                    `json:"email"`
	Token              string                    `json:"token"`
	ExpiresAt          time.Time                 `json:"expires_at"`
	RememberMe         bool                      `json:"remember_me"`
	IsVerified         bool                      `json:"is_verified"`
	SubscriptionStatus entity.SubscriptionStatus `json:"subscription_status"`
}

type UserResponse struct {
	ID                 string                    `json:"id"`
	Email              string                    `json:"email"`
	IsVerified         bool                      `json:"is_verified"`
	SubscriptionStatus entity.SubscriptionStatus `json:"subscription_status"`
	CreatedAt          time.Time                 `json:"created_at"`
}

// Helper converters
func UserToResponse(user *entity.User) UserResponse {
	return UserResponse{
		ID:                 user.ID.String(),
		Email:              user.Email,
		IsVerified:         user.Verified,
		SubscriptionStatus: user.SubscriptionStatus,
		CreatedAt:          user.CreatedAt,
	}
}

func AuthToResponse(user *entity.User, session *entity.Session) AuthResponse {
	resp := AuthResponse{
		UserID:             user.ID.String(),
		Email:              user.Email,
		IsVerified:         user.Verified,
		SubscriptionStatus: user.SubscriptionStatus,
	}

	if session != nil {
		resp.Token = session.Token.String()
		resp.ExpiresAt = session.ExpiresAt
		resp.RememberMe = session.RememberMe
	}

	return resp
}
