package entity

import "time"

type SubscriptionStatus string

const (
	SubscriptionInactive SubscriptionStatus = "inactive"
	SubscriptionPending  SubscriptionStatus = "pending"
	SubscriptionActive   SubscriptionStatus = "active"
)

// Valid reports whether s is one of the known statuses.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionInactive, SubscriptionPending, SubscriptionActive:
		return true
	}
	return false
}

type User struct {
	BaseNoDelete
	Email                  string             `db:"email"`
	PasswordHash           string             `db:"password"`
	Verified               bool               `db:"verified"`
	VerificationCodeHash   *string            `db:"verification_code_hash"`
	VerificationExpiresAt  *time.Time         `db:"verification_expires_at"`
	ResetTokenHash         *string            `db:"reset_token_hash"`
	ResetExpiresAt         *time.Time         `db:"reset_expires_at"`
	SubscriptionStatus     SubscriptionStatus `db:"subscription_status"`
	ProviderCustomerID     *string            `db:"provider_customer_id"`
	ProviderSubscriptionID *string            `db:"provider_subscription_id"`
}

// HasPendingVerification reports whether a verification code is outstanding.
func (u *User) HasPendingVerification() bool {
	return u.VerificationCodeHash != nil && u.VerificationExpiresAt != nil
}

// HasResetInFlight reports whether a password reset code is outstanding.
func (u *User) HasResetInFlight() bool {
	return u.ResetTokenHash != nil && u.ResetExpiresAt != nil
}
