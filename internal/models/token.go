package models

import "time"

// RefreshToken represents a persisted refresh token session.
type RefreshToken struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Token     string     `db:"token" json:"token"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	IPAddress string     `db:"ip_address" json:"ip_address"`
	UserAgent string     `db:"user_agent" json:"user_agent"`
}

// EmailVerification is a single-use token proving mailbox ownership.
// Tokens expire a fixed window after creation.
type EmailVerification struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"user_id"`
	Token      string     `db:"token" json:"token"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	VerifiedAt *time.Time `db:"verified_at" json:"verified_at,omitempty"`
}

// Expired reports whether the token is past its validity window.
func (v *EmailVerification) Expired(now time.Time, window time.Duration) bool {
	return now.After(v.CreatedAt.Add(window))
}

// Consumed reports whether the token was already used.
func (v *EmailVerification) Consumed() bool {
	return v.VerifiedAt != nil
}

// PasswordRecovery is a single-use token authorizing a password reset.
type PasswordRecovery struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Token     string     `db:"token" json:"token"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
}

// Expired reports whether the token is past its validity window.
func (r *PasswordRecovery) Expired(now time.Time, window time.Duration) bool {
	return now.After(r.CreatedAt.Add(window))
}

// Consumed reports whether the token was already used.
func (r *PasswordRecovery) Consumed() bool {
	return r.UsedAt != nil
}
