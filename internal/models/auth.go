package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest carries the credentials for a login attempt. IP and
// UserAgent are filled by the handler, never by the client.
type LoginRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
	User         UserInfo  `json:"user"`
}

// UserInfo is the public shape of the authenticated account.
type UserInfo struct {
	ID               string   `json:"id"`
	Email            string   `json:"email"`
	Role             UserRole `json:"role"`
	EmailVerified    bool     `json:"email_verified"`
	RepresentativeID *string  `json:"representative_id,omitempty"`
	FullName         *string  `json:"full_name,omitempty"`
}

// RefreshTokenRequest carries a refresh token to exchange.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse is returned on a successful token refresh.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// RegisterRequest creates a representative account together with its profile.
type RegisterRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	FirstName  string `json:"first_name" binding:"required"`
	LastName   string `json:"last_name" binding:"required"`
	NationalID string `json:"national_id" binding:"required"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
}

// ChangePasswordRequest is used by an authenticated user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

// ForgotPasswordRequest starts the recovery flow for an email.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest completes the recovery flow with a token.
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// JWTClaims is the access token payload. RepresentativeID is set for
// representative accounts so ownership checks need no extra lookup.
type JWTClaims struct {
	UserID           string   `json:"user_id"`
	Email            string   `json:"email"`
	Role             UserRole `json:"role"`
	RepresentativeID string   `json:"representative_id,omitempty"`
	jwt.RegisteredClaims
}
