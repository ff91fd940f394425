package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nucleo-eljunko/comodato-api/internal/codes"
	"github.com/nucleo-eljunko/comodato-api/internal/models"
	"github.com/nucleo-eljunko/comodato-api/internal/validation"
	appErrors "github.com/nucleo-eljunko/comodato-api/pkg/errors"
	"github.com/nucleo-eljunko/comodato-api/pkg/jobs"
	"github.com/nucleo-eljunko/comodato-api/pkg/mailer"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindDetailByID(ctx context.Context, id string) (*models.UserDetail, error)
	ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error)
	CreateWithRepresentative(ctx context.Context, user *models.User, rep *models.Representative) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	MarkEmailVerified(ctx context.Context, id string, ts time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error
	CreateEmailVerification(ctx context.Context, v *models.EmailVerification) error
	FindEmailVerification(ctx context.Context, token string) (*models.EmailVerification, error)
	ConsumeEmailVerification(ctx context.Context, id string, ts time.Time) error
	CreatePasswordRecovery(ctx context.Context, rec *models.PasswordRecovery) error
	FindPasswordRecovery(ctx context.Context, token string) (*models.PasswordRecovery, error)
	ConsumePasswordRecovery(ctx context.Context, id string, ts time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type authRepresentativeRepository interface {
	FindByUserID(ctx context.Context, userID string) (*models.Representative, error)
	ExistsByNationalID(ctx context.Context, nationalID string, excludeID string) (bool, error)
}

type mailQueue interface {
	Enqueue(job jobs.Job) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
	SingleSession      bool
	VerificationExpiry time.Duration
	RecoveryExpiry     time.Duration
	AppBaseURL         string
}

// AuthService provides authentication use cases: login, token rotation,
// registration, email verification and password recovery.
type AuthService struct {
	repo      authUserRepository
	reps      authRepresentativeRepository
	mail      mailQueue
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, reps authRepresentativeRepository, mail mailQueue, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.NewValidator()
	}
	return &AuthService{repo: repo, reps: reps, mail: mail, validator: validate, logger: logger, config: config}
}

// Login authenticates a user and returns issued tokens.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	email := validation.NormalizeEmail(req.Email)

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	if s.config.SingleSession {
		if err := s.repo.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
			s.logger.Warn("failed to revoke previous refresh tokens", zap.Error(err))
		}
	}

	rep := s.representativeFor(ctx, user)

	accessToken, _, err := s.generateAccessToken(user, rep)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	refreshTokenValue, err := s.generateRefreshTokenString()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	refreshToken := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     refreshTokenValue,
		ExpiresAt: time.Now().UTC().Add(s.config.RefreshTokenExpiry),
		CreatedAt: time.Now().UTC(),
		IPAddress: req.IP,
		UserAgent: req.UserAgent,
	}

	if err := s.repo.CreateRefreshToken(ctx, refreshToken); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	if err := s.repo.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}

	s.audit(ctx, &user.ID, models.AuditLogin, "auth", &user.ID, "login succeeded", req.IP)

	info := models.UserInfo{
		ID:            user.ID,
		Email:         user.Email,
		Role:          user.Role,
		EmailVerified: user.EmailVerified,
	}
	if rep != nil {
		info.RepresentativeID = &rep.ID
		name := rep.FullName()
		info.FullName = &name
	}

	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken.Token,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     time.Now().UTC(),
		User:         info,
	}, nil
}

// Register creates a representative account with its profile and queues
// the verification email. The account and profile are created atomically.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.UserInfo, error) {
	email := validation.NormalizeEmail(req.Email)
	nationalID := validation.NormalizeNationalID(req.NationalID)

	if !validation.ValidNationalID(nationalID) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "national id must match letter V, E, J, P or G followed by 5 to 9 digits")
	}

	taken, err := s.repo.ExistsByEmail(ctx, email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	}

	idTaken, err := s.reps.ExistsByNationalID(ctx, nationalID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check national id")
	}
	if idTaken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "national id is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleRepresentative,
		Active:       true,
	}
	rep := &models.Representative{
		FirstName:  validation.SanitizeText(req.FirstName),
		LastName:   validation.SanitizeText(req.LastName),
		NationalID: nationalID,
		Phone:      validation.SanitizeText(req.Phone),
		Address:    validation.SanitizeText(req.Address),
	}

	if err := s.repo.CreateWithRepresentative(ctx, user, rep); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}

	if err := s.sendVerificationEmail(ctx, user); err != nil {
		s.logger.Warn("failed to queue verification email", zap.Error(err))
	}

	s.audit(ctx, &user.ID, models.AuditRegister, "user", &user.ID, "representative account registered", "")

	name := rep.FullName()
	return &models.UserInfo{
		ID:               user.ID,
		Email:            user.Email,
		Role:             user.Role,
		EmailVerified:    false,
		RepresentativeID: &rep.ID,
		FullName:         &name,
	}, nil
}

// RefreshToken exchanges a refresh token for a new access token pair.
// The used token is revoked so each refresh token works once.
func (s *AuthService) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	storedToken, err := s.repo.FindRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch refresh token")
	}

	if storedToken.Revoked || time.Now().UTC().After(storedToken.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token is expired or revoked")
	}

	user, err := s.repo.FindByID(ctx, storedToken.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "associated user no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}

	if err := s.repo.RevokeRefreshToken(ctx, storedToken.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to revoke used refresh token", zap.Error(err))
	}

	rep := s.representativeFor(ctx, user)

	accessToken, _, err := s.generateAccessToken(user, rep)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate access token")
	}

	refreshTokenValue, err := s.generateRefreshTokenString()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	newRefresh := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     refreshTokenValue,
		ExpiresAt: time.Now().UTC().Add(s.config.RefreshTokenExpiry),
		CreatedAt: time.Now().UTC(),
		IPAddress: req.IP,
		UserAgent: req.UserAgent,
	}

	if err := s.repo.CreateRefreshToken(ctx, newRefresh); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	return &models.RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefresh.Token,
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     time.Now().UTC(),
	}, nil
}

// Logout revokes the provided refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string, userID string) error {
	storedToken, err := s.repo.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load refresh token")
	}

	if storedToken.UserID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "token does not belong to user")
	}

	if err := s.repo.RevokeRefreshToken(ctx, storedToken.ID, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke refresh token")
	}

	s.audit(ctx, &userID, models.AuditLogout, "auth", &userID, "logout", "")
	return nil
}

// Me returns the profile of the authenticated account.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	detail, err := s.repo.FindDetailByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	info := &models.UserInfo{
		ID:               detail.ID,
		Email:            detail.Email,
		Role:             detail.Role,
		EmailVerified:    detail.EmailVerified,
		RepresentativeID: detail.RepresentativeID,
	}
	if detail.FirstName != nil && detail.LastName != nil {
		name := *detail.FirstName + " " + *detail.LastName
		info.FullName = &name
	}
	return info, nil
}

// ChangePassword changes the password for the given user ID. All
// refresh tokens are revoked so stolen sessions die with the old secret.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "current password does not match")
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.repo.UpdatePassword(ctx, userID, string(newHash), time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	if err := s.repo.RevokeUserRefreshTokens(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after password change", zap.Error(err))
	}

	s.audit(ctx, &userID, models.AuditPasswordChange, "auth", &userID, "password changed", "")
	return nil
}

// ForgotPassword starts the recovery flow. A recovery token is stored
// and mailed; unknown emails return success so accounts cannot be
// enumerated.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	email := validation.NormalizeEmail(req.Email)

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Info("password recovery requested for unknown email")
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	if !user.Active {
		return nil
	}

	token, err := codes.SecureToken(48)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate recovery token")
	}

	rec := &models.PasswordRecovery{UserID: user.ID, Token: token}
	if err := s.repo.CreatePasswordRecovery(ctx, rec); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist recovery token")
	}

	s.enqueueMail(mailer.Message{
		To:      user.Email,
		Subject: "Password recovery",
		Body: fmt.Sprintf("A password reset was requested for your account.\n\nOpen this link to choose a new password (valid for %s):\n%s/reset-password?token=%s\n\nIf you did not request this, ignore this message.",
			s.config.RecoveryExpiry, s.config.AppBaseURL, token),
	})
	return nil
}

// ResetPassword completes the recovery flow with a token.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	rec, err := s.repo.FindPasswordRecovery(ctx, req.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "recovery token not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recovery token")
	}

	now := time.Now().UTC()
	if rec.Consumed() {
		return appErrors.Clone(appErrors.ErrTokenExpired, "recovery token already used")
	}
	if rec.Expired(now, s.config.RecoveryExpiry) {
		return appErrors.Clone(appErrors.ErrTokenExpired, "recovery token expired")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.repo.UpdatePassword(ctx, rec.UserID, string(hash), now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}
	if err := s.repo.ConsumePasswordRecovery(ctx, rec.ID, now); err != nil {
		s.logger.Warn("failed to consume recovery token", zap.Error(err))
	}
	if err := s.repo.RevokeUserRefreshTokens(ctx, rec.UserID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after reset", zap.Error(err))
	}

	s.audit(ctx, &rec.UserID, models.AuditPasswordReset, "auth", &rec.UserID, "password reset via recovery token", "")
	return nil
}

// VerifyEmail marks the account verified when the token is valid.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	verification, err := s.repo.FindEmailVerification(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "verification token not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load verification token")
	}

	now := time.Now().UTC()
	if verification.Consumed() {
		return appErrors.Clone(appErrors.ErrTokenExpired, "verification token already used")
	}
	if verification.Expired(now, s.config.VerificationExpiry) {
		return appErrors.Clone(appErrors.ErrTokenExpired, "verification token expired")
	}

	if err := s.repo.MarkEmailVerified(ctx, verification.UserID, now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark email verified")
	}
	if err := s.repo.ConsumeEmailVerification(ctx, verification.ID, now); err != nil {
		s.logger.Warn("failed to consume verification token", zap.Error(err))
	}

	s.audit(ctx, &verification.UserID, models.AuditEmailVerified, "user", &verification.UserID, "email verified", "")
	return nil
}

// ResendVerification queues a fresh verification email for an account
// that has not verified yet.
func (s *AuthService) ResendVerification(ctx context.Context, userID string) error {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.EmailVerified {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "email is already verified")
	}
	return s.sendVerificationEmail(ctx, user)
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}

	return claims, nil
}

func (s *AuthService) sendVerificationEmail(ctx context.Context, user *models.User) error {
	token, err := codes.SecureToken(48)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate verification token")
	}

	verification := &models.EmailVerification{UserID: user.ID, Token: token}
	if err := s.repo.CreateEmailVerification(ctx, verification); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist verification token")
	}

	s.enqueueMail(mailer.Message{
		To:      user.Email,
		Subject: "Confirm your email",
		Body: fmt.Sprintf("Welcome.\n\nConfirm your email address by opening this link (valid for %s):\n%s/verify-email?token=%s",
			s.config.VerificationExpiry, s.config.AppBaseURL, token),
	})
	return nil
}

func (s *AuthService) representativeFor(ctx context.Context, user *models.User) *models.Representative {
	if user.Role != models.RoleRepresentative || s.reps == nil {
		return nil
	}
	rep, err := s.reps.FindByUserID(ctx, user.ID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to load representative profile", zap.Error(err))
		}
		return nil
	}
	return rep
}

func (s *AuthService) enqueueMail(msg mailer.Message) {
	if s.mail == nil {
		return
	}
	if err := s.mail.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "email", Payload: msg}); err != nil {
		s.logger.Warn("failed to enqueue mail", zap.Error(err))
	}
}

func (s *AuthService) audit(ctx context.Context, userID *string, action, entityType string, entityID *string, detail, ip string) {
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		IPAddress:  ip,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.Error(err))
	}
}

func (s *AuthService) generateAccessToken(user *models.User, rep *models.Representative) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(s.config.AccessTokenExpiry)
	claims := &models.JWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	if rep != nil {
		claims.RepresentativeID = rep.ID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.AccessTokenSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *AuthService) generateRefreshTokenString() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
