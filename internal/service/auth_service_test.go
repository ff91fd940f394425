package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nucleo-eljunko/comodato-api/internal/models"
	appErrors "github.com/nucleo-eljunko/comodato-api/pkg/errors"
	"github.com/nucleo-eljunko/comodato-api/pkg/jobs"
	"github.com/nucleo-eljunko/comodato-api/pkg/mailer"
)

type mockAuthRepo struct {
	usersByEmail  map[string]*models.User
	usersByID     map[string]*models.User
	details       map[string]*models.UserDetail
	refreshTokens map[string]*models.RefreshToken
	verifications map[string]*models.EmailVerification
	recoveries    map[string]*models.PasswordRecovery
	emailTaken    bool
	createdUsers  []*models.User
	createdReps   []*models.Representative
	revokedAll    []string
	revokedOne    []string
	passwords     map[string]string
	audits        []*models.AuditLog
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		usersByEmail:  map[string]*models.User{},
		usersByID:     map[string]*models.User{},
		details:       map[string]*models.UserDetail{},
		refreshTokens: map[string]*models.RefreshToken{},
		verifications: map[string]*models.EmailVerification{},
		recoveries:    map[string]*models.PasswordRecovery{},
		passwords:     map[string]string{},
	}
}

func (m *mockAuthRepo) addUser(user *models.User) {
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := m.usersByEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := m.usersByID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockAuthRepo) FindDetailByID(ctx context.Context, id string) (*models.UserDetail, error) {
	detail, ok := m.details[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return detail, nil
}

func (m *mockAuthRepo) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	if m.emailTaken {
		return true, nil
	}
	_, ok := m.usersByEmail[email]
	return ok, nil
}

func (m *mockAuthRepo) CreateWithRepresentative(ctx context.Context, user *models.User, rep *models.Representative) error {
	user.ID = "user-new"
	rep.ID = "rep-new"
	rep.UserID = user.ID
	m.addUser(user)
	m.createdUsers = append(m.createdUsers, user)
	m.createdReps = append(m.createdReps, rep)
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwords[id] = passwordHash
	return nil
}

func (m *mockAuthRepo) MarkEmailVerified(ctx context.Context, id string, ts time.Time) error {
	if user, ok := m.usersByID[id]; ok {
		user.EmailVerified = true
	}
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = append(m.revokedAll, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revokedOne = append(m.revokedOne, id)
	for _, rt := range m.refreshTokens {
		if rt.ID == id {
			rt.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateEmailVerification(ctx context.Context, v *models.EmailVerification) error {
	v.ID = "ver-1"
	v.CreatedAt = time.Now().UTC()
	m.verifications[v.Token] = v
	return nil
}

func (m *mockAuthRepo) FindEmailVerification(ctx context.Context, token string) (*models.EmailVerification, error) {
	v, ok := m.verifications[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return v, nil
}

func (m *mockAuthRepo) ConsumeEmailVerification(ctx context.Context, id string, ts time.Time) error {
	for _, v := range m.verifications {
		if v.ID == id {
			v.VerifiedAt = &ts
		}
	}
	return nil
}

func (m *mockAuthRepo) CreatePasswordRecovery(ctx context.Context, rec *models.PasswordRecovery) error {
	rec.ID = "rec-1"
	rec.CreatedAt = time.Now().UTC()
	m.recoveries[rec.Token] = rec
	return nil
}

func (m *mockAuthRepo) FindPasswordRecovery(ctx context.Context, token string) (*models.PasswordRecovery, error) {
	rec, ok := m.recoveries[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rec, nil
}

func (m *mockAuthRepo) ConsumePasswordRecovery(ctx context.Context, id string, ts time.Time) error {
	for _, rec := range m.recoveries {
		if rec.ID == id {
			rec.UsedAt = &ts
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.audits = append(m.audits, log)
	return nil
}

type mockRepReader struct {
	byUserID map[string]*models.Representative
	idTaken  bool
}

func (m *mockRepReader) FindByUserID(ctx context.Context, userID string) (*models.Representative, error) {
	rep, ok := m.byUserID[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rep, nil
}

func (m *mockRepReader) ExistsByNationalID(ctx context.Context, nationalID string, excludeID string) (bool, error) {
	return m.idTaken, nil
}

type mockMailQueue struct {
	jobs []jobs.Job
	err  error
}

func (m *mockMailQueue) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthFixture() (*AuthService, *mockAuthRepo, *mockRepReader, *mockMailQueue) {
	repo := newMockAuthRepo()
	reps := &mockRepReader{byUserID: map[string]*models.Representative{}}
	mail := &mockMailQueue{}
	svc := NewAuthService(repo, reps, mail, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "comodato-api-test",
		VerificationExpiry: 24 * time.Hour,
		RecoveryExpiry:     time.Hour,
		AppBaseURL:         "http://localhost:3000",
	})
	return svc, repo, reps, mail
}

func TestAuthServiceLogin(t *testing.T) {
	svc, repo, reps, _ := newAuthFixture()
	repo.addUser(&models.User{
		ID:           "user-1",
		Email:        "rep@example.com",
		PasswordHash: hashPassword(t, "secret123"),
		Role:         models.RoleRepresentative,
		Active:       true,
	})
	reps.byUserID["user-1"] = &models.Representative{ID: "rep-1", UserID: "user-1", FirstName: "Maria", LastName: "Gomez"}

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "Rep@Example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	require.NotNil(t, resp.User.RepresentativeID)
	assert.Equal(t, "rep-1", *resp.User.RepresentativeID)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleRepresentative, claims.Role)
	assert.Equal(t, "rep-1", claims.RepresentativeID)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc, repo, _, _ := newAuthFixture()
	repo.addUser(&models.User{
		ID:           "user-1",
		Email:        "rep@example.com",
		PasswordHash: hashPassword(t, "secret123"),
		Active:       true,
	})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "rep@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc, _, _, _ := newAuthFixture()

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "whatever"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	svc, repo, _, _ := newAuthFixture()
	repo.addUser(&models.User{
		ID:           "user-1",
		Email:        "rep@example.com",
		PasswordHash: hashPassword(t, "secret123"),
		Active:       false,
	})

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "rep@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegister(t *testing.T) {
	svc, repo, _, mail := newAuthFixture()

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:      "new@example.com",
		Password:   "secret123",
		FirstName:  "Jose",
		LastName:   "Perez",
		NationalID: "v12345678",
		Phone:      "0412-0000000",
		Address:    "Av. Principal",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleRepresentative, info.Role)

	require.Len(t, repo.createdUsers, 1)
	require.Len(t, repo.createdReps, 1)
	assert.Equal(t, "V12345678", repo.createdReps[0].NationalID)

	require.Len(t, mail.jobs, 1)
	msg, ok := mail.jobs[0].Payload.(mailer.Message)
	require.True(t, ok)
	assert.Equal(t, "new@example.com", msg.To)
	assert.Contains(t, msg.Body, "verify")
}

func TestAuthServiceRegisterRejectsBadNationalID(t *testing.T) {
	svc, _, _, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:      "new@example.com",
		Password:   "secret123",
		FirstName:  "Jose",
		LastName:   "Perez",
		NationalID: "X123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterRejectsTakenNationalID(t *testing.T) {
	svc, _, reps, _ := newAuthFixture()
	reps.idTaken = true

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:      "new@example.com",
		Password:   "secret123",
		FirstName:  "Jose",
		LastName:   "Perez",
		NationalID: "V12345678",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshTokenRotation(t *testing.T) {
	svc, repo, _, _ := newAuthFixture()
	repo.addUser(&models.User{ID: "user-1", Email: "rep@example.com", Active: true, Role: models.RoleAdmin})
	repo.refreshTokens["old-token"] = &models.RefreshToken{
		ID:        "rt-old",
		UserID:    "user-1",
		Token:     "old-token",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, "old-token", resp.RefreshToken)
	assert.Contains(t, repo.revokedOne, "rt-old")
}

func TestAuthServiceRefreshTokenRejectsRevoked(t *testing.T) {
	svc, repo, _, _ := newAuthFixture()
	repo.refreshTokens["old-token"] = &models.RefreshToken{
		ID:        "rt-old",
		UserID:    "user-1",
		Token:     "old-token",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
		Revoked:   true,
	}

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.Error(t, err)
}

func TestAuthServiceRefreshTokenRejectsExpired(t *testing.T) {
	svc, repo, _, _ := newAuthFixture()
	repo.refreshTokens["old-token"] = &models.RefreshToken{
		ID:        "rt-old",
		UserID:    "user-1",
		Token:     "old-token",
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.Error(t, err)
}

func TestAuthServiceForgotPasswordSilentOnUnknownEmail(t *testing.T) {
	svc, _, _, mail := newAuthFixture()

	err := svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "ghost@example.com"})
	require.NoError(t, err)
	assert.Empty(t, mail.jobs)
}

func TestAuthServicePasswordRecoveryRoundTrip(t *testing.T) {
	svc, repo, _, mail := newAuthFixture()
	repo.addUser(&models.User{
		ID:           "user-1",
		Email:        "rep@example.com",
		PasswordHash: hashPassword(t, "oldpass99"),
		Active:       true,
	})

	require.NoError(t, svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "rep@example.com"}))
	require.Len(t, mail.jobs, 1)
	msg := mail.jobs[0].Payload.(mailer.Message)
	idx := strings.Index(msg.Body, "token=")
	require.GreaterOrEqual(t, idx, 0)
	token := strings.Fields(msg.Body[idx+len("token="):])[0]

	require.NoError(t, svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: token, NewPassword: "newpass99"}))
	assert.NotEmpty(t, repo.passwords["user-1"])
	assert.Contains(t, repo.revokedAll, "user-1")

	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: token, NewPassword: "again1234"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTokenExpired.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceVerifyEmail(t *testing.T) {
	svc, repo, _, _ := newAuthFixture()
	repo.addUser(&models.User{ID: "user-1", Email: "rep@example.com", Active: true})
	repo.verifications["ver-token"] = &models.EmailVerification{
		ID:        "ver-1",
		UserID:    "user-1",
		Token:     "ver-token",
		CreatedAt: time.Now().UTC(),
	}

	require.NoError(t, svc.VerifyEmail(context.Background(), "ver-token"))
	assert.True(t, repo.usersByID["user-1"].EmailVerified)

	err := svc.VerifyEmail(context.Background(), "ver-token")
	require.Error(t, err)
}

func TestAuthServiceVerifyEmailExpired(t *testing.T) {
	svc, repo, _, _ := newAuthFixture()
	repo.addUser(&models.User{ID: "user-1", Email: "rep@example.com", Active: true})
	repo.verifications["ver-token"] = &models.EmailVerification{
		ID:        "ver-1",
		UserID:    "user-1",
		Token:     "ver-token",
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}

	err := svc.VerifyEmail(context.Background(), "ver-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTokenExpired.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePassword(t *testing.T) {
	svc, repo, _, _ := newAuthFixture()
	repo.addUser(&models.User{
		ID:           "user-1",
		Email:        "rep@example.com",
		PasswordHash: hashPassword(t, "oldpass99"),
		Active:       true,
	})

	err := svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		CurrentPassword: "wrong",
		NewPassword:     "newpass99",
	})
	require.Error(t, err)

	err = svc.ChangePassword(context.Background(), "user-1", models.ChangePasswordRequest{
		CurrentPassword: "oldpass99",
		NewPassword:     "newpass99",
	})
	require.NoError(t, err)
	assert.Contains(t, repo.revokedAll, "user-1")
}

func TestAuthServiceValidateTokenRejectsTampered(t *testing.T) {
	svc, repo, _, _ := newAuthFixture()
	repo.addUser(&models.User{
		ID:           "user-1",
		Email:        "rep@example.com",
		PasswordHash: hashPassword(t, "secret123"),
		Role:         models.RoleAdmin,
		Active:       true,
	})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "rep@example.com", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.AccessToken + "x")
	require.Error(t, err)
}
