package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleo-eljunko/comodato-api/internal/middleware"
	"github.com/nucleo-eljunko/comodato-api/internal/models"
)

func testContext(t *testing.T, method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestAuthHandlerLoginRejectsInvalidPayload(t *testing.T) {
	handler := NewAuthHandler(nil)
	c, w := testContext(t, http.MethodPost, "/auth/login", `{"email":"not-json`)

	handler.Login(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerLoginRejectsMissingFields(t *testing.T) {
	handler := NewAuthHandler(nil)
	c, w := testContext(t, http.MethodPost, "/auth/login", `{"email":"a@b.com"}`)

	handler.Login(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerVerifyEmailRequiresToken(t *testing.T) {
	handler := NewAuthHandler(nil)
	c, w := testContext(t, http.MethodGet, "/auth/verify-email", "")

	handler.VerifyEmail(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerLogoutRequiresClaims(t *testing.T) {
	handler := NewAuthHandler(nil)
	c, w := testContext(t, http.MethodPost, "/auth/logout", `{"refresh_token":"abc"}`)

	handler.Logout(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStudentHandlerCreateRejectsInvalidPayload(t *testing.T) {
	handler := NewStudentHandler(nil)
	c, w := testContext(t, http.MethodPost, "/students", `{"first_name": 42}`)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoanHandlerCreateRejectsInvalidPayload(t *testing.T) {
	handler := NewLoanHandler(nil)
	c, w := testContext(t, http.MethodPost, "/loans", `{"start_date":"not-a-date"}`)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInstrumentHandlerImportRequiresFile(t *testing.T) {
	handler := NewInstrumentHandler(nil)
	c, w := testContext(t, http.MethodPost, "/instruments/import", "")
	c.Request.Header.Set("Content-Type", "multipart/form-data")

	handler.Import(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserHandlerDeleteRequiresClaims(t *testing.T) {
	handler := NewUserHandler(nil)
	c, w := testContext(t, http.MethodDelete, "/users/user-1", "")

	handler.Delete(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
