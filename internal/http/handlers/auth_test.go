package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/altitrek/tourhub/internal/apperr"
	"github.com/altitrek/tourhub/internal/auth"
	"github.com/altitrek/tourhub/internal/config"
	"github.com/altitrek/tourhub/internal/domain/mailjob"
	"github.com/altitrek/tourhub/internal/domain/principal"
	"github.com/altitrek/tourhub/internal/http/handlers"
	"github.com/altitrek/tourhub/internal/http/middlewares"
	"github.com/altitrek/tourhub/internal/observability"
	"github.com/altitrek/tourhub/internal/repo/memory"
	"github.com/altitrek/tourhub/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret"

type testApp struct {
	engine *gin.Engine
	users  *memory.UsersRepo
	outbox *memory.MailOutbox
	issuer *auth.Issuer
	hasher *security.Hasher
}

func newTestApp(t *testing.T, env string) *testApp {
	t.Helper()

	cfg := config.Config{
		Env:           env,
		JWTSecret:     testSecret,
		JWTTTL:        time.Hour,
		BcryptCost:    4,
		ResetTokenTTL: 10 * time.Minute,
	}

	users := memory.NewUsersRepo()
	outbox := memory.NewMailOutbox()
	hasher := security.NewHasher(cfg.BcryptCost)
	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authMW := middlewares.NewAuthMiddleware(issuer, users)

	authHandler := handlers.NewAuthHandler(users, hasher, issuer, outbox, cfg)
	usersHandler := handlers.NewUsersHandler(users)

	logger := observability.NewLogger(env)

	r := gin.New()
	r.Use(handlers.Recovery(env, logger))
	r.Use(handlers.ErrorHandler(env, logger))

	v1 := r.Group("/api/v1")
	ug := v1.Group("/users")
	ug.POST("/signup", authHandler.SignUp)
	ug.POST("/login", authHandler.Login)
	ug.GET("/logout", authHandler.Logout)
	ug.POST("/forgot-password", authHandler.ForgotPassword)
	ug.PATCH("/reset-password/:token", authHandler.ResetPassword)

	authed := ug.Group("", authMW.Protect())
	authed.PATCH("/update-password", authHandler.UpdatePassword)
	authed.GET("/me", usersHandler.Me)
	authed.PATCH("/update-me", usersHandler.UpdateMe)
	authed.DELETE("/delete-me", usersHandler.DeleteMe)

	adminOnly := v1.Group("/admin", authMW.Protect(), authMW.RestrictTo("admin"))
	adminOnly.GET("/users", usersHandler.List)

	return &testApp{
		engine: r,
		users:  users,
		outbox: outbox,
		issuer: issuer,
		hasher: hasher,
	}
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (a *testApp) signUp(t *testing.T, email, password string) (token string) {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/v1/users/signup", "", gin.H{
		"name":            "Test User",
		"email":           email,
		"password":        password,
		"passwordConfirm": password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode(t, rec)
	token, _ = body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func TestSignUpIssuesTokenAndQueuesWelcomeMail(t *testing.T) {
	app := newTestApp(t, "prod")

	rec := app.do(t, http.MethodPost, "/api/v1/users/signup", "", gin.H{
		"name":            "Ada",
		"email":           "Ada@Example.COM",
		"password":        "password123",
		"passwordConfirm": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode(t, rec)
	require.Equal(t, "success", body["status"])
	require.NotEmpty(t, body["token"])

	user := body["data"].(map[string]any)["user"].(map[string]any)
	require.Equal(t, "ada@example.com", user["email"])
	require.Equal(t, "user", user["role"])

	// secret material never leaves the server
	raw := rec.Body.String()
	require.NotContains(t, raw, "password123")
	require.NotContains(t, strings.ToLower(raw), "passwordhash")

	jobs := app.outbox.Jobs()
	require.Len(t, jobs, 1)
	require.Equal(t, mailjob.TypeWelcome, jobs[0].Type)
}

func TestSignUpPasswordMismatch(t *testing.T) {
	app := newTestApp(t, "prod")

	rec := app.do(t, http.MethodPost, "/api/v1/users/signup", "", gin.H{
		"name":            "Ada",
		"email":           "ada@example.com",
		"password":        "password123",
		"passwordConfirm": "different123",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode(t, rec)
	require.Equal(t, "fail", body["status"])
	require.Contains(t, rec.Body.String(), "passwordConfirm")
}

func TestSignUpDuplicateEmail(t *testing.T) {
	app := newTestApp(t, "prod")
	app.signUp(t, "ada@example.com", "password123")

	rec := app.do(t, http.MethodPost, "/api/v1/users/signup", "", gin.H{
		"name":            "Imposter",
		"email":           "ada@example.com",
		"password":        "password123",
		"passwordConfirm": "password123",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "already in use")
}

func TestLoginRejectsBadCredentialsUniformly(t *testing.T) {
	app := newTestApp(t, "prod")
	app.signUp(t, "ada@example.com", "password123")

	for _, creds := range []gin.H{
		{"email": "ada@example.com", "password": "wrongpassword"},
		{"email": "nobody@example.com", "password": "password123"},
	} {
		rec := app.do(t, http.MethodPost, "/api/v1/users/login", "", creds)
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		body := decode(t, rec)
		require.Equal(t, "fail", body["status"])
		require.Equal(t, "Incorrect email or password", body["message"])
	}
}

func TestProtectedRouteAuth(t *testing.T) {
	app := newTestApp(t, "prod")
	token := app.signUp(t, "ada@example.com", "password123")

	// no token
	rec := app.do(t, http.MethodGet, "/api/v1/users/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// garbage token
	rec = app.do(t, http.MethodGet, "/api/v1/users/me", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// valid bearer token
	rec = app.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// cookie fallback
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token})
	cookieRec := httptest.NewRecorder()
	app.engine.ServeHTTP(cookieRec, req)
	require.Equal(t, http.StatusOK, cookieRec.Code)
}

// mints a structurally valid token whose issuance instant lies in the past
func staleToken(t *testing.T, principalID string, issuedAt time.Time) string {
	t.Helper()

	claims := jwt.RegisteredClaims{
		Subject:   principalID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return raw
}

func TestPasswordChangeRevokesOlderTokens(t *testing.T) {
	app := newTestApp(t, "prod")
	token := app.signUp(t, "ada@example.com", "password123")

	p, err := app.users.GetByEmail(t.Context(), "ada@example.com")
	require.NoError(t, err)

	oldToken := staleToken(t, p.ID, time.Now().Add(-2*time.Hour))

	// before the password change the stale-issued token still works
	rec := app.do(t, http.MethodGet, "/api/v1/users/me", oldToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodPatch, "/api/v1/users/update-password", token, gin.H{
		"passwordCurrent": "password123",
		"password":        "newpassword456",
		"passwordConfirm": "newpassword456",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	newToken, _ := decode(t, rec)["token"].(string)
	require.NotEmpty(t, newToken)

	// any token issued before the change is now rejected
	rec = app.do(t, http.MethodGet, "/api/v1/users/me", oldToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "Password was changed recently")

	// the freshly issued one works
	rec = app.do(t, http.MethodGet, "/api/v1/users/me", newToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// and the old password no longer logs in
	rec = app.do(t, http.MethodPost, "/api/v1/users/login", "", gin.H{
		"email":    "ada@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdatePasswordWrongCurrent(t *testing.T) {
	app := newTestApp(t, "prod")
	token := app.signUp(t, "ada@example.com", "password123")

	rec := app.do(t, http.MethodPatch, "/api/v1/users/update-password", token, gin.H{
		"passwordCurrent": "notmypassword",
		"password":        "newpassword456",
		"passwordConfirm": "newpassword456",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "current password is wrong")
}

func TestForgotThenResetPassword(t *testing.T) {
	app := newTestApp(t, "dev")
	app.signUp(t, "ada@example.com", "password123")

	rec := app.do(t, http.MethodPost, "/api/v1/users/forgot-password", "", gin.H{
		"email": "ada@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := decode(t, rec)["data"].(map[string]any)
	plain, _ := data["resetToken"].(string)
	require.NotEmpty(t, plain)

	// the stored record holds only the digest
	p, err := app.users.GetByEmail(t.Context(), "ada@example.com")
	require.NoError(t, err)
	require.NotNil(t, p.ResetTokenHash)
	require.NotEqual(t, plain, *p.ResetTokenHash)

	// the mail job carries the plaintext for delivery
	jobs := app.outbox.Jobs()
	require.Len(t, jobs, 2) // welcome + reset
	payload, err := mailjob.DecodePayload(jobs[1])
	require.NoError(t, err)
	require.Equal(t, plain, payload.(mailjob.PasswordResetPayload).ResetToken)

	rec = app.do(t, http.MethodPatch, "/api/v1/users/reset-password/"+plain, "", gin.H{
		"password":        "brandnewpass789",
		"passwordConfirm": "brandnewpass789",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEmpty(t, decode(t, rec)["token"])

	// new password works, old does not
	rec = app.do(t, http.MethodPost, "/api/v1/users/login", "", gin.H{
		"email": "ada@example.com", "password": "brandnewpass789",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/v1/users/login", "", gin.H{
		"email": "ada@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// the token is single use
	rec = app.do(t, http.MethodPatch, "/api/v1/users/reset-password/"+plain, "", gin.H{
		"password":        "anotherpass000",
		"passwordConfirm": "anotherpass000",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid or has expired")
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	app := newTestApp(t, "prod")

	rec := app.do(t, http.MethodPost, "/api/v1/users/forgot-password", "", gin.H{
		"email": "nobody@example.com",
	})

	// indistinguishable from the known-email answer, and nothing is queued
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Token sent to email!")
	require.Empty(t, app.outbox.Jobs())
}

func TestResetPasswordExpiredToken(t *testing.T) {
	app := newTestApp(t, "prod")
	app.signUp(t, "ada@example.com", "password123")

	p, err := app.users.GetByEmail(t.Context(), "ada@example.com")
	require.NoError(t, err)

	plain, digest, err := security.NewResetToken()
	require.NoError(t, err)
	require.NoError(t, app.users.SetResetToken(t.Context(), p.ID, digest, time.Now().Add(-time.Minute)))

	rec := app.do(t, http.MethodPatch, "/api/v1/users/reset-password/"+plain, "", gin.H{
		"password":        "brandnewpass789",
		"passwordConfirm": "brandnewpass789",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid or has expired")
}

func TestUpdateMeRejectsPasswordFields(t *testing.T) {
	app := newTestApp(t, "prod")
	token := app.signUp(t, "ada@example.com", "password123")

	rec := app.do(t, http.MethodPatch, "/api/v1/users/update-me", token, gin.H{
		"name":     "New Name",
		"password": "sneaky12345",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "not for password updates")
}

func TestDeleteMeSoftDeletes(t *testing.T) {
	app := newTestApp(t, "prod")
	token := app.signUp(t, "ada@example.com", "password123")

	rec := app.do(t, http.MethodDelete, "/api/v1/users/delete-me", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// the principal vanished from default lookups, so the token dies too
	rec = app.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/v1/users/login", "", gin.H{
		"email": "ada@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRestrictToAdmin(t *testing.T) {
	app := newTestApp(t, "prod")
	userToken := app.signUp(t, "ada@example.com", "password123")

	hash, err := app.hasher.Hash("adminpass123")
	require.NoError(t, err)
	admin, err := app.users.Create(t.Context(),
		principal.New("root@example.com", hash, "Root", principal.RoleAdmin))
	require.NoError(t, err)

	adminToken, err := app.issuer.Issue(admin.ID)
	require.NoError(t, err)

	rec := app.do(t, http.MethodGet, "/api/v1/admin/users", userToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "You do not have permission")

	rec = app.do(t, http.MethodGet, "/api/v1/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestErrorDisclosureByEnvironment(t *testing.T) {
	boom := func(c *gin.Context) {
		handlers.Fail(c, apperr.Internal(errors.New("kaboom: connection refused")))
	}

	for _, tc := range []struct {
		env      string
		wantLeak bool
	}{
		{env: "dev", wantLeak: true},
		{env: "prod", wantLeak: false},
	} {
		app := newTestApp(t, tc.env)
		app.engine.GET("/boom", boom)

		rec := app.do(t, http.MethodGet, "/boom", "", nil)
		require.Equal(t, http.StatusInternalServerError, rec.Code)

		body := decode(t, rec)
		require.Equal(t, "error", body["status"])
		require.Equal(t, "Something went very wrong", body["message"])

		if tc.wantLeak {
			require.Contains(t, rec.Body.String(), "kaboom")
		} else {
			require.NotContains(t, rec.Body.String(), "kaboom")
		}
	}
}

func TestPanicBecomesEnvelope(t *testing.T) {
	app := newTestApp(t, "prod")
	app.engine.GET("/panic", func(c *gin.Context) {
		panic("unexpected state")
	})

	rec := app.do(t, http.MethodGet, "/panic", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decode(t, rec)
	require.Equal(t, "error", body["status"])
	require.Equal(t, "Something went very wrong", body["message"])
	require.NotContains(t, rec.Body.String(), "unexpected state")
}
