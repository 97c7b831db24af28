package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/altitrek/tourhub/internal/apperr"
	"github.com/altitrek/tourhub/internal/auth"
	"github.com/altitrek/tourhub/internal/config"
	"github.com/altitrek/tourhub/internal/domain/mailjob"
	"github.com/altitrek/tourhub/internal/domain/principal"
	"github.com/altitrek/tourhub/internal/http/middlewares"
	"github.com/altitrek/tourhub/internal/security"
	"github.com/gin-gonic/gin"
)

// CredentialStore is the slice of the user store the identity flows need.
type CredentialStore interface {
	Create(ctx context.Context, p principal.Principal) (principal.Principal, error)
	GetByID(ctx context.Context, id string) (principal.Principal, error)
	GetByEmail(ctx context.Context, email string) (principal.Principal, error)
	UpdatePassword(ctx context.Context, id string, newHash string) (principal.Principal, error)
	SetResetToken(ctx context.Context, id string, digest string, expires time.Time) error
	ConsumeResetToken(ctx context.Context, digest string, newHash string) (principal.Principal, error)
}

type MailEnqueuer interface {
	Enqueue(ctx context.Context, j mailjob.Job) (mailjob.Job, error)
}

type AuthHandler struct {
	store  CredentialStore
	hasher *security.Hasher
	issuer *auth.Issuer
	outbox MailEnqueuer
	cfg    config.Config
}

func NewAuthHandler(store CredentialStore, hasher *security.Hasher, issuer *auth.Issuer, outbox MailEnqueuer, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		store:  store,
		hasher: hasher,
		issuer: issuer,
		outbox: outbox,
		cfg:    cfg,
	}
}

type SignUpRequest struct {
	Name            string `json:"name" binding:"required,min=2,max=80"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required,eqfield=Password"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password" binding:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required,eqfield=Password"`
}

type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent" binding:"required"`
	Password        string `json:"password" binding:"required,min=8,max=72"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required,eqfield=Password"`
}

// respondWithToken issues a fresh token for the principal and sends it both
// in the body and as a cookie. Called only after any credential write has
// fully completed, so the token's iat postdates password_changed_at.
func (h *AuthHandler) respondWithToken(ctx *gin.Context, status int, p principal.Principal) {
	token, err := h.issuer.Issue(p.ID)
	if err != nil {
		Fail(ctx, apperr.Internal(err))
		return
	}

	secure := h.cfg.Env != "dev"
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie("token", token, int(h.issuer.TTL().Seconds()), "/", "", secure, true)

	ctx.JSON(status, gin.H{
		"status": "success",
		"token":  token,
		"data":   gin.H{"user": p},
	})
}

func (h *AuthHandler) SignUp(ctx *gin.Context) {
	var req SignUpRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		Fail(ctx, apperr.Internal(err))
		return
	}

	// role is never taken from the request body
	p, err := h.store.Create(cctx, principal.New(req.Email, hash, req.Name, principal.RoleUser))
	if err != nil {
		Fail(ctx, err)
		return
	}

	h.enqueueWelcome(cctx, p)

	h.respondWithToken(ctx, http.StatusCreated, p)
}

func (h *AuthHandler) enqueueWelcome(ctx context.Context, p principal.Principal) {
	j, err := mailjob.New(mailjob.TypeWelcome, mailjob.WelcomePayload{
		Email: p.Email,
		Name:  p.Name,
	})
	if err != nil {
		return
	}
	// best effort; signup must not fail on a full outbox
	_, _ = h.outbox.Enqueue(ctx, j)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	p, err := h.store.GetByEmail(cctx, req.Email)
	if err != nil {
		// same answer for unknown email and bad password
		Fail(ctx, apperr.AuthRequired("Incorrect email or password"))
		return
	}

	if !h.hasher.Verify(p.PasswordHash, req.Password) {
		Fail(ctx, apperr.AuthRequired("Incorrect email or password"))
		return
	}

	h.respondWithToken(ctx, http.StatusOK, p)
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie("token", "loggedout", 10, "/", "", h.cfg.Env != "dev", true)

	RespondData(ctx, http.StatusOK, nil)
}

// ForgotPassword stores only the token digest; the plaintext goes out via
// the mail outbox and is never persisted.
func (h *AuthHandler) ForgotPassword(ctx *gin.Context) {
	var req ForgotPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	p, err := h.store.GetByEmail(cctx, req.Email)
	if err != nil {
		if apperr.IsCode(err, apperr.CodeNotFound) {
			// same answer as the happy path so the endpoint cannot be used
			// to enumerate accounts
			RespondData(ctx, http.StatusOK, gin.H{"message": "Token sent to email!"})
			return
		}
		Fail(ctx, err)
		return
	}

	plain, digest, err := security.NewResetToken()
	if err != nil {
		Fail(ctx, apperr.Internal(err))
		return
	}

	expires := time.Now().UTC().Add(h.cfg.ResetTokenTTL)

	if err := h.store.SetResetToken(cctx, p.ID, digest, expires); err != nil {
		Fail(ctx, err)
		return
	}

	j, err := mailjob.New(mailjob.TypePasswordReset, mailjob.PasswordResetPayload{
		Email:      p.Email,
		Name:       p.Name,
		ResetToken: plain,
		ExpiresAt:  expires,
	})
	if err == nil {
		_, err = h.outbox.Enqueue(cctx, j)
	}
	if err != nil {
		Fail(ctx, apperr.Internal(err))
		return
	}

	body := gin.H{"message": "Token sent to email!"}

	// dev convenience: no mail provider is wired locally
	if h.cfg.Env == "dev" {
		body["resetToken"] = plain
	}

	RespondData(ctx, http.StatusOK, body)
}

// ResetPassword consumes the emailed token. The digest match, expiry check
// and credential swap happen in one atomic store operation, so the token is
// single use even under concurrent attempts.
func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	var req ResetPasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		Fail(ctx, apperr.Internal(err))
		return
	}

	digest := security.HashResetToken(ctx.Param("token"))

	p, err := h.store.ConsumeResetToken(cctx, digest, hash)
	if err != nil {
		Fail(ctx, err)
		return
	}

	h.respondWithToken(ctx, http.StatusOK, p)
}

// UpdatePassword lets an authenticated principal rotate their password by
// proving the current one.
func (h *AuthHandler) UpdatePassword(ctx *gin.Context) {
	var req UpdatePasswordRequest

	if !BindJSON(ctx, &req) {
		return
	}

	current, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		Fail(ctx, apperr.AuthRequired("You are not logged in! Please log in to get access."))
		return
	}

	if !h.hasher.Verify(current.PasswordHash, req.PasswordCurrent) {
		Fail(ctx, apperr.AuthRequired("Your current password is wrong"))
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		Fail(ctx, apperr.Internal(err))
		return
	}

	p, err := h.store.UpdatePassword(cctx, current.ID, hash)
	if err != nil {
		Fail(ctx, err)
		return
	}

	h.respondWithToken(ctx, http.StatusOK, p)
}
