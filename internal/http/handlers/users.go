package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/altitrek/tourhub/internal/apperr"
	"github.com/altitrek/tourhub/internal/domain/principal"
	"github.com/altitrek/tourhub/internal/http/middlewares"
	"github.com/altitrek/tourhub/internal/query"
	"github.com/gin-gonic/gin"
)

// UsersStore is everything the profile and admin endpoints need beyond the
// credential flows.
type UsersStore interface {
	GetByID(ctx context.Context, id string) (principal.Principal, error)
	UpdateProfile(ctx context.Context, id string, req principal.UpdateProfileRequest) (principal.Principal, error)
	Deactivate(ctx context.Context, id string) error
	List(ctx context.Context, f query.Features) ([]principal.Principal, error)
	AdminUpdate(ctx context.Context, id string, req principal.AdminUpdateUserRequest) (principal.Principal, error)
}

type UsersHandler struct {
	store UsersStore
}

func NewUsersHandler(store UsersStore) *UsersHandler {
	return &UsersHandler{store: store}
}

var userQueryOptions = query.Options{
	Allowed: map[string]bool{
		"name":      true,
		"email":     true,
		"role":      true,
		"createdAt": true,
	},
	DefaultSort: []query.SortKey{{Field: "createdAt"}},
}

func (h *UsersHandler) Me(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		Fail(ctx, apperr.AuthRequired("You are not logged in! Please log in to get access."))
		return
	}

	RespondData(ctx, http.StatusOK, gin.H{"user": p})
}

// updateMeRequest embeds the profile patch and additionally catches password
// fields so the request can be rejected outright instead of silently
// ignoring them.
type updateMeRequest struct {
	principal.UpdateProfileRequest
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

func (h *UsersHandler) UpdateMe(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		Fail(ctx, apperr.AuthRequired("You are not logged in! Please log in to get access."))
		return
	}

	var req updateMeRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if req.Password != nil || req.PasswordConfirm != nil {
		Fail(ctx, apperr.Validation("This route is not for password updates. Please use /update-password"))
		return
	}

	updated, err := h.store.UpdateProfile(ctx.Request.Context(), p.ID, req.UpdateProfileRequest)
	if err != nil {
		Fail(ctx, err)
		return
	}

	RespondData(ctx, http.StatusOK, gin.H{"user": updated})
}

func (h *UsersHandler) DeleteMe(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		Fail(ctx, apperr.AuthRequired("You are not logged in! Please log in to get access."))
		return
	}

	if err := h.store.Deactivate(ctx.Request.Context(), p.ID); err != nil {
		Fail(ctx, err)
		return
	}

	RespondNoContent(ctx)
}

// Admin endpoints below.

func (h *UsersHandler) List(ctx *gin.Context) {
	f, err := parseUserQuery(ctx.Request.URL.Query())
	if err != nil {
		Fail(ctx, err)
		return
	}

	users, err := h.store.List(ctx.Request.Context(), f)
	if err != nil {
		Fail(ctx, err)
		return
	}

	if len(f.Fields) > 0 {
		docs := make([]map[string]any, 0, len(users))
		for _, u := range users {
			docs = append(docs, query.Project(u, f.Fields))
		}
		RespondList(ctx, "users", docs, len(users))
		return
	}

	RespondList(ctx, "users", users, len(users))
}

func parseUserQuery(values url.Values) (query.Features, error) {
	return query.Parse(values, userQueryOptions)
}

func (h *UsersHandler) GetOne(ctx *gin.Context) {
	u, err := h.store.GetByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		Fail(ctx, err)
		return
	}

	RespondData(ctx, http.StatusOK, gin.H{"user": u})
}

func (h *UsersHandler) UpdateOne(ctx *gin.Context) {
	var req principal.AdminUpdateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.store.AdminUpdate(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		Fail(ctx, err)
		return
	}

	RespondData(ctx, http.StatusOK, gin.H{"user": u})
}

func (h *UsersHandler) DeleteOne(ctx *gin.Context) {
	if err := h.store.Deactivate(ctx.Request.Context(), ctx.Param("id")); err != nil {
		Fail(ctx, err)
		return
	}

	RespondNoContent(ctx)
}
