package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/altitrek/tourhub/internal/cache"
	"github.com/altitrek/tourhub/internal/crud"
	"github.com/altitrek/tourhub/internal/query"
	"github.com/gin-gonic/gin"
)

// ResourceConfig wires one resource into the generic handler set.
type ResourceConfig[T, C any] struct {
	// Singular and plural keys used in response envelopes, e.g. "tour"/"tours".
	Name   string
	Plural string

	// Route parameter holding the entity id. Defaults to "id".
	IDParam string

	// Scope narrows list queries for nested routes, e.g. reviews of one tour.
	Scope func(*gin.Context) []query.Filter

	// PrepareCreate fills the server-controlled fields of a create request
	// from the route and the authenticated principal.
	PrepareCreate func(*gin.Context, *C) error

	// Authorize, when set, gates update and delete on the loaded entity.
	Authorize func(*gin.Context, T) error

	// Expansions resolved on single reads.
	Expand []string

	// Optional read-through cache for list responses.
	Cache cache.Store
}

// Resource turns a crud service into a full gin handler set. Every resource
// endpoint in the API is one of these five methods.
type Resource[T, C, U any] struct {
	svc *crud.Service[T, C, U]
	cfg ResourceConfig[T, C]
}

func NewResource[T, C, U any](svc *crud.Service[T, C, U], cfg ResourceConfig[T, C]) *Resource[T, C, U] {
	if cfg.IDParam == "" {
		cfg.IDParam = "id"
	}
	return &Resource[T, C, U]{svc: svc, cfg: cfg}
}

func (r *Resource[T, C, U]) scope(ctx *gin.Context) []query.Filter {
	if r.cfg.Scope == nil {
		return nil
	}
	return r.cfg.Scope(ctx)
}

func (r *Resource[T, C, U]) invalidate(ctx *gin.Context) {
	if r.cfg.Cache != nil {
		r.cfg.Cache.Clear(ctx.Request.Context())
	}
}

func (r *Resource[T, C, U]) CreateOne(ctx *gin.Context) {
	var req C

	if !BindJSON(ctx, &req) {
		return
	}

	if r.cfg.PrepareCreate != nil {
		if err := r.cfg.PrepareCreate(ctx, &req); err != nil {
			Fail(ctx, err)
			return
		}
	}

	item, err := r.svc.CreateOne(ctx.Request.Context(), req)
	if err != nil {
		Fail(ctx, err)
		return
	}

	r.invalidate(ctx)
	RespondData(ctx, http.StatusCreated, gin.H{r.cfg.Name: item})
}

func (r *Resource[T, C, U]) GetOne(ctx *gin.Context) {
	id := ctx.Param(r.cfg.IDParam)

	item, err := r.svc.GetOne(ctx.Request.Context(), id, r.cfg.Expand)
	if err != nil {
		Fail(ctx, err)
		return
	}

	fields := query.FieldsFromValues(ctx.Request.URL.Query())

	if len(fields) > 0 {
		RespondData(ctx, http.StatusOK, gin.H{r.cfg.Name: query.Project(item, fields)})
		return
	}
	RespondData(ctx, http.StatusOK, gin.H{r.cfg.Name: item})
}

func (r *Resource[T, C, U]) GetAll(ctx *gin.Context) {
	cacheKey := ctx.Request.URL.RequestURI()

	if r.cfg.Cache != nil {
		if body, ok := r.cfg.Cache.Get(ctx.Request.Context(), cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", body)
			return
		}
	}

	items, f, err := r.svc.GetAll(ctx.Request.Context(), r.scope(ctx), ctx.Request.URL.Query())
	if err != nil {
		Fail(ctx, err)
		return
	}

	var payload any = items
	if len(f.Fields) > 0 {
		docs := make([]map[string]any, 0, len(items))
		for _, item := range items {
			docs = append(docs, query.Project(item, f.Fields))
		}
		payload = docs
	}

	body := gin.H{
		"status":  "success",
		"results": len(items),
		"data":    gin.H{r.cfg.Plural: payload},
	}

	if r.cfg.Cache != nil {
		if raw, err := json.Marshal(body); err == nil {
			r.cfg.Cache.Set(ctx.Request.Context(), cacheKey, raw)
		}
	}

	ctx.JSON(http.StatusOK, body)
}

func (r *Resource[T, C, U]) UpdateOne(ctx *gin.Context) {
	id := ctx.Param(r.cfg.IDParam)

	var req U

	if !BindJSON(ctx, &req) {
		return
	}

	if r.cfg.Authorize != nil {
		current, err := r.svc.GetOne(ctx.Request.Context(), id, nil)
		if err != nil {
			Fail(ctx, err)
			return
		}
		if err := r.cfg.Authorize(ctx, current); err != nil {
			Fail(ctx, err)
			return
		}
	}

	item, err := r.svc.UpdateOne(ctx.Request.Context(), id, req)
	if err != nil {
		Fail(ctx, err)
		return
	}

	r.invalidate(ctx)
	RespondData(ctx, http.StatusOK, gin.H{r.cfg.Name: item})
}

func (r *Resource[T, C, U]) DeleteOne(ctx *gin.Context) {
	id := ctx.Param(r.cfg.IDParam)

	if r.cfg.Authorize != nil {
		current, err := r.svc.GetOne(ctx.Request.Context(), id, nil)
		if err != nil {
			Fail(ctx, err)
			return
		}
		if err := r.cfg.Authorize(ctx, current); err != nil {
			Fail(ctx, err)
			return
		}
	}

	if err := r.svc.DeleteOne(ctx.Request.Context(), id); err != nil {
		Fail(ctx, err)
		return
	}

	r.invalidate(ctx)
	RespondNoContent(ctx)
}
