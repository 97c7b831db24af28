package handlers

import (
	"context"
	"net/http"

	"github.com/altitrek/tourhub/internal/cache"
	"github.com/altitrek/tourhub/internal/crud"
	"github.com/altitrek/tourhub/internal/domain/tour"
	"github.com/altitrek/tourhub/internal/query"
	"github.com/gin-gonic/gin"
)

// TourQueryOptions is the filterable surface of the tours collection.
var TourQueryOptions = query.Options{
	Allowed: map[string]bool{
		"name":            true,
		"duration":        true,
		"maxGroupSize":    true,
		"difficulty":      true,
		"price":           true,
		"ratingsAverage":  true,
		"ratingsQuantity": true,
		"createdAt":       true,
	},
	DefaultSort: []query.SortKey{{Field: "createdAt"}},
}

type TourService = crud.Service[tour.Tour, tour.CreateTourRequest, tour.UpdateTourRequest]

func NewToursResource(svc *TourService, listCache cache.Store) *Resource[tour.Tour, tour.CreateTourRequest, tour.UpdateTourRequest] {
	return NewResource(svc, ResourceConfig[tour.Tour, tour.CreateTourRequest]{
		Name:    "tour",
		Plural:  "tours",
		IDParam: "tourId",
		Cache:   listCache,
	})
}

// TopToursAlias rewrites the query for the curated "5 best cheap tours"
// listing before the generic list handler runs.
func TopToursAlias() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		q := ctx.Request.URL.Query()
		q.Set("limit", "5")
		q.Set("sort", "-ratingsAverage,price")
		ctx.Request.URL.RawQuery = q.Encode()
		ctx.Next()
	}
}

type TourStatsProvider interface {
	Stats(ctx context.Context) ([]tour.DifficultyStats, error)
}

type TourStatsHandler struct {
	provider TourStatsProvider
}

func NewTourStatsHandler(provider TourStatsProvider) *TourStatsHandler {
	return &TourStatsHandler{provider: provider}
}

func (h *TourStatsHandler) Stats(ctx *gin.Context) {
	stats, err := h.provider.Stats(ctx.Request.Context())
	if err != nil {
		Fail(ctx, err)
		return
	}

	RespondData(ctx, http.StatusOK, gin.H{"stats": stats})
}
