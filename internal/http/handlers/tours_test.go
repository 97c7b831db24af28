package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/altitrek/tourhub/internal/apperr"
	"github.com/altitrek/tourhub/internal/cache"
	"github.com/altitrek/tourhub/internal/crud"
	"github.com/altitrek/tourhub/internal/domain/tour"
	"github.com/altitrek/tourhub/internal/http/handlers"
	"github.com/altitrek/tourhub/internal/observability"
	"github.com/altitrek/tourhub/internal/repo/memory"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type toursApp struct {
	engine *gin.Engine
	svc    *handlers.TourService
	cache  *cache.Memory
}

func newToursApp(t *testing.T) *toursApp {
	t.Helper()

	repo := memory.NewResource(memory.ResourceConfig[tour.Tour, tour.CreateTourRequest, tour.UpdateTourRequest]{
		Name:       "tour",
		IDOf:       func(t tour.Tour) string { return t.ID },
		FromCreate: tour.NewFromCreateRequest,
		Merge:      tour.Merge,
		ValidateCreate: func(t tour.Tour) error {
			if t.Name == "" {
				return apperr.Validation("A tour must have a name")
			}
			return nil
		},
	})

	svc := crud.NewService(repo, handlers.TourQueryOptions)
	listCache := cache.NewMemory(time.Minute)
	tours := handlers.NewToursResource(svc, listCache)

	r := gin.New()
	r.Use(handlers.ErrorHandler("prod", observability.NewLogger("prod")))

	g := r.Group("/api/v1/tours")
	g.GET("", tours.GetAll)
	g.GET("/top-5-cheap", handlers.TopToursAlias(), tours.GetAll)
	g.GET("/:tourId", tours.GetOne)
	g.POST("", tours.CreateOne)
	g.PATCH("/:tourId", tours.UpdateOne)
	g.DELETE("/:tourId", tours.DeleteOne)

	return &toursApp{engine: r, svc: svc, cache: listCache}
}

func (a *toursApp) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	a.engine.ServeHTTP(rec, req)
	return rec
}

func (a *toursApp) createTour(t *testing.T, name string, price float64, difficulty string) tour.Tour {
	t.Helper()

	rec := a.do(t, http.MethodPost, "/api/v1/tours", gin.H{
		"name":         name,
		"duration":     5,
		"maxGroupSize": 10,
		"difficulty":   difficulty,
		"price":        price,
		"summary":      "A lovely trip",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var out struct {
		Data struct {
			Tour tour.Tour `json:"tour"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.Data.Tour
}

func listedTours(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()

	body := decode(t, rec)
	data := body["data"].(map[string]any)
	raw := data["tours"].([]any)

	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		out = append(out, item.(map[string]any))
	}
	return out
}

func TestToursListSortAndLimit(t *testing.T) {
	app := newToursApp(t)
	for _, p := range []float64{10, 50, 30, 90, 70} {
		app.createTour(t, "The Forest Hiker", p, "easy")
	}

	rec := app.do(t, http.MethodGet, "/api/v1/tours?sort=-price&limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	require.Equal(t, "success", body["status"])
	require.EqualValues(t, 2, body["results"])

	items := listedTours(t, rec)
	require.Equal(t, 90.0, items[0]["price"])
	require.Equal(t, 70.0, items[1]["price"])
}

func TestToursListSecondPage(t *testing.T) {
	app := newToursApp(t)
	for _, p := range []float64{10, 20, 30, 40, 50} {
		app.createTour(t, "The Forest Hiker", p, "easy")
	}

	rec := app.do(t, http.MethodGet, "/api/v1/tours?sort=price&limit=2&page=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	items := listedTours(t, rec)
	require.Len(t, items, 1)
	require.Equal(t, 50.0, items[0]["price"])
}

func TestToursListRejectsUnknownFilter(t *testing.T) {
	app := newToursApp(t)

	rec := app.do(t, http.MethodGet, "/api/v1/tours?secretField=1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "fail", decode(t, rec)["status"])
}

func TestToursFieldsProjection(t *testing.T) {
	app := newToursApp(t)
	created := app.createTour(t, "The Forest Hiker", 397, "easy")

	rec := app.do(t, http.MethodGet, "/api/v1/tours?fields=name,price", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	items := listedTours(t, rec)
	require.Len(t, items, 1)
	// id is always kept, everything else outside the selection is dropped
	require.Equal(t, created.ID, items[0]["id"])
	require.Contains(t, items[0], "name")
	require.Contains(t, items[0], "price")
	require.NotContains(t, items[0], "difficulty")
	require.NotContains(t, items[0], "summary")

	rec = app.do(t, http.MethodGet, "/api/v1/tours/"+created.ID+"?fields=name", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decode(t, rec)["data"].(map[string]any)["tour"].(map[string]any)
	require.Equal(t, created.ID, doc["id"])
	require.Contains(t, doc, "name")
	require.NotContains(t, doc, "price")
}

func TestTopFiveCheapAlias(t *testing.T) {
	app := newToursApp(t)
	for _, p := range []float64{700, 100, 400, 250, 900, 50, 600} {
		app.createTour(t, "The Forest Hiker", p, "easy")
	}

	rec := app.do(t, http.MethodGet, "/api/v1/tours/top-5-cheap", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	require.EqualValues(t, 5, body["results"])

	// equal ratings, so the secondary price sort decides: cheapest first
	items := listedTours(t, rec)
	require.Equal(t, 50.0, items[0]["price"])
	require.Equal(t, 100.0, items[1]["price"])
}

func TestTourGetOneMissing(t *testing.T) {
	app := newToursApp(t)

	rec := app.do(t, http.MethodGet, "/api/v1/tours/does-not-exist", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	body := decode(t, rec)
	require.Equal(t, "fail", body["status"])
}

func TestTourCreateValidation(t *testing.T) {
	app := newToursApp(t)

	rec := app.do(t, http.MethodPost, "/api/v1/tours", gin.H{
		"name":         "Trip",
		"duration":     5,
		"maxGroupSize": 10,
		"difficulty":   "impossible",
		"price":        100,
		"summary":      "A lovely trip",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "difficulty")
}

func TestTourUpdateAndDelete(t *testing.T) {
	app := newToursApp(t)
	created := app.createTour(t, "The Forest Hiker", 397, "easy")

	rec := app.do(t, http.MethodPatch, "/api/v1/tours/"+created.ID, gin.H{
		"price": 450,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	doc := decode(t, rec)["data"].(map[string]any)["tour"].(map[string]any)
	require.Equal(t, 450.0, doc["price"])
	require.Equal(t, "The Forest Hiker", doc["name"])

	rec = app.do(t, http.MethodDelete, "/api/v1/tours/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/tours/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToursListCacheInvalidatedOnWrite(t *testing.T) {
	app := newToursApp(t)
	app.createTour(t, "The Forest Hiker", 100, "easy")

	rec := app.do(t, http.MethodGet, "/api/v1/tours", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, decode(t, rec)["results"])

	// cached: served byte for byte
	cached, ok := app.cache.Get(t.Context(), "/api/v1/tours")
	require.True(t, ok)
	require.JSONEq(t, string(cached), rec.Body.String())

	app.createTour(t, "The Sea Explorer", 200, "medium")

	// the write cleared the cache, so the next list sees both tours
	_, ok = app.cache.Get(t.Context(), "/api/v1/tours")
	require.False(t, ok)

	rec = app.do(t, http.MethodGet, "/api/v1/tours", nil)
	require.EqualValues(t, 2, decode(t, rec)["results"])
}
