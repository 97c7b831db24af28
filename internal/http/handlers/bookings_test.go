package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/altitrek/tourhub/internal/auth"
	"github.com/altitrek/tourhub/internal/crud"
	"github.com/altitrek/tourhub/internal/domain/booking"
	"github.com/altitrek/tourhub/internal/domain/principal"
	"github.com/altitrek/tourhub/internal/http/handlers"
	"github.com/altitrek/tourhub/internal/http/middlewares"
	"github.com/altitrek/tourhub/internal/observability"
	"github.com/altitrek/tourhub/internal/repo/memory"
	"github.com/altitrek/tourhub/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type bookingsApp struct {
	engine *gin.Engine
	users  *memory.UsersRepo
	issuer *auth.Issuer
	hasher *security.Hasher
}

func newBookingsApp(t *testing.T) *bookingsApp {
	t.Helper()

	users := memory.NewUsersRepo()
	issuer := auth.NewIssuer(testSecret, time.Hour)
	authMW := middlewares.NewAuthMiddleware(issuer, users)

	repo := memory.NewResource(memory.ResourceConfig[booking.Booking, booking.CreateBookingRequest, booking.UpdateBookingRequest]{
		Name:       "booking",
		IDOf:       func(b booking.Booking) string { return b.ID },
		FromCreate: booking.NewFromCreateRequest,
		Merge:      booking.Merge,
	})
	svc := crud.NewService(repo, handlers.BookingQueryOptions)
	bookings := handlers.NewBookingsResource(svc)
	bookingsH := handlers.NewBookingsHandler(svc)

	r := gin.New()
	r.Use(handlers.ErrorHandler("prod", observability.NewLogger("prod")))

	g := r.Group("/api/v1/bookings", authMW.Protect())
	g.GET("/my-bookings", bookingsH.MyBookings)
	g.POST("", bookings.CreateOne)

	manage := g.Group("", authMW.RestrictTo(principal.RoleAdmin, principal.RoleLeadGuide))
	manage.GET("", bookings.GetAll)
	manage.PATCH("/:id", bookings.UpdateOne)

	return &bookingsApp{engine: r, users: users, issuer: issuer, hasher: security.NewHasher(4)}
}

func (a *bookingsApp) newPrincipal(t *testing.T, email, role string) (principal.Principal, string) {
	t.Helper()

	hash, err := a.hasher.Hash("password123")
	require.NoError(t, err)
	p, err := a.users.Create(t.Context(), principal.New(email, hash, "Booker", role))
	require.NoError(t, err)

	token, err := a.issuer.Issue(p.ID)
	require.NoError(t, err)
	return p, token
}

func (a *bookingsApp) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
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

func TestBookingCreateBindsToCaller(t *testing.T) {
	app := newBookingsApp(t)
	p, token := app.newPrincipal(t, "booker@example.com", principal.RoleUser)

	rec := app.do(t, http.MethodPost, "/api/v1/bookings", token, gin.H{
		"tourId": uuid.NewString(),
		"price":  497,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	doc := decode(t, rec)["data"].(map[string]any)["booking"].(map[string]any)
	require.Equal(t, p.ID, doc["userId"])
	require.Equal(t, false, doc["paid"])
}

func TestMyBookingsSeesOnlyOwn(t *testing.T) {
	app := newBookingsApp(t)
	_, aliceToken := app.newPrincipal(t, "alice@example.com", principal.RoleUser)
	_, bobToken := app.newPrincipal(t, "bob@example.com", principal.RoleUser)

	for range 2 {
		rec := app.do(t, http.MethodPost, "/api/v1/bookings", aliceToken, gin.H{
			"tourId": uuid.NewString(), "price": 100,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := app.do(t, http.MethodPost, "/api/v1/bookings", bobToken, gin.H{
		"tourId": uuid.NewString(), "price": 200,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/bookings/my-bookings", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 2, decode(t, rec)["results"])

	rec = app.do(t, http.MethodGet, "/api/v1/bookings/my-bookings", bobToken, nil)
	require.EqualValues(t, 1, decode(t, rec)["results"])
}

func TestBookingManagementRequiresStaff(t *testing.T) {
	app := newBookingsApp(t)
	_, userToken := app.newPrincipal(t, "booker@example.com", principal.RoleUser)
	_, leadToken := app.newPrincipal(t, "lead@example.com", principal.RoleLeadGuide)

	rec := app.do(t, http.MethodGet, "/api/v1/bookings", userToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/bookings", leadToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestBookingMarkPaid(t *testing.T) {
	app := newBookingsApp(t)
	_, userToken := app.newPrincipal(t, "booker@example.com", principal.RoleUser)
	_, adminToken := app.newPrincipal(t, "admin@example.com", principal.RoleAdmin)

	rec := app.do(t, http.MethodPost, "/api/v1/bookings", userToken, gin.H{
		"tourId": uuid.NewString(), "price": 100,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode(t, rec)["data"].(map[string]any)["booking"].(map[string]any)["id"].(string)

	rec = app.do(t, http.MethodPatch, "/api/v1/bookings/"+id, adminToken, gin.H{"paid": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	doc := decode(t, rec)["data"].(map[string]any)["booking"].(map[string]any)
	require.Equal(t, true, doc["paid"])
}
