package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/altitrek/tourhub/internal/auth"
	"github.com/altitrek/tourhub/internal/cache"
	"github.com/altitrek/tourhub/internal/config"
	"github.com/altitrek/tourhub/internal/crud"
	"github.com/altitrek/tourhub/internal/domain/booking"
	"github.com/altitrek/tourhub/internal/domain/review"
	"github.com/altitrek/tourhub/internal/domain/tour"
	"github.com/altitrek/tourhub/internal/http/handlers"
	"github.com/altitrek/tourhub/internal/http/middlewares"
	"github.com/altitrek/tourhub/internal/observability"
	"github.com/altitrek/tourhub/internal/repo/postgres"
	"github.com/altitrek/tourhub/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// Deps carries everything the router needs; main builds it once.
type Deps struct {
	Cfg       config.Config
	Logger    *slog.Logger
	Pool      *pgxpool.Pool
	ListCache cache.Store
	Prom      *observability.Prom
	Registry  *prometheus.Registry
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware; the error translator and recovery run first so everything
	// downstream can just record errors
	r.Use(handlers.Recovery(d.Cfg.Env, d.Logger))
	r.Use(handlers.ErrorHandler(d.Cfg.Env, d.Logger))
	r.Use(RequestID())
	r.Use(RequestLogger(d.Logger))
	r.Use(otelgin.Middleware("tourhub-api"))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Cfg.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())

	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}

	// health + metrics
	ping := func() error {
		if d.Pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return d.Pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{})))
	}

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(d.Pool, d.Prom)
	toursRepo := postgres.NewToursRepo(d.Pool, d.Prom)
	reviewsRepo := postgres.NewReviewsRepo(d.Pool, d.Prom, toursRepo)
	bookingsRepo := postgres.NewBookingsRepo(d.Pool, d.Prom, toursRepo)
	outboxRepo := postgres.NewMailOutboxRepo(d.Pool, d.Prom)

	// identity layer
	hasher := security.NewHasher(d.Cfg.BcryptCost)
	issuer := auth.NewIssuer(d.Cfg.JWTSecret, d.Cfg.JWTTTL)
	authMW := middlewares.NewAuthMiddleware(issuer, usersRepo)

	authHandler := handlers.NewAuthHandler(usersRepo, hasher, issuer, outboxRepo, d.Cfg)
	usersHandler := handlers.NewUsersHandler(usersRepo)

	// resource services
	tourSvc := crud.NewService[tour.Tour, tour.CreateTourRequest, tour.UpdateTourRequest](toursRepo, handlers.TourQueryOptions)
	reviewSvc := crud.NewService[review.Review, review.CreateReviewRequest, review.UpdateReviewRequest](reviewsRepo, handlers.ReviewQueryOptions)
	bookingSvc := crud.NewService[booking.Booking, booking.CreateBookingRequest, booking.UpdateBookingRequest](bookingsRepo, handlers.BookingQueryOptions)

	tours := handlers.NewToursResource(tourSvc, d.ListCache)
	tourStats := handlers.NewTourStatsHandler(toursRepo)
	reviews := handlers.NewReviewsResource(reviewSvc)
	bookings := handlers.NewBookingsResource(bookingSvc)
	bookingsExtra := handlers.NewBookingsHandler(bookingSvc)

	authLimiter := middlewares.NewRateLimiter(d.Cfg.AuthRateLimit, d.Cfg.AuthRateWindow)
	limitByIP := authLimiter.Middleware(middlewares.KeyByIP)

	v1 := r.Group("/api/v1")

	// identity flows
	users := v1.Group("/users")
	{
		users.POST("/signup", limitByIP, authHandler.SignUp)
		users.POST("/login", limitByIP, authHandler.Login)
		users.GET("/logout", authHandler.Logout)
		users.POST("/forgot-password", limitByIP, authHandler.ForgotPassword)
		users.PATCH("/reset-password/:token", limitByIP, authHandler.ResetPassword)

		authed := users.Group("", authMW.Protect())
		{
			authed.PATCH("/update-password", authHandler.UpdatePassword)
			authed.GET("/me", usersHandler.Me)
			authed.PATCH("/update-me", usersHandler.UpdateMe)
			authed.DELETE("/delete-me", usersHandler.DeleteMe)
		}

		admin := users.Group("", authMW.Protect(), authMW.RestrictTo("admin"))
		{
			admin.GET("", usersHandler.List)
			admin.GET("/:id", usersHandler.GetOne)
			admin.PATCH("/:id", usersHandler.UpdateOne)
			admin.DELETE("/:id", usersHandler.DeleteOne)
		}
	}

	// tours: reads are public, writes are staff-only
	toursGroup := v1.Group("/tours")
	{
		toursGroup.GET("", tours.GetAll)
		toursGroup.GET("/top-5-cheap", handlers.TopToursAlias(), tours.GetAll)
		toursGroup.GET("/stats", tourStats.Stats)
		toursGroup.GET("/:tourId", tours.GetOne)

		staff := toursGroup.Group("", authMW.Protect(), authMW.RestrictTo("admin", "lead-guide"))
		{
			staff.POST("", tours.CreateOne)
			staff.PATCH("/:tourId", tours.UpdateOne)
			staff.DELETE("/:tourId", tours.DeleteOne)
		}

		// nested reviews of one tour
		nested := toursGroup.Group("/:tourId/reviews", authMW.Protect())
		{
			nested.GET("", reviews.GetAll)
			nested.POST("", authMW.RestrictTo("user"), reviews.CreateOne)
		}
	}

	// flat reviews access
	reviewsGroup := v1.Group("/reviews", authMW.Protect())
	{
		reviewsGroup.GET("", reviews.GetAll)
		reviewsGroup.GET("/:id", reviews.GetOne)
		reviewsGroup.PATCH("/:id", authMW.RestrictTo("user", "admin"), reviews.UpdateOne)
		reviewsGroup.DELETE("/:id", authMW.RestrictTo("user", "admin"), reviews.DeleteOne)
	}

	// bookings
	bookingsGroup := v1.Group("/bookings", authMW.Protect())
	{
		bookingsGroup.GET("/my-bookings", bookingsExtra.MyBookings)
		bookingsGroup.POST("", bookings.CreateOne)

		manage := bookingsGroup.Group("", authMW.RestrictTo("admin", "lead-guide"))
		{
			manage.GET("", bookings.GetAll)
			manage.GET("/:id", bookings.GetOne)
			manage.PATCH("/:id", bookings.UpdateOne)
			manage.DELETE("/:id", bookings.DeleteOne)
		}
	}

	return r
}
