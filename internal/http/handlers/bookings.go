package handlers

import (
	"net/http"

	"github.com/altitrek/tourhub/internal/apperr"
	"github.com/altitrek/tourhub/internal/crud"
	"github.com/altitrek/tourhub/internal/domain/booking"
	"github.com/altitrek/tourhub/internal/http/middlewares"
	"github.com/altitrek/tourhub/internal/query"
	"github.com/gin-gonic/gin"
)

var BookingQueryOptions = query.Options{
	Allowed: map[string]bool{
		"tourId":    true,
		"userId":    true,
		"price":     true,
		"paid":      true,
		"createdAt": true,
	},
	DefaultSort: []query.SortKey{{Field: "createdAt"}},
}

type BookingService = crud.Service[booking.Booking, booking.CreateBookingRequest, booking.UpdateBookingRequest]

func NewBookingsResource(svc *BookingService) *Resource[booking.Booking, booking.CreateBookingRequest, booking.UpdateBookingRequest] {
	return NewResource(svc, ResourceConfig[booking.Booking, booking.CreateBookingRequest]{
		Name:   "booking",
		Plural: "bookings",
		Expand: []string{"tour"},
		PrepareCreate: func(ctx *gin.Context, req *booking.CreateBookingRequest) error {
			p, ok := middlewares.PrincipalFromContext(ctx)
			if !ok {
				return apperr.AuthRequired("You are not logged in! Please log in to get access.")
			}
			req.UserID = p.ID
			return nil
		},
	})
}

// BookingsHandler carries the non-generic booking endpoints.
type BookingsHandler struct {
	svc *BookingService
}

func NewBookingsHandler(svc *BookingService) *BookingsHandler {
	return &BookingsHandler{svc: svc}
}

// MyBookings lists the caller's own bookings, whatever filters the request
// carries.
func (h *BookingsHandler) MyBookings(ctx *gin.Context) {
	p, ok := middlewares.PrincipalFromContext(ctx)
	if !ok {
		Fail(ctx, apperr.AuthRequired("You are not logged in! Please log in to get access."))
		return
	}

	scope := []query.Filter{{Field: "userId", Op: query.OpEq, Value: p.ID}}

	items, _, err := h.svc.GetAll(ctx.Request.Context(), scope, ctx.Request.URL.Query())
	if err != nil {
		Fail(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"results": len(items),
		"data":    gin.H{"bookings": items},
	})
}
