package booking

import (
	"time"

	"github.com/altitrek/tourhub/internal/domain/tour"
	"github.com/google/uuid"
)

type Booking struct {
	ID     string  `json:"id"`
	TourID string  `json:"tourId"`
	UserID string  `json:"userId"`
	Price  float64 `json:"price"`
	Paid   bool    `json:"paid"`

	Tour *tour.Tour `json:"tour,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateBookingRequest struct {
	TourID string  `json:"tourId" binding:"required,uuid"`
	Price  float64 `json:"price" binding:"required,gt=0"`

	// Set from the resolved principal.
	UserID string `json:"-"`
}

type UpdateBookingRequest struct {
	Price *float64 `json:"price" binding:"omitempty,gt=0"`
	Paid  *bool    `json:"paid" binding:"omitempty"`
}

func NewFromCreateRequest(req CreateBookingRequest) Booking {
	now := time.Now().UTC()

	return Booking{
		ID:        uuid.NewString(),
		TourID:    req.TourID,
		UserID:    req.UserID,
		Price:     req.Price,
		Paid:      false,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func Merge(b Booking, req UpdateBookingRequest) Booking {
	if req.Price != nil {
		b.Price = *req.Price
	}
	if req.Paid != nil {
		b.Paid = *req.Paid
	}
	b.UpdatedAt = time.Now().UTC()
	return b
}
