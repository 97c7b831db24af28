package review

import (
	"time"

	"github.com/altitrek/tourhub/internal/domain/tour"
	"github.com/google/uuid"
)

type Review struct {
	ID       string `json:"id"`
	Rating   int    `json:"rating"`
	Text     string `json:"text"`
	TourID   string `json:"tourId"`
	AuthorID string `json:"authorId"`

	// Populated only when the caller asks for an expansion.
	Tour *tour.Tour `json:"tour,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateReviewRequest struct {
	Rating int    `json:"rating" binding:"required,min=1,max=5"`
	Text   string `json:"text" binding:"required,max=2000"`

	// Filled from the route and the resolved principal, never from the body.
	TourID   string `json:"-"`
	AuthorID string `json:"-"`
}

type UpdateReviewRequest struct {
	Rating *int    `json:"rating" binding:"omitempty,min=1,max=5"`
	Text   *string `json:"text" binding:"omitempty,max=2000"`
}

func NewFromCreateRequest(req CreateReviewRequest) Review {
	now := time.Now().UTC()

	return Review{
		ID:        uuid.NewString(),
		Rating:    req.Rating,
		Text:      req.Text,
		TourID:    req.TourID,
		AuthorID:  req.AuthorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func Merge(r Review, req UpdateReviewRequest) Review {
	if req.Rating != nil {
		r.Rating = *req.Rating
	}
	if req.Text != nil {
		r.Text = *req.Text
	}
	r.UpdatedAt = time.Now().UTC()
	return r
}
