package tour

import (
	"time"

	"github.com/google/uuid"
)

type Tour struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Duration        int       `json:"duration"`
	MaxGroupSize    int       `json:"maxGroupSize"`
	Difficulty      string    `json:"difficulty"`
	Price           float64   `json:"price"`
	RatingsAverage  float64   `json:"ratingsAverage"`
	RatingsQuantity int       `json:"ratingsQuantity"`
	Summary         string    `json:"summary"`
	Description     string    `json:"description,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// DifficultyStats is one row of the grouped tour-stats report.
type DifficultyStats struct {
	Difficulty string  `json:"difficulty"`
	NumTours   int     `json:"numTours"`
	NumRatings int     `json:"numRatings"`
	AvgRating  float64 `json:"avgRating"`
	AvgPrice   float64 `json:"avgPrice"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
}

type CreateTourRequest struct {
	Name         string  `json:"name" binding:"required,min=3,max=120"`
	Duration     int     `json:"duration" binding:"required,min=1"`
	MaxGroupSize int     `json:"maxGroupSize" binding:"required,min=1"`
	Difficulty   string  `json:"difficulty" binding:"required,oneof=easy medium difficult"`
	Price        float64 `json:"price" binding:"required,gt=0"`
	Summary      string  `json:"summary" binding:"required,max=300"`
	Description  string  `json:"description" binding:"omitempty,max=2000"`
}

// Pointer fields so a PATCH only touches what the client sent.
type UpdateTourRequest struct {
	Name         *string  `json:"name" binding:"omitempty,min=3,max=120"`
	Duration     *int     `json:"duration" binding:"omitempty,min=1"`
	MaxGroupSize *int     `json:"maxGroupSize" binding:"omitempty,min=1"`
	Difficulty   *string  `json:"difficulty" binding:"omitempty,oneof=easy medium difficult"`
	Price        *float64 `json:"price" binding:"omitempty,gt=0"`
	Summary      *string  `json:"summary" binding:"omitempty,max=300"`
	Description  *string  `json:"description" binding:"omitempty,max=2000"`
}

func NewFromCreateRequest(req CreateTourRequest) Tour {
	now := time.Now().UTC()

	return Tour{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Duration:     req.Duration,
		MaxGroupSize: req.MaxGroupSize,
		Difficulty:   req.Difficulty,
		Price:        req.Price,
		Summary:      req.Summary,
		Description:  req.Description,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Merge applies a partial update onto the existing tour. The merged result
// gets re-validated before persistence.
func Merge(t Tour, req UpdateTourRequest) Tour {
	if req.Name != nil {
		t.Name = *req.Name
	}
	if req.Duration != nil {
		t.Duration = *req.Duration
	}
	if req.MaxGroupSize != nil {
		t.MaxGroupSize = *req.MaxGroupSize
	}
	if req.Difficulty != nil {
		t.Difficulty = *req.Difficulty
	}
	if req.Price != nil {
		t.Price = *req.Price
	}
	if req.Summary != nil {
		t.Summary = *req.Summary
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	t.UpdatedAt = time.Now().UTC()
	return t
}
