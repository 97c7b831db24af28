package handlers

import (
	"github.com/altitrek/tourhub/internal/apperr"
	"github.com/altitrek/tourhub/internal/crud"
	"github.com/altitrek/tourhub/internal/domain/principal"
	"github.com/altitrek/tourhub/internal/domain/review"
	"github.com/altitrek/tourhub/internal/http/middlewares"
	"github.com/altitrek/tourhub/internal/query"
	"github.com/gin-gonic/gin"
)

var ReviewQueryOptions = query.Options{
	Allowed: map[string]bool{
		"rating":    true,
		"tourId":    true,
		"authorId":  true,
		"createdAt": true,
	},
	DefaultSort: []query.SortKey{{Field: "createdAt"}},
}

type ReviewService = crud.Service[review.Review, review.CreateReviewRequest, review.UpdateReviewRequest]

// NewReviewsResource builds the nested reviews handler set. The tour comes
// from the route, the author from the authenticated principal; the body can
// carry neither.
func NewReviewsResource(svc *ReviewService) *Resource[review.Review, review.CreateReviewRequest, review.UpdateReviewRequest] {
	return NewResource(svc, ResourceConfig[review.Review, review.CreateReviewRequest]{
		Name:   "review",
		Plural: "reviews",
		Expand: []string{"tour"},
		Scope: func(ctx *gin.Context) []query.Filter {
			tourID := ctx.Param("tourId")
			if tourID == "" {
				return nil
			}
			return []query.Filter{{Field: "tourId", Op: query.OpEq, Value: tourID}}
		},
		PrepareCreate: func(ctx *gin.Context, req *review.CreateReviewRequest) error {
			p, ok := middlewares.PrincipalFromContext(ctx)
			if !ok {
				return apperr.AuthRequired("You are not logged in! Please log in to get access.")
			}

			req.AuthorID = p.ID
			req.TourID = ctx.Param("tourId")
			if req.TourID == "" {
				return apperr.Validation("A review must belong to a tour")
			}
			return nil
		},
		// authors may edit their own reviews, admins anyone's
		Authorize: func(ctx *gin.Context, rv review.Review) error {
			p, ok := middlewares.PrincipalFromContext(ctx)
			if !ok {
				return apperr.AuthRequired("You are not logged in! Please log in to get access.")
			}
			if p.Role == principal.RoleAdmin || rv.AuthorID == p.ID {
				return nil
			}
			return apperr.Forbidden("You can only modify your own reviews")
		},
	})
}
