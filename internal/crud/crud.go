// Package crud provides the generic create/read/update/delete/list
// operations every resource handler is built from. A resource plugs in with
// a Repository implementation and the query options describing its
// filterable surface.
package crud

import (
	"context"
	"net/url"

	"github.com/altitrek/tourhub/internal/query"
)

// Repository is the capability set a resource store must provide.
// T is the entity, C the create request, U the partial-update request.
type Repository[T, C, U any] interface {
	Create(ctx context.Context, req C) (T, error)
	GetByID(ctx context.Context, id string, expand []string) (T, error)
	Update(ctx context.Context, id string, req U) (T, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f query.Features) ([]T, error)
}

type Service[T, C, U any] struct {
	repo Repository[T, C, U]
	opts query.Options
}

func NewService[T, C, U any](repo Repository[T, C, U], opts query.Options) *Service[T, C, U] {
	return &Service[T, C, U]{repo: repo, opts: opts}
}

func (s *Service[T, C, U]) QueryOptions() query.Options {
	return s.opts
}

func (s *Service[T, C, U]) CreateOne(ctx context.Context, req C) (T, error) {
	return s.repo.Create(ctx, req)
}

func (s *Service[T, C, U]) GetOne(ctx context.Context, id string, expand []string) (T, error) {
	return s.repo.GetByID(ctx, id, expand)
}

// GetAll builds the query features from raw request parameters, applies the
// already-scoped parent constraints first and runs the assembled query
// exactly once.
func (s *Service[T, C, U]) GetAll(ctx context.Context, scope []query.Filter, params url.Values) ([]T, query.Features, error) {
	f, err := query.Parse(params, s.opts)
	if err != nil {
		return nil, query.Features{}, err
	}

	for i := len(scope) - 1; i >= 0; i-- {
		f = f.WithFilter(scope[i].Field, scope[i].Op, scope[i].Value)
	}

	items, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, query.Features{}, err
	}

	return items, f, nil
}

func (s *Service[T, C, U]) UpdateOne(ctx context.Context, id string, req U) (T, error) {
	return s.repo.Update(ctx, id, req)
}

func (s *Service[T, C, U]) DeleteOne(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
