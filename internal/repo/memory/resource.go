package memory

import (
	"context"
	"sync"

	"github.com/altitrek/tourhub/internal/apperr"
	"github.com/altitrek/tourhub/internal/query"
)

// Resource is a generic in-memory store satisfying crud.Repository. It backs
// handler tests and keeps list semantics identical to the SQL layer by
// evaluating the same query features.
type Resource[T, C, U any] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string

	name       string
	idOf       func(T) string
	fromCreate func(C) T
	merge      func(T, U) T

	// optional hooks
	validateCreate func(T) error
	expand         func(context.Context, T, []string) (T, error)
}

type ResourceConfig[T, C, U any] struct {
	Name           string
	IDOf           func(T) string
	FromCreate     func(C) T
	Merge          func(T, U) T
	ValidateCreate func(T) error
	Expand         func(context.Context, T, []string) (T, error)
}

func NewResource[T, C, U any](cfg ResourceConfig[T, C, U]) *Resource[T, C, U] {
	return &Resource[T, C, U]{
		items:          make(map[string]T),
		name:           cfg.Name,
		idOf:           cfg.IDOf,
		fromCreate:     cfg.FromCreate,
		merge:          cfg.Merge,
		validateCreate: cfg.ValidateCreate,
		expand:         cfg.Expand,
	}
}

func (r *Resource[T, C, U]) Create(ctx context.Context, req C) (T, error) {
	var zero T

	entity := r.fromCreate(req)

	if r.validateCreate != nil {
		if err := r.validateCreate(entity); err != nil {
			return zero, err
		}
	}

	id := r.idOf(entity)

	r.mu.Lock()
	r.items[id] = entity
	r.order = append(r.order, id)
	r.mu.Unlock()

	return entity, nil
}

func (r *Resource[T, C, U]) GetByID(ctx context.Context, id string, expand []string) (T, error) {
	var zero T

	r.mu.RLock()
	entity, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return zero, apperr.NotFound("No " + r.name + " was found with this id")
	}

	if len(expand) > 0 && r.expand != nil {
		return r.expand(ctx, entity, expand)
	}

	return entity, nil
}

func (r *Resource[T, C, U]) Update(ctx context.Context, id string, req U) (T, error) {
	var zero T

	r.mu.Lock()
	defer r.mu.Unlock()

	entity, ok := r.items[id]
	if !ok {
		return zero, apperr.NotFound("No " + r.name + " was found with this id")
	}

	merged := r.merge(entity, req)
	r.items[id] = merged

	return merged, nil
}

func (r *Resource[T, C, U]) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return apperr.NotFound("No " + r.name + " was found with this id")
	}

	delete(r.items, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Resource[T, C, U]) List(ctx context.Context, f query.Features) ([]T, error) {
	r.mu.RLock()
	all := make([]T, 0, len(r.order))
	for _, id := range r.order {
		all = append(all, r.items[id])
	}
	r.mu.RUnlock()

	return query.Evaluate(all, f), nil
}
