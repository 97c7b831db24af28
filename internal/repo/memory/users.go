package memory

import (
	"context"
	"sync"
	"time"

	"github.com/altitrek/tourhub/internal/apperr"
	"github.com/altitrek/tourhub/internal/domain/principal"
	"github.com/altitrek/tourhub/internal/query"
)

// UsersRepo is the in-memory credential store. Soft-deleted principals stay
// in the map but drop out of default lookups, matching the SQL predicates.
type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]principal.Principal
	order []string
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]principal.Principal),
	}
}

func (r *UsersRepo) Create(ctx context.Context, p principal.Principal) (principal.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.Email == p.Email {
			return principal.Principal{}, apperr.DuplicateKey("Email is already in use")
		}
	}

	r.items[p.ID] = p
	r.order = append(r.order, p.ID)
	return p, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (principal.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[id]
	if !ok || !p.Active {
		return principal.Principal{}, apperr.NotFound("No user was found with this id")
	}
	return p, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (principal.Principal, error) {
	email = principal.NormalizeEmail(email)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.items {
		if p.Email == email && p.Active {
			return p, nil
		}
	}
	return principal.Principal{}, apperr.NotFound("No user was found with this email")
}

func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, req principal.UpdateProfileRequest) (principal.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok || !p.Active {
		return principal.Principal{}, apperr.NotFound("No user was found with this id")
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Email != nil {
		email := principal.NormalizeEmail(*req.Email)
		for _, existing := range r.items {
			if existing.ID != id && existing.Email == email {
				return principal.Principal{}, apperr.DuplicateKey("Email is already in use")
			}
		}
		p.Email = email
	}
	if req.Photo != nil {
		p.Photo = *req.Photo
	}
	p.UpdatedAt = time.Now().UTC()

	r.items[id] = p
	return p, nil
}

func (r *UsersRepo) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok || !p.Active {
		return apperr.NotFound("No user was found with this id")
	}

	p.Active = false
	p.UpdatedAt = time.Now().UTC()
	r.items[id] = p
	return nil
}

// UpdatePassword stores the new hash and bumps password-changed-at, which
// revokes every token issued before this write.
func (r *UsersRepo) UpdatePassword(ctx context.Context, id string, newHash string) (principal.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok || !p.Active {
		return principal.Principal{}, apperr.NotFound("No user was found with this id")
	}

	now := time.Now().UTC()
	p.PasswordHash = newHash
	p.PasswordChangedAt = &now
	p.UpdatedAt = now
	r.items[id] = p
	return p, nil
}

func (r *UsersRepo) SetResetToken(ctx context.Context, id string, digest string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok || !p.Active {
		return apperr.NotFound("No user was found with this id")
	}

	p.ResetTokenHash = &digest
	p.ResetTokenExpires = &expires
	p.UpdatedAt = time.Now().UTC()
	r.items[id] = p
	return nil
}

// ConsumeResetToken is the match-and-clear step: in one critical section it
// finds the principal holding an unexpired matching digest, stores the new
// password hash, clears the token pair and bumps password-changed-at. A
// second call with the same digest always misses.
func (r *UsersRepo) ConsumeResetToken(ctx context.Context, digest string, newHash string) (principal.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()

	for id, p := range r.items {
		if !p.Active || p.ResetTokenHash == nil || *p.ResetTokenHash != digest {
			continue
		}
		if p.ResetTokenExpires == nil || p.ResetTokenExpires.Before(now) {
			continue
		}

		p.PasswordHash = newHash
		p.ResetTokenHash = nil
		p.ResetTokenExpires = nil
		p.PasswordChangedAt = &now
		p.UpdatedAt = now
		r.items[id] = p
		return p, nil
	}

	return principal.Principal{}, apperr.InvalidOrExpiredToken()
}

// Admin-facing listing over the same store; inactive principals are scoped
// out before client filters apply.
func (r *UsersRepo) List(ctx context.Context, f query.Features) ([]principal.Principal, error) {
	r.mu.RLock()
	all := make([]principal.Principal, 0, len(r.order))
	for _, id := range r.order {
		if p := r.items[id]; p.Active {
			all = append(all, p)
		}
	}
	r.mu.RUnlock()

	return query.Evaluate(all, f), nil
}

func (r *UsersRepo) AdminUpdate(ctx context.Context, id string, req principal.AdminUpdateUserRequest) (principal.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]
	if !ok || !p.Active {
		return principal.Principal{}, apperr.NotFound("No user was found with this id")
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Email != nil {
		p.Email = principal.NormalizeEmail(*req.Email)
	}
	if req.Role != nil {
		if !principal.ValidRole(*req.Role) {
			return principal.Principal{}, apperr.Validation("Unknown role")
		}
		p.Role = *req.Role
	}
	p.UpdatedAt = time.Now().UTC()
	r.items[id] = p
	return p, nil
}
