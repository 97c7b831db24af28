package principal

import (
	"time"

	"github.com/google/uuid"
)

// UpdateProfileRequest is the self-service profile patch. Password material
// is deliberately absent; password changes go through their own flow.
type UpdateProfileRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=2,max=80"`
	Email *string `json:"email" binding:"omitempty,email"`
	Photo *string `json:"photo" binding:"omitempty,max=255"`
}

// AdminUpdateUserRequest is the elevated patch used by the admin user CRUD.
type AdminUpdateUserRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=2,max=80"`
	Email *string `json:"email" binding:"omitempty,email"`
	Role  *string `json:"role" binding:"omitempty,oneof=user guide lead-guide admin"`
}

// New builds a fresh active principal from already-hashed credentials.
func New(email, passwordHash, name, role string) Principal {
	now := time.Now().UTC()

	return Principal{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(email),
		Name:         name,
		Role:         role,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
