package principal

import (
	"strings"
	"time"
)

// Roles form a fixed closed set. Which roles may call which operation is
// declared at the route level, not here.
const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"
)

func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return true
	default:
		return false
	}
}

type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Photo string `json:"photo,omitempty"`
	Role  string `json:"role"`

	// Secret material, never serialized outward.
	PasswordHash      string     `json:"-"`
	PasswordChangedAt *time.Time `json:"-"`
	ResetTokenHash    *string    `json:"-"`
	ResetTokenExpires *time.Time `json:"-"`

	// Soft-delete marker. Inactive principals are excluded from default
	// lookups but never physically removed.
	Active bool `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NormalizeEmail lower-cases and trims an address so the uniqueness
// constraint is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PasswordChangedAfter reports whether the stored password changed at or
// after the given token issuance instant. A token minted before the last
// change must be rejected even if its signature and TTL are still valid.
func (p Principal) PasswordChangedAfter(issuedAt time.Time) bool {
	if p.PasswordChangedAt == nil {
		return false
	}
	// Compare at second precision; JWT iat carries no sub-second part.
	return p.PasswordChangedAt.Unix() > issuedAt.Unix()
}
