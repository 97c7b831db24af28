package mailjob

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// A Job is one outbound email waiting in the outbox table. The worker
// processes them asynchronously so credential writes never block on a mail
// provider.

var (
	ErrJobNotFound    = errors.New("mail job not found")
	ErrInvalidType    = errors.New("invalid mail job type")
	ErrInvalidPayload = errors.New("invalid mail job payload")
)

type Type string

const (
	TypeWelcome       Type = "mail.welcome"
	TypePasswordReset Type = "mail.password_reset"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeWelcome, TypePasswordReset:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

type Job struct {
	ID          string          `json:"id"`
	Type        Type            `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      Status          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"maxAttempts"`
	RunAt       time.Time       `json:"runAt"`
	LockedAt    *time.Time      `json:"lockedAt,omitempty"`
	LockedBy    *string         `json:"lockedBy,omitempty"`
	LastError   *string         `json:"lastError,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type WelcomePayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// PasswordResetPayload carries the plaintext reset token to the delivery
// channel. This is the only place the plaintext exists outside the response
// in dev mode; it is never written to the principal record.
type PasswordResetPayload struct {
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	ResetToken string    `json:"resetToken"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func New(t Type, payload any) (Job, error) {
	if !t.IsValid() {
		return Job{}, ErrInvalidType
	}

	b, err := EncodePayload(t, payload)
	if err != nil {
		return Job{}, err
	}

	now := time.Now().UTC()

	return Job{
		ID:          uuid.NewString(),
		Type:        t,
		Payload:     b,
		Status:      StatusPending,
		Attempts:    0,
		MaxAttempts: 5,
		RunAt:       now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func EncodePayload(t Type, payload any) (json.RawMessage, error) {
	switch t {
	case TypeWelcome:
		if _, ok := payload.(WelcomePayload); !ok {
			return nil, ErrInvalidPayload
		}
	case TypePasswordReset:
		if _, ok := payload.(PasswordResetPayload); !ok {
			return nil, ErrInvalidPayload
		}
	default:
		return nil, ErrInvalidType
	}

	b, err := json.Marshal(payload)

	if err != nil {
		return nil, ErrInvalidPayload
	}
	return b, nil
}

// DecodePayload unmarshals job.Payload into the typed payload for its type.
func DecodePayload(j Job) (any, error) {
	if len(j.Payload) == 0 {
		return nil, ErrInvalidPayload
	}

	switch j.Type {
	case TypeWelcome:
		var p WelcomePayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return nil, ErrInvalidPayload
		}
		if p.Email == "" {
			return nil, ErrInvalidPayload
		}
		return p, nil

	case TypePasswordReset:
		var p PasswordResetPayload
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return nil, ErrInvalidPayload
		}
		if p.Email == "" || p.ResetToken == "" {
			return nil, ErrInvalidPayload
		}
		return p, nil

	default:
		return nil, ErrInvalidType
	}
}
