package token

import (
	"context"
	"time"

	"designer-marketplace/internal/domain"
)

// Token is an opaque bearer credential issued outside this service.
type Token struct {
	Token     string
	SubjectID string
	Role      domain.Role
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Repository interface {
	Create(ctx context.Context, token Token) error
	Get(ctx context.Context, token string) (*Token, error)
}
