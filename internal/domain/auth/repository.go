package auth

import (
	"context"
	"time"

	"admissions/internal/common"
)

// RefreshTokenRepository persists refresh tokens by hash. Revocation is
// idempotent.
type RefreshTokenRepository interface {
	Store(ctx context.Context, token RefreshToken) error
	GetByToken(ctx context.Context, token string) (*RefreshToken, error)
	Revoke(ctx context.Context, token string, at time.Time) error
	RevokeAll(ctx context.Context, userID common.UUID, at time.Time) error
}
