package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/product-catalog/internal/domain/auth"
)

const (
	findTokenByHashSQL = `SELECT id, user_id, name, token_hash FROM access_tokens WHERE token_hash = $1`

	upsertTokenSQL = `INSERT INTO access_tokens (id, user_id, name, token_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET user_id = EXCLUDED.user_id, name = EXCLUDED.name, token_hash = EXCLUDED.token_hash`
)

var _ auth.Repository = (*TokenRepository)(nil)

// TokenRepository provides access token lookups backed by PostgreSQL.
type TokenRepository struct {
	db DB
}

// NewTokenRepository returns a TokenRepository that uses the given pool.
func NewTokenRepository(db DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// FindByHash looks up a token by its HMAC-SHA256 hash.
// Returns an error wrapping auth.ErrUnauthenticated when no token matches.
func (r *TokenRepository) FindByHash(ctx context.Context, hash string) (*auth.TokenInfo, error) {
	var t auth.TokenInfo
	err := r.db.QueryRow(ctx, findTokenByHashSQL, hash).Scan(&t.ID, &t.UserID, &t.Name, &t.TokenHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("access token not found: %w", auth.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("finding access token by hash: %w", err)
	}
	return &t, nil
}

// Upsert stores t, replacing any token with the same ID.
func (r *TokenRepository) Upsert(ctx context.Context, t auth.TokenInfo) error {
	if _, err := r.db.Exec(ctx, upsertTokenSQL, t.ID, t.UserID, t.Name, t.TokenHash); err != nil {
		return fmt.Errorf("upserting access token %q: %w", t.ID, err)
	}
	return nil
}
