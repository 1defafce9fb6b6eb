package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/go-faster/errors"
)

// ErrUnauthenticated is returned when a request carries no valid access token.
var ErrUnauthenticated = errors.New("unauthenticated")

// TokenInfo holds the identity data for a stored access token.
type TokenInfo struct {
	ID        string
	UserID    int64
	Name      string
	TokenHash string
}

// Repository provides lookup of access tokens by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*TokenInfo, error)
}

// HashToken returns the hex HMAC-SHA256 of token keyed by pepper. Only this
// digest is ever persisted.
func HashToken(token string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID  int64
	TokenID string
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by the authentication middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
