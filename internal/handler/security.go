package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/product-catalog/internal/domain/auth"
)

// SecurityHandler authenticates requests carrying an
// "Authorization: Bearer <token>" header against stored HMAC-SHA256 token
// hashes.
type SecurityHandler struct {
	tokens auth.Repository
	pepper []byte
}

// NewSecurityHandler creates a SecurityHandler with the given token
// repository and HMAC pepper.
func NewSecurityHandler(tokens auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		tokens: tokens,
		pepper: pepper,
	}
}

// Authenticate rejects unauthenticated requests with 401 and stores the
// caller's auth.Identity in the context of authenticated ones.
func (s *SecurityHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.identify(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		ctx := auth.WithIdentity(r.Context(), id)
		ctx = zctx.With(ctx,
			zap.Int64("user_id", id.UserID),
			zap.String("token_id", id.TokenID),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *SecurityHandler) identify(ctx context.Context, header string) (auth.Identity, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return auth.Identity{}, auth.ErrUnauthenticated
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Identity{}, auth.ErrUnauthenticated
	}

	hexHash := auth.HashToken(token, s.pepper)
	info, err := s.tokens.FindByHash(ctx, hexHash)
	if err != nil {
		if !errors.Is(err, auth.ErrUnauthenticated) {
			zctx.From(ctx).Error("Token lookup failed", zap.Error(err))
		}
		return auth.Identity{}, auth.ErrUnauthenticated
	}

	// The row was selected by hash; compare anyway in constant time so a
	// repository returning the wrong row cannot authenticate.
	want, err := hex.DecodeString(info.TokenHash)
	if err != nil {
		return auth.Identity{}, auth.ErrUnauthenticated
	}
	got, _ := hex.DecodeString(hexHash)
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return auth.Identity{}, auth.ErrUnauthenticated
	}

	return auth.Identity{UserID: info.UserID, TokenID: info.ID}, nil
}

// CallerKey keys verified callers on their access token ID. Requests that
// did not pass Authenticate share the "anonymous" key.
func CallerKey(r *http.Request) string {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return "anonymous"
	}
	return "token:" + id.TokenID
}

// currentUser returns the authenticated user's ID.
func currentUser(ctx context.Context) (int64, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return 0, auth.ErrUnauthenticated
	}
	return id.UserID, nil
}
