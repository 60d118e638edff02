package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/sajjadh47/securionpay-checkout/internal/domain/auth"
)

// apiKeyCtxKey is the context key for the authenticated API key.
type apiKeyCtxKey struct{}

// APIKeyFromContext extracts the authenticated API key set by RequireAPIKey.
// It returns nil when the request was not authenticated.
func APIKeyFromContext(ctx context.Context) *auth.APIKeyInfo {
	info, _ := ctx.Value(apiKeyCtxKey{}).(*auth.APIKeyInfo)
	return info
}

// RequireAPIKey authenticates admin requests via HMAC-SHA256 hashed API keys:
// the Api-Key header value is hashed with the pepper, looked up in the
// repository, and compared in constant time. Unauthenticated requests get
// a 401.
func RequireAPIKey(apikeys auth.Repository, pepper []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Api-Key")
			if key == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			mac := hmac.New(sha256.New, pepper)
			mac.Write([]byte(key))
			hash := mac.Sum(nil)

			info, err := apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			stored, err := hex.DecodeString(info.KeyHash)
			if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyCtxKey{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
