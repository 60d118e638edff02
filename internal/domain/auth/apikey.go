// Package auth defines API key identities for the admin endpoints.
package auth

import (
	"context"
	"slices"
)

// ScopeRefunds allows the key holder to trigger gateway refunds.
const ScopeRefunds = "refunds"

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key grants the given scope.
func (k *APIKeyInfo) HasScope(scope string) bool {
	return k != nil && slices.Contains(k.Scopes, scope)
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
