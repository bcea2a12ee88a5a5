// Package auth authenticates workspace API keys.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// KeyPrefix starts every workspace API key.
const KeyPrefix = "wsk_"

// lookupPrefixLen is how many leading characters of a key are stored in clear.
const lookupPrefixLen = 8

var (
	ErrMissingAPIKey   = errors.New("missing authorization header")
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrAuthUnavailable = errors.New("authentication backend unavailable")
)

// WorkspaceContext is the authenticated caller.
type WorkspaceContext struct {
	WorkspaceID string
	KeyID       string
}

// Authenticator validates a bearer token and returns the workspace it belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*WorkspaceContext, error)
}

// ExtractBearerToken returns the wsk_ key from "Authorization: Bearer <key>".
func ExtractBearerToken(r *http.Request) (string, error) {
	token := r.Header.Get("Authorization")
	if token == "" {
		return "", ErrMissingAPIKey
	}
	// RFC 6750: the "Bearer" scheme is case-insensitive.
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = token[7:]
	} else {
		return "", ErrMissingAPIKey
	}
	token = strings.TrimSpace(token)
	if len(token) < lookupPrefixLen || !strings.HasPrefix(token, KeyPrefix) {
		return "", ErrInvalidAPIKey
	}
	return token, nil
}

type contextKey struct{}

// WithWorkspace returns a context carrying wc.
func WithWorkspace(ctx context.Context, wc *WorkspaceContext) context.Context {
	return context.WithValue(ctx, contextKey{}, wc)
}

// FromContext returns the authenticated workspace, or nil.
func FromContext(ctx context.Context) *WorkspaceContext {
	wc, _ := ctx.Value(contextKey{}).(*WorkspaceContext)
	return wc
}
