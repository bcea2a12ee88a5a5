package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/triage-ai/palisade/services/integration_engine/internal/store"
	"github.com/triage-ai/palisade/services/integration_engine/internal/swr"
)

// KeyStore looks up stored API keys by their clear-text prefix.
type KeyStore interface {
	LookupAPIKeyByPrefix(ctx context.Context, prefix string) (*store.APIKeyRow, error)
}

// PostgresAuthenticator validates API keys against the api_keys table. Results
// are cached with stale-while-revalidate to keep bcrypt off the hot path.
type PostgresAuthenticator struct {
	store  KeyStore
	cache  *swr.Cache[*WorkspaceContext]
	logger *zap.Logger
}

// PostgresAuthConfig configures the PostgresAuthenticator.
type PostgresAuthConfig struct {
	Store    KeyStore
	CacheTTL time.Duration // Default: 30s
	Logger   *zap.Logger
}

// NewPostgresAuthenticator creates a new authenticator backed by PostgreSQL.
func NewPostgresAuthenticator(cfg PostgresAuthConfig) *PostgresAuthenticator {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresAuthenticator{
		store:  cfg.Store,
		cache:  swr.New[*WorkspaceContext](ttl),
		logger: logger,
	}
}

func (a *PostgresAuthenticator) Authenticate(ctx context.Context, apiKey string) (*WorkspaceContext, error) {
	result := a.cache.Get(apiKey)
	if result.Hit {
		if result.NeedsRefresh {
			go a.backgroundRefresh(apiKey)
		}
		return result.Value, nil
	}

	wc, err := a.lookupAndVerify(ctx, apiKey)
	if err != nil {
		if errors.Is(err, ErrInvalidAPIKey) {
			return nil, ErrInvalidAPIKey
		}
		a.logger.Warn("auth DB unreachable", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}

	a.cache.Set(apiKey, wc)
	return wc, nil
}

// backgroundRefresh re-verifies a stale key. A failed refresh evicts the entry
// so the next request verifies synchronously.
func (a *PostgresAuthenticator) backgroundRefresh(apiKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wc, err := a.lookupAndVerify(ctx, apiKey)
	if err != nil {
		a.logger.Warn("background auth refresh failed", zap.Error(err))
		a.cache.Delete(apiKey)
		return
	}
	a.cache.Set(apiKey, wc)
}

func (a *PostgresAuthenticator) lookupAndVerify(ctx context.Context, apiKey string) (*WorkspaceContext, error) {
	if len(apiKey) < lookupPrefixLen {
		return nil, ErrInvalidAPIKey
	}

	row, err := a.store.LookupAPIKeyByPrefix(ctx, apiKey[:lookupPrefixLen])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInvalidAPIKey
	}
	if err != nil {
		return nil, fmt.Errorf("lookupAndVerify: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.KeyHash), []byte(apiKey)); err != nil {
		return nil, ErrInvalidAPIKey
	}
	return &WorkspaceContext{WorkspaceID: row.WorkspaceID, KeyID: row.ID}, nil
}
