package store

import (
	"context"
	"fmt"
)

// APIKeyRow is a workspace API key as stored: only a bcrypt hash of the key is kept.
type APIKeyRow struct {
	ID          string
	WorkspaceID string
	KeyHash     string
}

// LookupAPIKeyByPrefix returns the live API key whose first characters match prefix.
func (s *Store) LookupAPIKeyByPrefix(ctx context.Context, prefix string) (*APIKeyRow, error) {
	var r APIKeyRow
	err := s.db.QueryRow(ctx, `
		SELECT id, workspace_id, key_hash
		FROM api_keys
		WHERE key_prefix = $1 AND deleted_at IS NULL`,
		prefix,
	).Scan(&r.ID, &r.WorkspaceID, &r.KeyHash)
	if err != nil {
		return nil, fmt.Errorf("LookupAPIKeyByPrefix: %w", err)
	}
	return &r, nil
}
