package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/triage-ai/palisade/services/integration_engine/internal/errs"
	"github.com/triage-ai/palisade/services/integration_engine/internal/integration"
)

const integrationColumns = `id, workspace_id, name, integration_type, configuration, author_id, created_at, updated_at`

// FindIntegrationByName returns the workspace's integration with the given name.
func (s *Store) FindIntegrationByName(ctx context.Context, workspaceID, name string) (*integration.Integration, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+integrationColumns+`
		FROM integrations
		WHERE workspace_id = $1 AND name = $2 AND deleted_at IS NULL`,
		workspaceID, name,
	)
	integ, err := scanIntegration(row)
	if isNoRows(err) {
		return nil, errs.NotFound("integration %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("FindIntegrationByName: %w", err)
	}
	return integ, nil
}

// FindIntegrationByID returns the workspace's integration with the given id.
func (s *Store) FindIntegrationByID(ctx context.Context, workspaceID, id string) (*integration.Integration, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+integrationColumns+`
		FROM integrations
		WHERE workspace_id = $1 AND id = $2 AND deleted_at IS NULL`,
		workspaceID, id,
	)
	integ, err := scanIntegration(row)
	if isNoRows(err) {
		return nil, errs.NotFound("integration %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("FindIntegrationByID: %w", err)
	}
	return integ, nil
}

// ListIntegrations returns the workspace's integrations, oldest first.
func (s *Store) ListIntegrations(ctx context.Context, workspaceID string) ([]*integration.Integration, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+integrationColumns+`
		FROM integrations
		WHERE workspace_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC, name ASC`,
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListIntegrations: %w", err)
	}
	defer rows.Close()

	var out []*integration.Integration
	for rows.Next() {
		integ, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("ListIntegrations: %w", err)
		}
		out = append(out, integ)
	}
	return out, rows.Err()
}

// CreateIntegrations inserts all integrations in a single transaction.
func (s *Store) CreateIntegrations(ctx context.Context, integrations []*integration.Integration) error {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		for _, integ := range integrations {
			cfg, err := integration.EncodeConfiguration(integ.Configuration)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO integrations (`+integrationColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				integ.ID, integ.WorkspaceID, integ.Name, string(integ.Type), []byte(cfg),
				integ.AuthorID, integ.CreatedAt, integ.UpdatedAt,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("CreateIntegrations: %w", err)
	}
	return nil
}

func scanIntegration(row pgx.Row) (*integration.Integration, error) {
	var (
		integ   integration.Integration
		typ     string
		rawConf []byte
	)
	if err := row.Scan(&integ.ID, &integ.WorkspaceID, &integ.Name, &typ, &rawConf,
		&integ.AuthorID, &integ.CreatedAt, &integ.UpdatedAt); err != nil {
		return nil, err
	}
	integ.Type = integration.Type(typ)
	cfg, err := integration.DecodeConfiguration(integ.Type, rawConf)
	if err != nil {
		return nil, err
	}
	integ.Configuration = cfg
	return &integ, nil
}
