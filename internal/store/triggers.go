package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/triage-ai/palisade/services/integration_engine/internal/errs"
	"github.com/triage-ai/palisade/services/integration_engine/internal/trigger"
)

const triggerColumns = `uuid, workspace_id, project_id, commit_uuid, document_uuid, trigger_type, configuration, created_at, updated_at`

// FindCommit returns a commit of one of the workspace's projects.
func (s *Store) FindCommit(ctx context.Context, workspaceID, commitUUID string) (*trigger.Commit, error) {
	var c trigger.Commit
	err := s.db.QueryRow(ctx, `
		SELECT c.uuid, c.project_id, c.merged_at
		FROM commits c
		JOIN projects p ON p.id = c.project_id
		WHERE p.workspace_id = $1 AND c.uuid = $2 AND c.deleted_at IS NULL`,
		workspaceID, commitUUID,
	).Scan(&c.UUID, &c.ProjectID, &c.MergedAt)
	if isNoRows(err) {
		return nil, errs.NotFound("commit %s not found", commitUUID)
	}
	if err != nil {
		return nil, fmt.Errorf("FindCommit: %w", err)
	}
	return &c, nil
}

// FindTrigger returns a live trigger by uuid.
func (s *Store) FindTrigger(ctx context.Context, workspaceID, triggerUUID string) (*trigger.DocumentTrigger, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+triggerColumns+`
		FROM document_triggers
		WHERE workspace_id = $1 AND uuid = $2 AND deleted_at IS NULL`,
		workspaceID, triggerUUID,
	)
	t, err := scanTrigger(row)
	if isNoRows(err) {
		return nil, errs.NotFound("trigger %s not found", triggerUUID)
	}
	if err != nil {
		return nil, fmt.Errorf("FindTrigger: %w", err)
	}
	return t, nil
}

// ListDocumentTriggers returns the live triggers of a document in a commit.
func (s *Store) ListDocumentTriggers(ctx context.Context, workspaceID, commitUUID, documentUUID string) ([]*trigger.DocumentTrigger, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+triggerColumns+`
		FROM document_triggers
		WHERE workspace_id = $1 AND commit_uuid = $2 AND document_uuid = $3 AND deleted_at IS NULL
		ORDER BY created_at ASC`,
		workspaceID, commitUUID, documentUUID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListDocumentTriggers: %w", err)
	}
	defer rows.Close()

	var out []*trigger.DocumentTrigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, fmt.Errorf("ListDocumentTriggers: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// WithTx runs fn with transactional trigger writes. Nothing is written unless fn returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(tx trigger.TxRepository) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return fn(&triggerTx{tx: tx})
	})
}

type triggerTx struct {
	tx pgx.Tx
}

func (t *triggerTx) InsertTrigger(ctx context.Context, dt *trigger.DocumentTrigger) error {
	cfg, err := trigger.EncodeConfiguration(dt.Configuration)
	if err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO document_triggers (`+triggerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		dt.UUID, dt.WorkspaceID, dt.ProjectID, dt.CommitUUID, dt.DocumentUUID,
		string(dt.TriggerType), []byte(cfg), dt.CreatedAt, dt.UpdatedAt,
	); err != nil {
		return fmt.Errorf("InsertTrigger: %w", err)
	}
	return nil
}

func (t *triggerTx) UpdateTrigger(ctx context.Context, dt *trigger.DocumentTrigger) error {
	cfg, err := trigger.EncodeConfiguration(dt.Configuration)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE document_triggers
		SET configuration = $3, updated_at = $4
		WHERE workspace_id = $1 AND uuid = $2 AND deleted_at IS NULL`,
		dt.WorkspaceID, dt.UUID, []byte(cfg), dt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("UpdateTrigger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("trigger %s not found", dt.UUID)
	}
	return nil
}

func (t *triggerTx) DeleteTrigger(ctx context.Context, workspaceID, triggerUUID string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE document_triggers
		SET deleted_at = $3
		WHERE workspace_id = $1 AND uuid = $2 AND deleted_at IS NULL`,
		workspaceID, triggerUUID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("DeleteTrigger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound("trigger %s not found", triggerUUID)
	}
	return nil
}

func scanTrigger(row pgx.Row) (*trigger.DocumentTrigger, error) {
	var (
		t       trigger.DocumentTrigger
		typ     string
		rawConf []byte
	)
	if err := row.Scan(&t.UUID, &t.WorkspaceID, &t.ProjectID, &t.CommitUUID, &t.DocumentUUID,
		&typ, &rawConf, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.TriggerType = trigger.Type(typ)
	cfg, err := trigger.DecodeConfiguration(t.TriggerType, rawConf)
	if err != nil {
		return nil, err
	}
	t.Configuration = cfg
	return &t, nil
}
