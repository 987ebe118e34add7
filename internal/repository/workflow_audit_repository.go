package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/database"
	"github.com/pesio-ai/be-procurement-assistant/internal/pkg/errors"
)

const auditSchema = `
	CREATE TABLE IF NOT EXISTS procurement_workflow_audit_log (
	    id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	    session_id   TEXT        NOT NULL,
	    action       TEXT        NOT NULL,
	    stage_before TEXT        NOT NULL,
	    stage_after  TEXT        NOT NULL,
	    performed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	    metadata     JSONB
	);
	CREATE INDEX IF NOT EXISTS idx_procurement_audit_session
	    ON procurement_workflow_audit_log (session_id, performed_at);
`

// WorkflowAuditRepository appends and reads immutable workflow audit log entries.
type WorkflowAuditRepository struct {
	db *database.DB
}

// NewWorkflowAuditRepository creates a new WorkflowAuditRepository.
func NewWorkflowAuditRepository(db *database.DB) *WorkflowAuditRepository {
	return &WorkflowAuditRepository{db: db}
}

// EnsureSchema creates the audit table if it does not exist.
func (r *WorkflowAuditRepository) EnsureSchema(ctx context.Context) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, auditSchema); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create audit schema")
		}
		return nil
	})
}

// Append inserts one audit entry. There is no update or delete.
func (r *WorkflowAuditRepository) Append(ctx context.Context, entry *WorkflowAuditEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal audit metadata")
		}
	}

	query := `
		INSERT INTO procurement_workflow_audit_log
		    (session_id, action, stage_before, stage_after, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text, performed_at
	`

	err := r.db.QueryRow(ctx, query,
		entry.SessionID,
		entry.Action,
		entry.StageBefore,
		entry.StageAfter,
		metadataJSON,
	).Scan(&entry.ID, &entry.PerformedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append audit entry")
	}
	return nil
}

// GetBySessionID returns the audit trail for a session ordered oldest-first.
func (r *WorkflowAuditRepository) GetBySessionID(ctx context.Context, sessionID string) ([]*WorkflowAuditEntry, error) {
	query := `
		SELECT id::text, session_id, action, stage_before, stage_after,
		       performed_at, metadata
		FROM procurement_workflow_audit_log
		WHERE session_id = $1
		ORDER BY performed_at ASC
	`

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get audit log")
	}
	defer rows.Close()

	var entries []*WorkflowAuditEntry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read audit log")
	}
	return entries, nil
}

type auditScanner interface {
	Scan(dest ...any) error
}

func scanAuditEntry(sc auditScanner) (*WorkflowAuditEntry, error) {
	entry := &WorkflowAuditEntry{}
	var metadataJSON []byte

	err := sc.Scan(
		&entry.ID,
		&entry.SessionID,
		&entry.Action,
		&entry.StageBefore,
		&entry.StageAfter,
		&entry.PerformedAt,
		&metadataJSON,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan audit entry")
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal audit metadata")
		}
	}

	return entry, nil
}
