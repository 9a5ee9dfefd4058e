package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookflow/bookflow/internal/domain/audit"
)

// AuditRepository implements audit.Repository.
type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Create(ctx context.Context, log *audit.Log) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs
		(audit_id, entity_type, entity_id, action, actor, stage, reason, details, signature, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, log.AuditID, log.EntityType, log.EntityID, log.Action, log.Actor, log.Stage, log.Reason, log.Details, log.Signature, log.CreatedAt)
	return err
}

func (r *AuditRepository) GetByID(ctx context.Context, auditID uuid.UUID) (*audit.Log, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, audit_id, entity_type, entity_id, action, actor, stage, reason, details, signature, created_at
		FROM audit_logs WHERE audit_id=$1
	`, auditID)
	var log audit.Log
	err := row.Scan(&log.ID, &log.AuditID, &log.EntityType, &log.EntityID, &log.Action, &log.Actor, &log.Stage, &log.Reason, &log.Details, &log.Signature, &log.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &log, nil
}
