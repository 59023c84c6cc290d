package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"syncly-backend/internal/domain"
)

// ReconciliationRepository persiste las mitades fallidas de escrituras
// que tocan identity provider y tabla de perfiles, para limpieza fuera
// de banda.
type ReconciliationRepository interface {
	Record(ctx context.Context, rec domain.ReconciliationRecord) error
	Pending(ctx context.Context) ([]domain.ReconciliationRecord, error)
	Resolve(ctx context.Context, id string) error
}

// PgReconciliationRepository implementa ReconciliationRepository usando pgxpool.
type PgReconciliationRepository struct {
	pool *pgxpool.Pool
}

func NewPgReconciliationRepository(pool *pgxpool.Pool) *PgReconciliationRepository {
	return &PgReconciliationRepository{pool: pool}
}

func (r *PgReconciliationRepository) Record(ctx context.Context, rec domain.ReconciliationRecord) error {
	const query = `
		INSERT INTO reconciliations (id, uid, email, action, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.UID,
		rec.Email,
		rec.Action,
		rec.Reason,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record reconciliation: %w", err)
	}
	return nil
}

func (r *PgReconciliationRepository) Pending(ctx context.Context) ([]domain.ReconciliationRecord, error) {
	const query = `
		SELECT id, uid, email, action, reason, created_at, resolved_at
		FROM reconciliations
		WHERE resolved_at IS NULL
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list reconciliations: %w", err)
	}
	defer rows.Close()

	var records []domain.ReconciliationRecord
	for rows.Next() {
		var rec domain.ReconciliationRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.UID,
			&rec.Email,
			&rec.Action,
			&rec.Reason,
			&rec.CreatedAt,
			&rec.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reconciliation: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PgReconciliationRepository) Resolve(ctx context.Context, id string) error {
	const query = `
		UPDATE reconciliations
		SET resolved_at = now()
		WHERE id = $1 AND resolved_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("resolve reconciliation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
