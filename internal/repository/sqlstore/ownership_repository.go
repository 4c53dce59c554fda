package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gatekeeper/internal/domain"
	"gatekeeper/internal/repository"
)

const createResourcesTable = `
CREATE TABLE IF NOT EXISTS resources (
	kind TEXT NOT NULL,
	id TEXT NOT NULL,
	owner_id TEXT NOT NULL REFERENCES principals(id),
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (kind, id)
);
`

const createResourcesOwnerIndex = `
CREATE INDEX IF NOT EXISTS idx_resources_owner ON resources (kind, owner_id);
`

type OwnershipRepository struct {
	db *DB
}

func NewOwnershipRepository(db *DB) repository.OwnershipRepository {
	return &OwnershipRepository{db: db}
}

func (r *OwnershipRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createResourcesTable); err != nil {
		return fmt.Errorf("create resources table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, createResourcesOwnerIndex); err != nil {
		return fmt.Errorf("create resources index: %w", err)
	}
	return nil
}

func (r *OwnershipRepository) Create(ctx context.Context, res *domain.OwnedResource) error {
	now := time.Now().UTC()
	if res.CreatedAt.IsZero() {
		res.CreatedAt = now
	}
	res.UpdatedAt = res.CreatedAt

	_, err := r.db.ExecContext(ctx, r.db.rebind(`
INSERT INTO resources (kind, id, owner_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)`),
		res.Kind,
		res.ID,
		res.OwnerID,
		res.CreatedAt,
		res.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert resource: %w", err)
	}
	return nil
}

func (r *OwnershipRepository) Get(ctx context.Context, kind, id string) (*domain.OwnedResource, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(`
SELECT kind, id, owner_id, created_at, updated_at
FROM resources
WHERE kind = ? AND id = ?`),
		kind, id,
	)
	res, err := scanResource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrResourceAbsent
	}
	return res, err
}

func (r *OwnershipRepository) Touch(ctx context.Context, kind, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, r.db.rebind(`
UPDATE resources SET updated_at = ? WHERE kind = ? AND id = ?`),
		at.UTC(), kind, id,
	)
	if err != nil {
		return fmt.Errorf("touch resource: %w", err)
	}
	return requireOneRow(res)
}

func (r *OwnershipRepository) Delete(ctx context.Context, kind, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.rebind(`
DELETE FROM resources WHERE kind = ? AND id = ?`),
		kind, id,
	)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	return requireOneRow(res)
}

func (r *OwnershipRepository) List(ctx context.Context, kind, ownerID string) ([]domain.OwnedResource, error) {
	query := `
SELECT kind, id, owner_id, created_at, updated_at
FROM resources
WHERE kind = ?`
	args := []any{kind}
	if ownerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, r.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var out []domain.OwnedResource
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return out, nil
}

func scanResource(row rowScanner) (*domain.OwnedResource, error) {
	var res domain.OwnedResource
	if err := row.Scan(
		&res.Kind,
		&res.ID,
		&res.OwnerID,
		&res.CreatedAt,
		&res.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan resource: %w", err)
	}
	return &res, nil
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrResourceAbsent
	}
	return nil
}
