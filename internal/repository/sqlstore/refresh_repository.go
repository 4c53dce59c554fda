package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gatekeeper/internal/domain"
	"gatekeeper/internal/repository"
)

const createRefreshTokensTable = `
CREATE TABLE IF NOT EXISTS refresh_tokens (
	id TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL REFERENCES principals(id),
	secret_hash TEXT NOT NULL,
	issued_at TIMESTAMP NOT NULL,
	expires_at TIMESTAMP NOT NULL,
	revoked BOOLEAN NOT NULL DEFAULT FALSE
);
`

const createRefreshTokensSubjectIndex = `
CREATE INDEX IF NOT EXISTS idx_refresh_tokens_subject ON refresh_tokens (subject_id);
`

type RefreshTokenRepository struct {
	db *DB
}

func NewRefreshTokenRepository(db *DB) repository.RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createRefreshTokensTable); err != nil {
		return fmt.Errorf("create refresh_tokens table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, createRefreshTokensSubjectIndex); err != nil {
		return fmt.Errorf("create refresh_tokens index: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) Create(ctx context.Context, rec *domain.RefreshRecord) error {
	_, err := r.db.ExecContext(ctx, r.db.rebind(`
INSERT INTO refresh_tokens (id, subject_id, secret_hash, issued_at, expires_at, revoked)
VALUES (?, ?, ?, ?, ?, ?)`),
		rec.ID,
		rec.SubjectID,
		rec.SecretHash,
		rec.IssuedAt.UTC(),
		rec.ExpiresAt.UTC(),
		rec.Revoked,
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) Get(ctx context.Context, id string) (*domain.RefreshRecord, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(`
SELECT id, subject_id, secret_hash, issued_at, expires_at, revoked
FROM refresh_tokens
WHERE id = ?`),
		id,
	)

	var rec domain.RefreshRecord
	if err := row.Scan(
		&rec.ID,
		&rec.SubjectID,
		&rec.SecretHash,
		&rec.IssuedAt,
		&rec.ExpiresAt,
		&rec.Revoked,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRefreshNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}
	return &rec, nil
}

func (r *RefreshTokenRepository) Revoke(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.rebind(`
UPDATE refresh_tokens SET revoked = ? WHERE id = ? AND revoked = ?`),
		true, id, false,
	)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke refresh token rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *RefreshTokenRepository) RevokeBySubject(ctx context.Context, subjectID string) error {
	if _, err := r.db.ExecContext(ctx, r.db.rebind(`
UPDATE refresh_tokens SET revoked = ? WHERE subject_id = ? AND revoked = ?`),
		true, subjectID, false,
	); err != nil {
		return fmt.Errorf("revoke refresh tokens for subject: %w", err)
	}
	return nil
}
