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

const createPrincipalsTable = `
CREATE TABLE IF NOT EXISTS principals (
	id TEXT PRIMARY KEY,
	login_name TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

type PrincipalRepository struct {
	db *DB
}

func NewPrincipalRepository(db *DB) repository.PrincipalRepository {
	return &PrincipalRepository{db: db}
}

func (r *PrincipalRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createPrincipalsTable); err != nil {
		return fmt.Errorf("create principals table: %w", err)
	}
	return nil
}

func (r *PrincipalRepository) Create(ctx context.Context, p *domain.Principal) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, r.db.rebind(`
INSERT INTO principals (id, login_name, password_hash, role, created_at)
VALUES (?, ?, ?, ?, ?)`),
		p.ID,
		p.LoginName,
		p.PasswordHash,
		string(p.Role),
		p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert principal: %w", domain.ErrDuplicateIdentity)
		}
		return fmt.Errorf("insert principal: %w", err)
	}
	return nil
}

func (r *PrincipalRepository) GetByLogin(ctx context.Context, loginName string) (*domain.Principal, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(`
SELECT id, login_name, password_hash, role, created_at
FROM principals
WHERE login_name = ?`),
		loginName,
	)
	return scanPrincipal(row)
}

func (r *PrincipalRepository) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(`
SELECT id, login_name, password_hash, role, created_at
FROM principals
WHERE id = ?`),
		id,
	)
	return scanPrincipal(row)
}

func scanPrincipal(row rowScanner) (*domain.Principal, error) {
	var (
		p    domain.Principal
		role string
	)
	if err := row.Scan(
		&p.ID,
		&p.LoginName,
		&p.PasswordHash,
		&role,
		&p.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("scan principal: %w", err)
	}
	parsed, err := domain.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("scan principal %s: %w", p.ID, err)
	}
	p.Role = parsed
	return &p, nil
}
