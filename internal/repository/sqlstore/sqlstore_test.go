package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, NewPrincipalRepository(db).Init(ctx))
	require.NoError(t, NewRefreshTokenRepository(db).Init(ctx))
	require.NoError(t, NewOwnershipRepository(db).Init(ctx))
	return db
}

func seedPrincipal(t *testing.T, db *DB, id, login string) *domain.Principal {
	t.Helper()
	p := &domain.Principal{ID: id, LoginName: login, PasswordHash: "$2a$04$hash", Role: domain.RoleStandard}
	require.NoError(t, NewPrincipalRepository(db).Create(context.Background(), p))
	return p
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := Wrap(nil, DialectPostgres)
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := Wrap(nil, DialectSQLite)
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestPrincipalRepositoryRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewPrincipalRepository(db)
	ctx := context.Background()

	p := &domain.Principal{ID: "p-1", LoginName: "validNick1", PasswordHash: "$2a$04$abc", Role: domain.RoleAdmin}
	require.NoError(t, repo.Create(ctx, p))
	assert.False(t, p.CreatedAt.IsZero())

	got, err := repo.GetByLogin(ctx, "validNick1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", got.ID)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.Equal(t, "$2a$04$abc", got.PasswordHash)
	assert.WithinDuration(t, p.CreatedAt, got.CreatedAt, time.Second)

	got, err = repo.GetByID(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, "validNick1", got.LoginName)

	_, err = repo.GetByLogin(ctx, "validnick1")
	assert.ErrorIs(t, err, domain.ErrPrincipalNotFound)
	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrPrincipalNotFound)
}

func TestPrincipalRepositoryDuplicateLogin(t *testing.T) {
	db := openTestDB(t)
	repo := NewPrincipalRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.Principal{ID: "a", LoginName: "dup", PasswordHash: "h", Role: domain.RoleStandard}))
	err := repo.Create(ctx, &domain.Principal{ID: "b", LoginName: "dup", PasswordHash: "h", Role: domain.RoleStandard})
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)
}

func TestPrincipalRepositoryConcurrentRegistration(t *testing.T) {
	db := openTestDB(t)
	repo := NewPrincipalRepository(db)
	ctx := context.Background()

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		duplicate int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Create(ctx, &domain.Principal{
				ID:           fmt.Sprintf("p-%d", i),
				LoginName:    "racer",
				PasswordHash: "h",
				Role:         domain.RoleStandard,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, domain.ErrDuplicateIdentity):
				duplicate++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, duplicate)
}

func TestRefreshTokenRepository(t *testing.T) {
	db := openTestDB(t)
	seedPrincipal(t, db, "p-1", "one")
	repo := NewRefreshTokenRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, id := range []string{"r-1", "r-2"} {
		require.NoError(t, repo.Create(ctx, &domain.RefreshRecord{
			ID:         id,
			SubjectID:  "p-1",
			SecretHash: "hash-" + id,
			IssuedAt:   now,
			ExpiresAt:  now.Add(time.Hour),
		}))
	}

	rec, err := repo.Get(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", rec.SubjectID)
	assert.Equal(t, "hash-r-1", rec.SecretHash)
	assert.False(t, rec.Revoked)
	assert.WithinDuration(t, now.Add(time.Hour), rec.ExpiresAt, time.Second)

	ok, err := repo.Revoke(ctx, "r-1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Revoke(ctx, "r-1")
	require.NoError(t, err)
	assert.False(t, ok, "second revoke must not report a transition")

	require.NoError(t, repo.RevokeBySubject(ctx, "p-1"))
	rec, err = repo.Get(ctx, "r-2")
	require.NoError(t, err)
	assert.True(t, rec.Revoked)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRefreshNotFound)
}

func TestOwnershipRepository(t *testing.T) {
	db := openTestDB(t)
	seedPrincipal(t, db, "alice", "alice")
	seedPrincipal(t, db, "bob", "bob")
	repo := NewOwnershipRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &domain.OwnedResource{Kind: "todos", ID: "t-1", OwnerID: "alice"}))
	require.NoError(t, repo.Create(ctx, &domain.OwnedResource{Kind: "todos", ID: "t-2", OwnerID: "bob"}))
	require.NoError(t, repo.Create(ctx, &domain.OwnedResource{Kind: "hotels", ID: "t-1", OwnerID: "bob"}))

	got, err := repo.Get(ctx, "todos", "t-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.OwnerID)

	_, err = repo.Get(ctx, "todos", "t-9")
	assert.ErrorIs(t, err, domain.ErrResourceAbsent)

	mine, err := repo.List(ctx, "todos", "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "t-1", mine[0].ID)

	all, err := repo.List(ctx, "todos", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	later := time.Now().Add(time.Minute).UTC()
	require.NoError(t, repo.Touch(ctx, "todos", "t-1", later))
	got, err = repo.Get(ctx, "todos", "t-1")
	require.NoError(t, err)
	assert.WithinDuration(t, later, got.UpdatedAt, time.Second)

	require.NoError(t, repo.Delete(ctx, "todos", "t-1"))
	assert.ErrorIs(t, repo.Delete(ctx, "todos", "t-1"), domain.ErrResourceAbsent)
	assert.ErrorIs(t, repo.Touch(ctx, "todos", "t-1", later), domain.ErrResourceAbsent)

	// an owner must be a registered principal
	assert.Error(t, repo.Create(ctx, &domain.OwnedResource{Kind: "todos", ID: "t-3", OwnerID: "ghost"}))
}

func TestPostgresUniqueViolationMapsToDuplicate(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec(`INSERT INTO principals \(id, login_name, password_hash, role, created_at\)\s+VALUES \(\$1, \$2, \$3, \$4, \$5\)`).
		WithArgs("p-1", "dup", "h", "standard", sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	repo := NewPrincipalRepository(Wrap(sqlDB, DialectPostgres))
	err = repo.Create(context.Background(), &domain.Principal{ID: "p-1", LoginName: "dup", PasswordHash: "h", Role: domain.RoleStandard})
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepositoryPropagatesDriverErrors(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	boom := errors.New("connection reset")
	mock.ExpectQuery(`SELECT id, login_name, password_hash, role, created_at\s+FROM principals\s+WHERE login_name = \$1`).
		WithArgs("someone").
		WillReturnError(boom)
	mock.ExpectQuery(`FROM principals`).
		WithArgs("p-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "login_name", "password_hash", "role", "created_at"}).
			AddRow("p-2", "x", "h", "root", time.Now()))

	repo := NewPrincipalRepository(Wrap(sqlDB, DialectPostgres))
	_, err = repo.GetByLogin(context.Background(), "someone")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrPrincipalNotFound)

	_, err = repo.GetByID(context.Background(), "p-2")
	assert.Error(t, err, "unknown stored role must not load")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshRevokeReportsNoTransition(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked = \$1 WHERE id = \$2 AND revoked = \$3`).
		WithArgs(true, "r-1", false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := NewRefreshTokenRepository(Wrap(sqlDB, DialectPostgres)).Revoke(context.Background(), "r-1")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
