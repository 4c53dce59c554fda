package repository

import (
	"context"
	"time"

	"gatekeeper/internal/domain"
)

// PrincipalRepository is the credential store. Create must fail with
// domain.ErrDuplicateIdentity when the login name is taken, atomically.
type PrincipalRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, principal *domain.Principal) error
	GetByLogin(ctx context.Context, loginName string) (*domain.Principal, error)
	GetByID(ctx context.Context, id string) (*domain.Principal, error)
}

// RefreshTokenRepository persists refresh token records.
type RefreshTokenRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, record *domain.RefreshRecord) error
	Get(ctx context.Context, id string) (*domain.RefreshRecord, error)
	// Revoke marks the record revoked and reports whether this call made the transition.
	Revoke(ctx context.Context, id string) (bool, error)
	RevokeBySubject(ctx context.Context, subjectID string) error
}

// OwnershipRepository tracks which principal owns each resource.
type OwnershipRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, resource *domain.OwnedResource) error
	Get(ctx context.Context, kind, id string) (*domain.OwnedResource, error)
	Touch(ctx context.Context, kind, id string, at time.Time) error
	Delete(ctx context.Context, kind, id string) error
	// List returns resources of kind, restricted to ownerID unless it is empty.
	List(ctx context.Context, kind, ownerID string) ([]domain.OwnedResource, error)
}
