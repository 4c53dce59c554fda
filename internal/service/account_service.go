package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"gatekeeper/internal/domain"
	"gatekeeper/internal/ids"
	"gatekeeper/internal/metrics"
	"gatekeeper/internal/password"
	"gatekeeper/internal/repository"
	"gatekeeper/internal/token"
)

// RegisterInput is a registration request. Admin is honoured only when AdminSecret
// matches the configured secret, or when no secret is configured.
type RegisterInput struct {
	LoginName   string
	Password    string
	Admin       bool
	AdminSecret string
}

// RefreshInput is a refresh request: the last access token (possibly expired),
// the refresh token issued with it, and the user it claims to belong to.
type RefreshInput struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

// Session is what login and refresh hand back to the caller.
type Session struct {
	PrincipalID string
	Tokens      domain.TokenPair
}

// AccountService describes the principal lifecycle: registration, login, token
// refresh and bearer authentication.
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.Principal, error)
	Login(ctx context.Context, loginName, password string) (*Session, error)
	Refresh(ctx context.Context, in RefreshInput) (*Session, error)
	Logout(ctx context.Context, identity domain.Identity) error
	Authenticate(ctx context.Context, rawToken string) (domain.Identity, error)
	GetPrincipal(ctx context.Context, id string) (*domain.Principal, error)
	// EnsurePrincipal creates the account unless the login already exists. It
	// skips the admin secret and is meant for operator-controlled seeding.
	EnsurePrincipal(ctx context.Context, loginName, password string, role domain.Role) (bool, error)
}

// AccountDeps wires an AccountService.
type AccountDeps struct {
	Principals    repository.PrincipalRepository
	RefreshTokens repository.RefreshTokenRepository
	Tokens        *token.Manager
	Hasher        password.Hasher
	Policy        password.Policy
	AdminSecret   string
	Logger        logrus.FieldLogger
	Metrics       *metrics.Metrics
}

type accountService struct {
	principals    repository.PrincipalRepository
	refreshTokens repository.RefreshTokenRepository
	tokens        *token.Manager
	hasher        password.Hasher
	policy        password.Policy
	adminSecret   string
	log           logrus.FieldLogger
	metrics       *metrics.Metrics
}

func NewAccountService(deps AccountDeps) AccountService {
	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &accountService{
		principals:    deps.Principals,
		refreshTokens: deps.RefreshTokens,
		tokens:        deps.Tokens,
		hasher:        deps.Hasher,
		policy:        deps.Policy,
		adminSecret:   strings.TrimSpace(deps.AdminSecret),
		log:           log.WithField("component", "accounts"),
		metrics:       deps.Metrics,
	}
}

func (s *accountService) Register(ctx context.Context, in RegisterInput) (*domain.Principal, error) {
	role := domain.RoleStandard
	if in.Admin {
		role = domain.RoleAdmin
	}

	p, err := s.create(ctx, in.LoginName, in.Password, role, func() error {
		if in.Admin && s.adminSecret != "" &&
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(in.AdminSecret)), []byte(s.adminSecret)) != 1 {
			return fmt.Errorf("%w: admin registration secret mismatch", domain.ErrAuthorization)
		}
		return nil
	})
	s.metrics.ObserveRegistration(err == nil)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"principal_id": p.ID, "role": p.Role}).Info("principal registered")
	return p.Sanitized(), nil
}

func (s *accountService) EnsurePrincipal(ctx context.Context, loginName, raw string, role domain.Role) (bool, error) {
	if _, err := s.principals.GetByLogin(ctx, normalizeLogin(loginName)); err == nil {
		return false, nil
	} else if !errors.Is(err, domain.ErrPrincipalNotFound) {
		return false, err
	}

	if _, err := s.create(ctx, loginName, raw, role, nil); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdentity) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// create runs the shared registration pipeline: login check, password policy,
// optional gate, hash, insert.
func (s *accountService) create(ctx context.Context, loginName, raw string, role domain.Role, gate func() error) (*domain.Principal, error) {
	loginName = normalizeLogin(loginName)
	if loginName == "" {
		return nil, fmt.Errorf("%w: login name is required", domain.ErrValidation)
	}
	if _, err := domain.ParseRole(string(role)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := s.policy.Validate(raw); err != nil {
		return nil, err
	}
	if gate != nil {
		if err := gate(); err != nil {
			return nil, err
		}
	}

	hash, err := s.hasher.Hash(raw)
	if err != nil {
		return nil, err
	}

	p := &domain.Principal{
		ID:           ids.NewUUID(),
		LoginName:    loginName,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    s.tokens.Now(),
	}
	if err := s.principals.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *accountService) Login(ctx context.Context, loginName, raw string) (*Session, error) {
	sess, err := s.login(ctx, loginName, raw)
	s.metrics.ObserveLogin(err == nil)
	return sess, err
}

func (s *accountService) login(ctx context.Context, loginName, raw string) (*Session, error) {
	p, err := s.principals.GetByLogin(ctx, normalizeLogin(loginName))
	if err != nil {
		if errors.Is(err, domain.ErrPrincipalNotFound) {
			// burn a comparison so unknown logins cost the same as wrong passwords
			s.hasher.Compare("", raw)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Compare(p.PasswordHash, raw) {
		return nil, domain.ErrInvalidCredentials
	}

	sess, err := s.issue(ctx, p)
	if err != nil {
		return nil, err
	}
	s.log.WithField("principal_id", p.ID).Debug("login succeeded")
	return sess, nil
}

func (s *accountService) Refresh(ctx context.Context, in RefreshInput) (*Session, error) {
	sess, err := s.refresh(ctx, in)
	s.metrics.ObserveRefresh(err == nil)
	return sess, err
}

func (s *accountService) refresh(ctx context.Context, in RefreshInput) (*Session, error) {
	identity, err := s.tokens.ValidateIgnoringExpiry(in.AccessToken)
	if err != nil || identity.PrincipalID != strings.TrimSpace(in.UserID) {
		return nil, domain.ErrInvalidCredentials
	}

	id, secret, err := token.SplitRefresh(in.RefreshToken)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	rec, err := s.refreshTokens.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRefreshNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if rec.SubjectID != identity.PrincipalID || !token.SecretMatches(rec.SecretHash, secret) {
		return nil, domain.ErrInvalidCredentials
	}
	if rec.Revoked {
		s.revokeAfterReuse(ctx, rec.SubjectID, rec.ID)
		return nil, domain.ErrInvalidCredentials
	}
	if rec.Expired(s.tokens.Now()) {
		return nil, domain.ErrInvalidCredentials
	}

	rotated, err := s.refreshTokens.Revoke(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	if !rotated {
		// lost a race against another exchange of the same token
		s.revokeAfterReuse(ctx, rec.SubjectID, rec.ID)
		return nil, domain.ErrInvalidCredentials
	}

	p, err := s.principals.GetByID(ctx, rec.SubjectID)
	if err != nil {
		if errors.Is(err, domain.ErrPrincipalNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	return s.issue(ctx, p)
}

func (s *accountService) revokeAfterReuse(ctx context.Context, subjectID, recordID string) {
	entry := s.log.WithFields(logrus.Fields{"principal_id": subjectID, "refresh_id": recordID})
	entry.Warn("refresh token reuse detected, revoking all refresh tokens")
	if err := s.refreshTokens.RevokeBySubject(ctx, subjectID); err != nil {
		entry.WithError(err).Error("revoke refresh tokens after reuse")
	}
}

func (s *accountService) issue(ctx context.Context, p *domain.Principal) (*Session, error) {
	access, err := s.tokens.IssueAccess(p)
	if err != nil {
		return nil, err
	}
	wire, rec, err := s.tokens.IssueRefresh(p.ID)
	if err != nil {
		return nil, err
	}
	if err := s.refreshTokens.Create(ctx, &rec); err != nil {
		return nil, err
	}
	return &Session{
		PrincipalID: p.ID,
		Tokens: domain.TokenPair{
			Access: access,
			Refresh: domain.Token{
				Value:     wire,
				SubjectID: p.ID,
				Kind:      domain.TokenKindRefresh,
				IssuedAt:  rec.IssuedAt,
				ExpiresAt: rec.ExpiresAt,
			},
		},
	}, nil
}

func (s *accountService) Logout(ctx context.Context, identity domain.Identity) error {
	if identity.PrincipalID == "" {
		return domain.ErrTokenMissing
	}
	if err := s.refreshTokens.RevokeBySubject(ctx, identity.PrincipalID); err != nil {
		return err
	}
	s.log.WithField("principal_id", identity.PrincipalID).Debug("refresh tokens revoked")
	return nil
}

// Authenticate validates a bearer token and confirms its subject still exists.
// The role comes from the credential store, not the token.
func (s *accountService) Authenticate(ctx context.Context, rawToken string) (domain.Identity, error) {
	identity, err := s.tokens.Validate(rawToken)
	if err != nil {
		return domain.Identity{}, err
	}
	p, err := s.principals.GetByID(ctx, identity.PrincipalID)
	if err != nil {
		if errors.Is(err, domain.ErrPrincipalNotFound) {
			return domain.Identity{}, domain.ErrTokenInvalid
		}
		return domain.Identity{}, err
	}
	return domain.Identity{PrincipalID: p.ID, Role: p.Role}, nil
}

func (s *accountService) GetPrincipal(ctx context.Context, id string) (*domain.Principal, error) {
	p, err := s.principals.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrPrincipalNotFound) {
			return nil, domain.ErrResourceAbsent
		}
		return nil, err
	}
	return p.Sanitized(), nil
}

// normalizeLogin trims surrounding whitespace. Matching is otherwise exact and case-sensitive.
func normalizeLogin(loginName string) string {
	return strings.TrimSpace(loginName)
}
