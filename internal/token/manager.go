package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gatekeeper/internal/domain"
	"gatekeeper/internal/ids"
)

const (
	defaultIssuer     = "gatekeeper"
	defaultAccessTTL  = 60 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour

	accessTokenType = "access"
)

// Claims carried by access tokens.
type Claims struct {
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Manager issues and validates access tokens and mints refresh token secrets.
type Manager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithAccessTTL sets the access token lifetime.
func WithAccessTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.accessTTL = d
		}
	}
}

// WithRefreshTTL sets the refresh token lifetime.
func WithRefreshTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.refreshTTL = d
		}
	}
}

// WithIssuer overrides the iss claim written and required by the manager.
func WithIssuer(issuer string) Option {
	return func(m *Manager) {
		if v := strings.TrimSpace(issuer); v != "" {
			m.issuer = v
		}
	}
}

// WithClock injects the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager builds a manager signing with HS256 and the given secret.
func NewManager(secret string, opts ...Option) (*Manager, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	m := &Manager{
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Now returns the manager's current time in UTC.
func (m *Manager) Now() time.Time {
	return m.now().UTC()
}

// AccessTTL returns the configured access token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

// IssueAccess signs an access token for the principal.
func (m *Manager) IssueAccess(p *domain.Principal) (domain.Token, error) {
	if p == nil || strings.TrimSpace(p.ID) == "" {
		return domain.Token{}, errors.New("principal id is required")
	}
	if _, err := domain.ParseRole(string(p.Role)); err != nil {
		return domain.Token{}, err
	}

	now := m.Now().Truncate(time.Second)
	expiresAt := now.Add(m.accessTTL)
	claims := Claims{
		Role:      string(p.Role),
		TokenType: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        ids.NewULID(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return domain.Token{}, fmt.Errorf("sign token: %w", err)
	}
	return domain.Token{
		Value:     signed,
		SubjectID: p.ID,
		Kind:      domain.TokenKindAccess,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate resolves a raw access token to the identity it was issued for.
// The error is one of domain.ErrTokenMissing, domain.ErrTokenInvalid or domain.ErrTokenExpired.
func (m *Manager) Validate(raw string) (domain.Identity, error) {
	return m.validate(raw, true)
}

// ValidateIgnoringExpiry checks signature, issuer and claims but accepts an expired token.
// It is used when an access token is presented together with a refresh token.
func (m *Manager) ValidateIgnoringExpiry(raw string) (domain.Identity, error) {
	return m.validate(raw, false)
}

func (m *Manager) validate(raw string, checkExpiry bool) (domain.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Identity{}, domain.ErrTokenMissing
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
	}
	if checkExpiry {
		opts = append(opts,
			jwt.WithIssuer(m.issuer),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(m.now),
		)
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, domain.ErrTokenExpired
		}
		return domain.Identity{}, domain.ErrTokenInvalid
	}
	if !parsed.Valid {
		return domain.Identity{}, domain.ErrTokenInvalid
	}

	if claims.Issuer != m.issuer || claims.TokenType != accessTokenType {
		return domain.Identity{}, domain.ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.ExpiresAt == nil {
		return domain.Identity{}, domain.ErrTokenInvalid
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return domain.Identity{}, domain.ErrTokenInvalid
	}
	return domain.Identity{PrincipalID: claims.Subject, Role: role}, nil
}
