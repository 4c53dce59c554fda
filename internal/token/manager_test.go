package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/domain"
)

const testSecret = "test-secret-value"

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(t *testing.T, clock *fakeClock, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	m, err := NewManager(testSecret, opts...)
	require.NoError(t, err)
	return m
}

func testPrincipal(role domain.Role) *domain.Principal {
	return &domain.Principal{ID: "4c1f3f0e-7d8f-4b59-9d55-6a1f0b8f2e11", LoginName: "validNick1", Role: role}
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager("   ")
	assert.Error(t, err)
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, clock)

	for _, role := range []domain.Role{domain.RoleStandard, domain.RoleAdmin} {
		p := testPrincipal(role)
		tok, err := m.IssueAccess(p)
		require.NoError(t, err)
		assert.Equal(t, domain.TokenKindAccess, tok.Kind)
		assert.True(t, tok.ExpiresAt.Equal(clock.t.Add(60*time.Minute)))

		id, err := m.Validate(tok.Value)
		require.NoError(t, err)
		assert.Equal(t, p.ID, id.PrincipalID)
		assert.Equal(t, role, id.Role)
	}
}

func TestValidateMissing(t *testing.T) {
	m := newTestManager(t, &fakeClock{t: time.Now()})
	_, err := m.Validate("")
	assert.ErrorIs(t, err, domain.ErrTokenMissing)
	assert.ErrorIs(t, err, domain.ErrAuthentication)
}

func TestValidateRejectsAnySingleCharacterChange(t *testing.T) {
	m := newTestManager(t, &fakeClock{t: time.Now()})
	tok, err := m.IssueAccess(testPrincipal(domain.RoleStandard))
	require.NoError(t, err)

	raw := []byte(tok.Value)
	for i := range raw {
		mutated := make([]byte, len(raw))
		copy(mutated, raw)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		_, err := m.Validate(string(mutated))
		require.ErrorIs(t, err, domain.ErrTokenInvalid, "position %d", i)
	}
}

func TestValidateExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, clock, WithAccessTTL(10*time.Minute))

	tok, err := m.IssueAccess(testPrincipal(domain.RoleStandard))
	require.NoError(t, err)

	clock.Advance(9 * time.Minute)
	_, err = m.Validate(tok.Value)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = m.Validate(tok.Value)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)

	id, err := m.ValidateIgnoringExpiry(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, testPrincipal(domain.RoleStandard).ID, id.PrincipalID)
}

func TestValidateRejectsForeignTokens(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newTestManager(t, clock)
	now := clock.t

	base := func() Claims {
		return Claims{
			Role:      "standard",
			TokenType: "access",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    defaultIssuer,
				Subject:   "user-1",
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
	}
	sign := func(c Claims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	wrongIssuer := base()
	wrongIssuer.Issuer = "someone-else"
	refreshType := base()
	refreshType.TokenType = "refresh"
	unknownRole := base()
	unknownRole.Role = "superuser"
	noSubject := base()
	noSubject.Subject = ""
	noExpiry := base()
	noExpiry.ExpiresAt = nil

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, base()).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, base()).SignedString([]byte(testSecret))
	require.NoError(t, err)

	cases := map[string]string{
		"other secret":  sign(base(), "another-secret"),
		"wrong issuer":  sign(wrongIssuer, testSecret),
		"refresh type":  sign(refreshType, testSecret),
		"unknown role":  sign(unknownRole, testSecret),
		"no subject":    sign(noSubject, testSecret),
		"no expiry":     sign(noExpiry, testSecret),
		"alg none":      none,
		"other alg":     hs512,
		"garbage":       "not-a-token",
		"two segments":  "abc.def",
		"bearer prefix": "Bearer " + sign(base(), testSecret),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := m.Validate(raw)
			assert.ErrorIs(t, err, domain.ErrTokenInvalid)
		})
	}

	_, err = m.Validate(sign(base(), testSecret))
	assert.NoError(t, err)
}

func TestValidateIssuerOption(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	a := newTestManager(t, clock, WithIssuer("hotels"))
	b := newTestManager(t, clock, WithIssuer("todos"))

	tok, err := a.IssueAccess(testPrincipal(domain.RoleStandard))
	require.NoError(t, err)
	_, err = b.Validate(tok.Value)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
	_, err = b.ValidateIgnoringExpiry(tok.Value)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}

func TestIssueAccessRejectsBadPrincipal(t *testing.T) {
	m := newTestManager(t, &fakeClock{t: time.Now()})
	_, err := m.IssueAccess(nil)
	assert.Error(t, err)
	_, err = m.IssueAccess(&domain.Principal{ID: "x", Role: "root"})
	assert.Error(t, err)
}

func TestTokensCarryDistinctIDs(t *testing.T) {
	m := newTestManager(t, &fakeClock{t: time.Now()})
	p := testPrincipal(domain.RoleStandard)
	a, err := m.IssueAccess(p)
	require.NoError(t, err)
	b, err := m.IssueAccess(p)
	require.NoError(t, err)
	assert.NotEqual(t, a.Value, b.Value)
	assert.Equal(t, 3, len(strings.Split(a.Value, ".")))
}
