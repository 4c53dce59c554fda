package token

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/domain"
)

func TestIssueRefresh(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, clock, WithRefreshTTL(48*time.Hour))

	wire, rec, err := m.IssueRefresh("user-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", rec.SubjectID)
	assert.True(t, rec.ExpiresAt.Equal(clock.t.Add(48*time.Hour)))
	assert.False(t, rec.Revoked)

	id, secret, err := SplitRefresh(wire)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, id)
	assert.NotContains(t, rec.SecretHash, secret)
	assert.True(t, SecretMatches(rec.SecretHash, secret))
	assert.False(t, SecretMatches(rec.SecretHash, secret+"x"))

	_, _, err = m.IssueRefresh(" ")
	assert.Error(t, err)
}

func TestIssueRefreshUnique(t *testing.T) {
	m := newTestManager(t, &fakeClock{t: time.Now()})
	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		wire, _, err := m.IssueRefresh("user-1")
		require.NoError(t, err)
		_, dup := seen[wire]
		require.False(t, dup)
		seen[wire] = struct{}{}
	}
}

func TestSplitRefreshRejectsMalformed(t *testing.T) {
	for _, wire := range []string{"", "noseparator", ".secret", "id.", "a.b.c", strings.Repeat(".", 3)} {
		_, _, err := SplitRefresh(wire)
		assert.ErrorIs(t, err, domain.ErrTokenInvalid, wire)
	}
}

func TestRefreshRecordExpired(t *testing.T) {
	now := time.Now()
	rec := domain.RefreshRecord{ExpiresAt: now}
	assert.True(t, rec.Expired(now))
	assert.False(t, rec.Expired(now.Add(-time.Second)))
}
