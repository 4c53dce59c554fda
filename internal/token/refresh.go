package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"gatekeeper/internal/domain"
	"gatekeeper/internal/ids"
)

const refreshSecretBytes = 32

// IssueRefresh mints a refresh token for subjectID. The wire value goes to the
// client; the record holds only the secret's hash and is what gets persisted.
func (m *Manager) IssueRefresh(subjectID string) (string, domain.RefreshRecord, error) {
	if strings.TrimSpace(subjectID) == "" {
		return "", domain.RefreshRecord{}, errors.New("subject id is required")
	}
	buf := make([]byte, refreshSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", domain.RefreshRecord{}, fmt.Errorf("generate refresh secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(buf)

	now := m.Now()
	rec := domain.RefreshRecord{
		ID:         ids.NewULID(),
		SubjectID:  subjectID,
		SecretHash: HashSecret(secret),
		IssuedAt:   now,
		ExpiresAt:  now.Add(m.refreshTTL),
	}
	return rec.ID + "." + secret, rec, nil
}

// SplitRefresh separates a wire refresh token into record id and secret.
func SplitRefresh(wire string) (id, secret string, err error) {
	id, secret, ok := strings.Cut(strings.TrimSpace(wire), ".")
	if !ok || id == "" || secret == "" || strings.Contains(secret, ".") {
		return "", "", domain.ErrTokenInvalid
	}
	return id, secret, nil
}

// HashSecret returns the hex sha256 of a refresh secret.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// SecretMatches compares a presented secret against a stored hash in constant time.
func SecretMatches(hash, secret string) bool {
	return subtle.ConstantTimeCompare([]byte(hash), []byte(HashSecret(secret))) == 1
}
