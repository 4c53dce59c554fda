package domain

import "time"

type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Token is an issued bearer credential.
type Token struct {
	Value     string
	SubjectID string
	Kind      TokenKind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	Access  Token
	Refresh Token
}

// RefreshRecord is the persisted half of a refresh token. Only the hash of the
// secret is stored; the wire value is "<ID>.<secret>".
type RefreshRecord struct {
	ID         string
	SubjectID  string
	SecretHash string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Revoked    bool
}

// Expired reports whether the record is past its validity window at now.
func (r *RefreshRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
