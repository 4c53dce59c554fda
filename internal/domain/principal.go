package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is the closed set of privilege levels a principal can hold.
type Role string

const (
	RoleStandard Role = "standard"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a stored or claimed role name onto the closed enum.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleStandard:
		return RoleStandard, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Satisfies reports whether r grants at least the privileges of required.
func (r Role) Satisfies(required Role) bool {
	switch required {
	case RoleStandard:
		return r == RoleStandard || r == RoleAdmin
	case RoleAdmin:
		return r == RoleAdmin
	default:
		return false
	}
}

// Principal represents a registered account able to authenticate and own resources.
type Principal struct {
	ID           string
	LoginName    string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Sanitized returns a copy that is safe to hand to callers outside the credential store.
func (p *Principal) Sanitized() *Principal {
	if p == nil {
		return nil
	}
	return &Principal{
		ID:        p.ID,
		LoginName: p.LoginName,
		Role:      p.Role,
		CreatedAt: p.CreatedAt,
	}
}

// Identity is what a validated access token resolves to.
type Identity struct {
	PrincipalID string
	Role        Role
}
