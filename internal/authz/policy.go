package authz

import (
	"fmt"
	"strings"

	"gatekeeper/internal/domain"
)

// Requirement is what a caller must satisfy to perform an action.
type Requirement int

const (
	// RequireAuthenticated admits any valid identity.
	RequireAuthenticated Requirement = iota + 1
	// RequireOwner admits only the principal that created the resource.
	RequireOwner
	// RequireAdmin admits only administrators.
	RequireAdmin
)

func (r Requirement) String() string {
	switch r {
	case RequireAuthenticated:
		return "authenticated"
	case RequireOwner:
		return "owner"
	case RequireAdmin:
		return "admin"
	default:
		return fmt.Sprintf("requirement(%d)", int(r))
	}
}

// Policy maps each action on a resource kind to its requirement.
type Policy map[domain.Action]Requirement

// Private is the policy for owner-scoped kinds such as todos or books: only the
// creator can see, change or remove an item.
func Private() Policy {
	return Policy{
		domain.ActionRead:   RequireOwner,
		domain.ActionList:   RequireAuthenticated,
		domain.ActionCreate: RequireAuthenticated,
		domain.ActionUpdate: RequireOwner,
		domain.ActionDelete: RequireOwner,
	}
}

// Shared is the policy for catalogue kinds such as hotels or countries: any
// authenticated caller may read and write, deletion is reserved to admins.
func Shared() Policy {
	return Policy{
		domain.ActionRead:   RequireAuthenticated,
		domain.ActionList:   RequireAuthenticated,
		domain.ActionCreate: RequireAuthenticated,
		domain.ActionUpdate: RequireAuthenticated,
		domain.ActionDelete: RequireAdmin,
	}
}

// OwnerScoped reports whether listing should be restricted to the caller's items.
func (p Policy) OwnerScoped() bool {
	return p[domain.ActionRead] == RequireOwner
}

// Template resolves a policy template by name.
func Template(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "private":
		return Private(), nil
	case "shared":
		return Shared(), nil
	default:
		return nil, fmt.Errorf("unknown policy template %q", name)
	}
}
