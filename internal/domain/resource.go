package domain

import "time"

// Action is an operation a caller requests on a resource kind.
type Action string

const (
	ActionRead   Action = "read"
	ActionList   Action = "list"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// TargetsResource reports whether the action addresses a single existing resource by id.
func (a Action) TargetsResource() bool {
	switch a {
	case ActionRead, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// OwnedResource records which principal created a resource of a given kind.
type OwnedResource struct {
	Kind      string
	ID        string
	OwnerID   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Lookup is the outcome of resolving a resource id: either found with an owner, or absent.
type Lookup struct {
	found   bool
	ownerID string
}

// Found builds a lookup for an existing resource owned by ownerID.
func Found(ownerID string) Lookup {
	return Lookup{found: true, ownerID: ownerID}
}

// Absent builds a lookup for an id that does not exist.
func Absent() Lookup {
	return Lookup{}
}

// Exists reports whether the id resolved to a resource.
func (l Lookup) Exists() bool { return l.found }

// Owner returns the owning principal id, or "" when absent.
func (l Lookup) Owner() string { return l.ownerID }

// OwnedBy reports whether the resource exists and belongs to principalID.
func (l Lookup) OwnedBy(principalID string) bool {
	return l.found && principalID != "" && l.ownerID == principalID
}
