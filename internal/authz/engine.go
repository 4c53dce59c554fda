package authz

import (
	"sort"
	"strings"

	"gatekeeper/internal/domain"
)

// Outcome is the result class of a decision.
type Outcome int

const (
	Allow Outcome = iota
	Unauthenticated
	Forbidden
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case Unauthenticated:
		return "unauthenticated"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Reason explains a decision for logs and metrics. It is never shown to callers.
type Reason string

const (
	ReasonGranted       Reason = "granted"
	ReasonNoIdentity    Reason = "no_identity"
	ReasonRole          Reason = "insufficient_role"
	ReasonAbsent        Reason = "absent"
	ReasonOwnerMismatch Reason = "owner_mismatch"
	ReasonUnknownKind   Reason = "unknown_kind"
	ReasonUnknownAction Reason = "unknown_action"
)

// Decision is the engine's verdict.
type Decision struct {
	Outcome Outcome
	Reason  Reason
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome == Allow
}

// Err converts a denial into the error class the boundary maps to a status.
// Absent and not-owned resources yield the same error.
func (d Decision) Err() error {
	switch d.Outcome {
	case Allow:
		return nil
	case Unauthenticated:
		return domain.ErrTokenMissing
	case Forbidden:
		return domain.ErrAuthorization
	default:
		return domain.ErrResourceAbsent
	}
}

// Request is the input to a decision. Lookup is only consulted for actions
// that target a single resource.
type Request struct {
	Identity *domain.Identity
	Kind     string
	Action   domain.Action
	Lookup   domain.Lookup
}

// Engine decides requests against a fixed set of per-kind policies.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	policies map[string]Policy
}

// NewEngine copies the given policies. Kind names are case-insensitive.
func NewEngine(policies map[string]Policy) *Engine {
	e := &Engine{policies: make(map[string]Policy, len(policies))}
	for kind, p := range policies {
		cp := make(Policy, len(p))
		for action, req := range p {
			cp[action] = req
		}
		e.policies[normalizeKind(kind)] = cp
	}
	return e
}

// Policy returns the policy registered for kind.
func (e *Engine) Policy(kind string) (Policy, bool) {
	p, ok := e.policies[normalizeKind(kind)]
	return p, ok
}

// Kinds lists the registered kinds in sorted order.
func (e *Engine) Kinds() []string {
	kinds := make([]string, 0, len(e.policies))
	for k := range e.policies {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Decide evaluates req. Checks run in a fixed order: identity, role, existence,
// ownership. The role check happens before the lookup is consulted, so a
// non-admin learns nothing about existence from an admin-only action.
func (e *Engine) Decide(req Request) Decision {
	if req.Identity == nil || req.Identity.PrincipalID == "" {
		return Decision{Outcome: Unauthenticated, Reason: ReasonNoIdentity}
	}

	policy, ok := e.policies[normalizeKind(req.Kind)]
	if !ok {
		return Decision{Outcome: NotFound, Reason: ReasonUnknownKind}
	}
	requirement, ok := policy[req.Action]
	if !ok {
		return Decision{Outcome: NotFound, Reason: ReasonUnknownAction}
	}

	if requirement == RequireAdmin && !req.Identity.Role.Satisfies(domain.RoleAdmin) {
		return Decision{Outcome: Forbidden, Reason: ReasonRole}
	}

	if req.Action.TargetsResource() {
		if !req.Lookup.Exists() {
			return Decision{Outcome: NotFound, Reason: ReasonAbsent}
		}
		if requirement == RequireOwner && !req.Lookup.OwnedBy(req.Identity.PrincipalID) {
			return Decision{Outcome: NotFound, Reason: ReasonOwnerMismatch}
		}
	}

	return Decision{Outcome: Allow, Reason: ReasonGranted}
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}
