package password

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"gatekeeper/internal/domain"
)

// Rule names reported in PolicyError.Violations.
const (
	RuleLength  = "length"
	RuleUpper   = "upper"
	RuleLower   = "lower"
	RuleDigit   = "digit"
	RuleSpecial = "special"
)

// MaxBytes is the longest input bcrypt accepts. Passwords longer than this in
// UTF-8 bytes fail the length rule whatever their rune count.
const MaxBytes = 72

// Policy describes the accepted shape of a raw password. Length is counted in runes
// and bounds are inclusive.
type Policy struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPolicy is the 6–20 band with upper, lower and digit required.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:    6,
		MaxLength:    20,
		RequireUpper: true,
		RequireLower: true,
		RequireDigit: true,
	}
}

// StrictPolicy widens the band to 32 and also requires a non-alphanumeric character.
// Whitespace counts as non-alphanumeric.
func StrictPolicy() Policy {
	p := DefaultPolicy()
	p.MaxLength = 32
	p.RequireSpecial = true
	return p
}

// PolicyError lists every rule a password broke.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("password violates policy: %s", strings.Join(e.Violations, ", "))
}

func (e *PolicyError) Unwrap() error {
	return domain.ErrValidation
}

// Check reports whether the policy itself is usable.
func (p Policy) Check() error {
	if p.MinLength < 1 {
		return fmt.Errorf("password min length must be positive, got %d", p.MinLength)
	}
	if p.MaxLength < p.MinLength {
		return fmt.Errorf("password max length %d is below min length %d", p.MaxLength, p.MinLength)
	}
	if p.MaxLength > MaxBytes {
		return fmt.Errorf("password max length %d exceeds the %d byte hashing limit", p.MaxLength, MaxBytes)
	}
	return nil
}

// Validate checks raw against the policy. An empty password fails the length rule,
// the same as a too-short one.
func (p Policy) Validate(raw string) error {
	var violations []string

	n := utf8.RuneCountInString(raw)
	if n == 0 || n < p.MinLength || n > p.MaxLength || len(raw) > MaxBytes {
		violations = append(violations, RuleLength)
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range raw {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case !unicode.IsLetter(r):
			hasSpecial = true
		}
	}

	if p.RequireUpper && !hasUpper {
		violations = append(violations, RuleUpper)
	}
	if p.RequireLower && !hasLower {
		violations = append(violations, RuleLower)
	}
	if p.RequireDigit && !hasDigit {
		violations = append(violations, RuleDigit)
	}
	if p.RequireSpecial && !hasSpecial {
		violations = append(violations, RuleSpecial)
	}

	if len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}
