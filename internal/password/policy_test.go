package password

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/domain"
)

func TestPolicyLengthBoundaries(t *testing.T) {
	bands := []struct {
		name     string
		min, max int
	}{
		{"6-20", 6, 20},
		{"6-15", 6, 15},
		{"6-32", 6, 32},
	}
	for _, band := range bands {
		t.Run(band.name, func(t *testing.T) {
			p := DefaultPolicy()
			p.MinLength, p.MaxLength = band.min, band.max

			assert.NoError(t, p.Validate(withLength(band.min)))
			assert.NoError(t, p.Validate(withLength(band.max)))
			assertViolates(t, p.Validate(withLength(band.min-1)), RuleLength)
			assertViolates(t, p.Validate(withLength(band.max+1)), RuleLength)
		})
	}
}

func TestPolicyEmptyIsLengthViolation(t *testing.T) {
	p := DefaultPolicy()
	err := p.Validate("")
	assertViolates(t, err, RuleLength)

	short := p.Validate("Ab1")
	var a, b *PolicyError
	require.ErrorAs(t, err, &a)
	require.ErrorAs(t, short, &b)
	assert.Equal(t, a.Violations[0], b.Violations[0])
}

func TestPolicyCharacterClasses(t *testing.T) {
	p := DefaultPolicy()
	cases := map[string]string{
		"validpass1": RuleUpper,
		"VALIDPASS1": RuleLower,
		"ValidPass":  RuleDigit,
	}
	for raw, rule := range cases {
		assertViolates(t, p.Validate(raw), rule)
	}
	assert.NoError(t, p.Validate("ValidPass1"))
}

func TestStrictPolicyRequiresSpecial(t *testing.T) {
	p := StrictPolicy()
	assertViolates(t, p.Validate("Password1"), RuleSpecial)
	assert.NoError(t, p.Validate("Password1!"))
	assert.NoError(t, p.Validate(withLength(32)[:31]+"#"))
}

func TestPolicyCountsRunes(t *testing.T) {
	p := DefaultPolicy()
	p.MaxLength = 6
	assert.NoError(t, p.Validate("Ää1ääß"))
}

func TestPolicyByteCeiling(t *testing.T) {
	p := DefaultPolicy()

	fits := "Ää1" + strings.Repeat("é", 17)
	require.Equal(t, p.MaxLength, utf8.RuneCountInString(fits))
	assert.NoError(t, p.Validate(fits))

	wide := "Ää1" + strings.Repeat("😀", 17)
	require.Equal(t, p.MaxLength, utf8.RuneCountInString(wide))
	require.Greater(t, len(wide), MaxBytes)
	assertViolates(t, p.Validate(wide), RuleLength)
}

func TestStrictPolicyCountsSpaceAsSpecial(t *testing.T) {
	assert.NoError(t, StrictPolicy().Validate("Pass word1"))
}

func TestPolicyErrorWrapsValidation(t *testing.T) {
	err := DefaultPolicy().Validate("short")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestPolicyCheck(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Check())
	assert.Error(t, Policy{MinLength: 0, MaxLength: 10}.Check())
	assert.Error(t, Policy{MinLength: 10, MaxLength: 6}.Check())
	assert.NoError(t, Policy{MinLength: 6, MaxLength: MaxBytes}.Check())
	assert.Error(t, Policy{MinLength: 6, MaxLength: MaxBytes + 1}.Check())
}

func withLength(n int) string {
	if n <= 0 {
		return ""
	}
	base := "Aa1"
	if n <= len(base) {
		return base[:n]
	}
	return base + strings.Repeat("x", n-len(base))
}

func assertViolates(t *testing.T, err error, rule string) {
	t.Helper()
	var perr *PolicyError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Violations, rule)
}
