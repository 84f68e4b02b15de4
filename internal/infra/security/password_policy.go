package security

import (
	"strings"

	"github.com/Developer-AbhinavAF/affiliate-backend/internal/core/port"
)

const defaultMinPasswordLength = 8

// PasswordPolicy is the new-password policy: minimum length, one lowercase,
// one uppercase, one digit and one symbol, plus an optional zxcvbn floor.
type PasswordPolicy struct {
	minLength int
	minScore  int
}

// NewPasswordPolicy builds the policy. minLength <= 0 falls back to 8 and
// minScore <= 0 disables the strength estimate.
func NewPasswordPolicy(minLength, minScore int) *PasswordPolicy {
	if minLength <= 0 {
		minLength = defaultMinPasswordLength
	}
	return &PasswordPolicy{minLength: minLength, minScore: minScore}
}

// Validate applies the policy. userInputs feed the strength estimate so that
// passwords derived from the account's own name or email score lower.
func (p *PasswordPolicy) Validate(password string, userInputs ...string) error {
	if p == nil {
		p = NewPasswordPolicy(0, 0)
	}
	if hasControl(password) {
		return &PasswordValidationError{Code: "control_character", Message: "password must not contain control characters"}
	}

	inputs := make([]string, 0, len(userInputs))
	for _, in := range userInputs {
		if trimmed := strings.TrimSpace(in); trimmed != "" {
			inputs = append(inputs, trimmed)
		}
	}

	return NewPasswordValidator(
		MinLengthRule(p.minLength),
		RequireLowerRule(),
		RequireUpperRule(),
		RequireDigitRule(),
		RequireSymbolRule(),
		RequirePasswordStrengthRule(p.minScore, inputs...),
	).Validate(password)
}

var _ port.PasswordPolicyValidator = (*PasswordPolicy)(nil)
