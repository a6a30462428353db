package password

import "strings"

// MinLength is an exported constant or variable used by the authentication engine.
const MinLength = 12

// SymbolSet is an exported constant or variable used by the authentication engine.
const SymbolSet = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// Violation messages are stable strings intended for direct display and for
// structured error payloads. Callers must receive every violated rule, not
// just the first.
const (
	ViolationMinLength = "password must be at least 12 characters"
	ViolationLowercase = "password must contain a lowercase letter"
	ViolationUppercase = "password must contain an uppercase letter"
	ViolationDigit     = "password must contain a digit"
	ViolationSymbol    = "password must contain a special character"
)

// CheckComplexity describes the check-complexity operation and its observable behavior.
//
// CheckComplexity evaluates every rule against the candidate password and
// returns the full list of violations. An empty slice means the password
// satisfies the policy.
func CheckComplexity(password string) []string {
	var violations []string

	if len(password) < MinLength {
		violations = append(violations, ViolationMinLength)
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(SymbolSet, r):
			symbol = true
		}
	}

	if !lower {
		violations = append(violations, ViolationLowercase)
	}
	if !upper {
		violations = append(violations, ViolationUppercase)
	}
	if !digit {
		violations = append(violations, ViolationDigit)
	}
	if !symbol {
		violations = append(violations, ViolationSymbol)
	}

	return violations
}
