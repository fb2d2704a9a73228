package rbac

import "github.com/odyssey-erp/odyssey-wms/internal/access"

// Decision is the outcome of one evaluation.
type Decision int

const (
	// Allow lets the operation proceed.
	Allow Decision = iota
	// Unauthorized means no identity was established.
	Unauthorized
	// Forbidden means the identity lacks a required token.
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Mode combines several requirements of one operation.
type Mode int

const (
	// ModeAll requires every token.
	ModeAll Mode = iota
	// ModeAny requires at least one token.
	ModeAny
)

// Rule is the compiled requirement set of one operation. A rule without
// tokens is open to any authenticated caller.
type Rule struct {
	Tokens []Token
	Mode   Mode
}

// Evaluate decides one invocation. The super permission is checked before
// the requirements so administrators pass any rule.
func Evaluate(rule Rule, ac *access.Context) Decision {
	if !ac.Authenticated() {
		return Unauthorized
	}
	if ac.IsSuper() {
		return Allow
	}
	if len(rule.Tokens) == 0 {
		return Allow
	}
	if rule.Mode == ModeAny {
		for _, t := range rule.Tokens {
			if ac.HasPermission(string(t)) {
				return Allow
			}
		}
		return Forbidden
	}
	for _, t := range rule.Tokens {
		if !ac.HasPermission(string(t)) {
			return Forbidden
		}
	}
	return Allow
}
