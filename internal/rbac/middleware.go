package rbac

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-wms/internal/access"
	"github.com/odyssey-erp/odyssey-wms/internal/observability"
	"github.com/odyssey-erp/odyssey-wms/internal/platform/httpx"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Table   *Table
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// Guard enforces the rule registered for op. Mounting an unknown operation
// panics so a missing table entry is caught at startup.
func (m Middleware) Guard(op string) func(http.Handler) http.Handler {
	rule, ok := m.Table.Rule(op)
	if !ok {
		panic(fmt.Sprintf("rbac: no rule registered for operation %q", op))
	}
	return m.enforce(op, rule)
}

// RequireAll ensures the current user holds every listed permission.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.enforce("", Rule{Tokens: mustTokens(perms), Mode: ModeAll})
}

// RequireAny ensures the current user holds at least one listed permission.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.enforce("", Rule{Tokens: mustTokens(perms), Mode: ModeAny})
}

func (m Middleware) enforce(op string, rule Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, _ := access.FromContext(r.Context())
			decision := Evaluate(rule, ac)
			m.Metrics.AuthzDecision(decision.String())
			switch decision {
			case Allow:
				next.ServeHTTP(w, r)
			case Unauthorized:
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			default:
				if m.Logger != nil {
					m.Logger.Info("rbac denied",
						slog.String("op", op),
						slog.String("user_id", ac.UserID()),
						slog.Bool("degraded", ac.Degraded()))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "forbidden")
			}
		})
	}
}

func mustTokens(perms []string) []Token {
	tokens := make([]Token, 0, len(perms))
	for _, p := range perms {
		t, err := ParseToken(p)
		if err != nil {
			panic(err)
		}
		tokens = append(tokens, t)
	}
	return tokens
}
