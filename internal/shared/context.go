package shared

import "context"

type sessionContextKey struct{}

type identityContextKey struct{}

// IdentitySource names how the caller was authenticated.
type IdentitySource string

const (
	// IdentitySession marks a cookie backed Redis session.
	IdentitySession IdentitySource = "session"
	// IdentityBearer marks a verified bearer token.
	IdentityBearer IdentitySource = "bearer"
)

// Identity is the authenticated caller established before authorization runs.
type Identity struct {
	UserID string
	Source IdentitySource
}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// ContextWithIdentity stores the authenticated identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the identity and whether one is present.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok || id.UserID == "" {
		return Identity{}, false
	}
	return id, true
}
