package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/odyssey-erp/odyssey-wms/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// BearerConfig configures verification of externally issued tokens.
type BearerConfig struct {
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Authenticator establishes the request identity from the session or from a
// bearer token. It never issues tokens.
type Authenticator struct {
	bearer BearerConfig
	parser *jwt.Parser
	logger *slog.Logger
}

// NewAuthenticator builds an Authenticator. Bearer tokens are ignored when no
// secret is configured.
func NewAuthenticator(bearer BearerConfig, logger *slog.Logger) *Authenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(bearer.Leeway),
	}
	if bearer.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(bearer.Issuer))
	}
	if bearer.Audience != "" {
		opts = append(opts, jwt.WithAudience(bearer.Audience))
	}
	return &Authenticator{bearer: bearer, parser: jwt.NewParser(opts...), logger: logger}
}

// Middleware publishes a shared.Identity when the caller is authenticated.
// A session identity wins over a bearer token. An invalid token is rejected
// with 401 instead of falling back to anonymous.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess := shared.SessionFromContext(r.Context()); sess != nil && sess.User() != "" {
			id := shared.Identity{UserID: sess.User(), Source: shared.IdentitySession}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), id)))
			return
		}
		raw, ok := bearerToken(r)
		if !ok || a.bearer.Secret == "" {
			next.ServeHTTP(w, r)
			return
		}
		subject, err := a.Verify(raw)
		if err != nil {
			if a.logger != nil {
				a.logger.Debug("bearer token rejected", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		id := shared.Identity{UserID: subject, Source: shared.IdentityBearer}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), id)))
	})
}

// Verify checks the signature and registered claims and returns the subject.
func (a *Authenticator) Verify(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(a.bearer.Secret), nil
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
