package access

import (
	"net/http"

	"github.com/odyssey-erp/odyssey-wms/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// Middleware publishes the access context of authenticated requests.
type Middleware struct {
	Loader *Loader
	// Strict aborts the request with 503 when the context cannot be loaded
	// instead of continuing with an empty one.
	Strict bool
}

// Publish loads the context once per request. Requests without an identity
// pass through with nothing published.
func (m Middleware) Publish(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := shared.IdentityFromContext(r.Context())
		if !ok || m.Loader == nil {
			next.ServeHTTP(w, r)
			return
		}
		ac := m.Loader.Load(r.Context(), id.UserID)
		if ac.Degraded() && m.Strict {
			httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "access data is temporarily unavailable")
			return
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), &ac)))
	})
}
