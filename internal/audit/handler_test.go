package audit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-wms/internal/access"
	"github.com/odyssey-erp/odyssey-wms/internal/rbac"
)

type stubTimelineService struct {
	result      Result
	exportRows  []TimelineRow
	lastFilters TimelineFilters
}

func (s *stubTimelineService) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	s.lastFilters = filters
	return s.result, nil
}

func (s *stubTimelineService) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	s.lastFilters = filters
	return s.exportRows, nil
}

func serveAudit(t *testing.T, service *stubTimelineService, path string, perms ...string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewHandler(nil, service, rbac.Middleware{Table: rbac.MustCompile(rbac.DefaultRules)})
	h.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/audit", h.MountRoutes)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	ac := access.New("AUDITOR", nil, nil, nil, perms)
	req = req.WithContext(access.NewContext(req.Context(), &ac))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestTimelineRequiresPermission(t *testing.T) {
	rr := serveAudit(t, &stubTimelineService{}, "/audit", "USER_READ")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestTimelineReturnsRows(t *testing.T) {
	rows := []TimelineRow{mockRow("2026-03-10T10:00:00Z", "ADMIN", "RESET_PASSWORD", "user", "JSMITH")}
	service := &stubTimelineService{result: Result{Rows: rows, Paging: PagingInfo{Page: 1, PageSize: 20}}}
	rr := serveAudit(t, service, "/audit?from=2026-03-01&to=2026-03-15&action=reset_password", "AUDIT_READ")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"action":"RESET_PASSWORD"`) {
		t.Fatalf("expected row in response: %s", rr.Body.String())
	}
	if got := service.lastFilters.From.Format(dateLayout); got != "2026-03-01" {
		t.Fatalf("unexpected from: %s", got)
	}
	if got := service.lastFilters.To.Format(dateLayout); got != "2026-03-16" {
		t.Fatalf("expected exclusive end on the next day, got %s", got)
	}
}

func TestTimelineDefaultsToLastWeek(t *testing.T) {
	service := &stubTimelineService{}
	rr := serveAudit(t, service, "/audit", "AUDIT_READ")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := service.lastFilters.From.Format(dateLayout); got != "2026-03-08" {
		t.Fatalf("unexpected default from: %s", got)
	}
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	for _, path := range []string{
		"/audit?from=yesterday",
		"/audit?from=2026-03-10&to=2026-03-01",
		"/audit?from=2025-01-01&to=2026-03-01",
		"/audit?page=0",
		"/audit?page_size=abc",
	} {
		rr := serveAudit(t, &stubTimelineService{}, path, "AUDIT_READ")
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", path, rr.Code)
		}
	}
}

func TestExportCSV(t *testing.T) {
	service := &stubTimelineService{exportRows: []TimelineRow{mockRow("2026-03-10T10:00:00Z", "ADMIN", "DISABLE", "user", "OPS1")}}
	rr := serveAudit(t, service, "/audit/export.csv?from=2026-03-01&to=2026-03-05", "AUDIT_READ")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ctype := rr.Header().Get("Content-Type"); !strings.Contains(ctype, "text/csv") {
		t.Fatalf("unexpected content-type: %s", ctype)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "2026-03-10T10:00:00Z,ADMIN,DISABLE,user,OPS1") {
		t.Fatalf("unexpected csv: %q", rr.Body.String())
	}
}
