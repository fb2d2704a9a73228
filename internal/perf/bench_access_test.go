package perf

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/odyssey-erp/odyssey-wms/internal/access"
	"github.com/odyssey-erp/odyssey-wms/internal/rbac"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

type staticStore struct {
	facilities []string
	customers  []string
	grants     access.Grants
}

func (s staticStore) UserFacilities(context.Context, string) ([]string, error) {
	return s.facilities, nil
}

func (s staticStore) UserCustomers(context.Context, string) ([]string, error) {
	return s.customers, nil
}

func (s staticStore) UserGrants(context.Context, string) (access.Grants, error) {
	return s.grants, nil
}

func newStore() staticStore {
	perms := make([]string, 0, len(shared.PermissionDescriptions()))
	for token := range shared.PermissionDescriptions() {
		perms = append(perms, token)
	}
	facilities := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		facilities = append(facilities, fmt.Sprintf("DC%02d", i))
	}
	return staticStore{
		facilities: facilities,
		customers:  []string{"ACME", "GLOBEX", "INITECH"},
		grants:     access.Grants{Roles: []string{"SUPERVISOR"}, Permissions: perms},
	}
}

func TestAccessLoadLatencyTarget(t *testing.T) {
	loader := access.NewLoader(newStore(), access.Options{AdminRole: "ADMIN"})
	samples := make([]time.Duration, 0, 200)
	for i := 0; i < 200; i++ {
		start := time.Now()
		ac := loader.Load(context.Background(), "JSMITH")
		samples = append(samples, time.Since(start))
		if ac.Degraded() {
			t.Fatalf("unexpected degraded context")
		}
	}
	if p95 := percentile95(samples); p95 > 5*time.Millisecond {
		t.Fatalf("access load regression: p95=%s threshold=5ms", p95)
	}
}

func BenchmarkLoaderLoad(b *testing.B) {
	loader := access.NewLoader(newStore(), access.Options{AdminRole: "ADMIN"})
	ctx := context.Background()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = loader.Load(ctx, "JSMITH")
	}
}

func BenchmarkEvaluate(b *testing.B) {
	table := rbac.MustCompile(rbac.DefaultRules)
	loader := access.NewLoader(newStore(), access.Options{AdminRole: "ADMIN"})
	ac := loader.Load(context.Background(), "JSMITH")
	ops := table.Operations()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rule, _ := table.Rule(ops[i%len(ops)])
		_ = rbac.Evaluate(rule, &ac)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	return sorted[index]
}
