package access

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-wms/internal/observability"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

type memoryStore struct {
	mu         sync.Mutex
	facilities map[string][]string
	customers  map[string][]string
	grants     map[string]Grants
	failOn     string
	block      bool
	delay      time.Duration
	disabled   map[string]bool
	calls      atomic.Int32
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		facilities: make(map[string][]string),
		customers:  make(map[string][]string),
		grants:     make(map[string]Grants),
		disabled:   make(map[string]bool),
	}
}

func (m *memoryStore) lookup(ctx context.Context, name string) error {
	m.calls.Add(1)
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.failOn == name {
		return errors.New("store unreachable")
	}
	return nil
}

func (m *memoryStore) UserFacilities(ctx context.Context, userID string) ([]string, error) {
	if err := m.lookup(ctx, "facilities"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.facilities[userID], nil
}

func (m *memoryStore) UserCustomers(ctx context.Context, userID string) ([]string, error) {
	if err := m.lookup(ctx, "customers"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.customers[userID], nil
}

func (m *memoryStore) UserGrants(ctx context.Context, userID string) (Grants, error) {
	if err := m.lookup(ctx, "grants"); err != nil {
		return Grants{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled[userID] {
		return Grants{Disabled: true}, nil
	}
	return m.grants[userID], nil
}

func seededStore() *memoryStore {
	store := newMemoryStore()
	store.facilities["JSMITH"] = []string{"WH2", "WH1"}
	store.customers["JSMITH"] = []string{"ACME"}
	store.grants["JSMITH"] = Grants{Roles: []string{"PICKER"}, Permissions: []string{"item_read", "PLATE_READ", " ITEM_READ "}}
	store.grants["ROOT"] = Grants{Roles: []string{"admin"}}
	return store
}

func TestLoaderResolvesAllSets(t *testing.T) {
	loader := NewLoader(seededStore(), Options{AdminRole: "ADMIN"})
	ac := loader.Load(context.Background(), "JSMITH")

	require.True(t, ac.Authenticated())
	require.False(t, ac.Degraded())
	require.Equal(t, "JSMITH", ac.UserID())
	require.Equal(t, []string{"WH1", "WH2"}, ac.Facilities())
	require.Equal(t, []string{"ACME"}, ac.Customers())
	require.Equal(t, []string{"ITEM_READ", "PLATE_READ"}, ac.Permissions())
	require.True(t, ac.HasFacility("WH1"))
	require.False(t, ac.HasFacility("WH9"))
	require.True(t, ac.HasCustomer("ACME"))
	require.True(t, ac.HasRole("PICKER"))
	require.False(t, ac.IsSuper())
}

func TestLoaderGrantsSuperPermissionToAdminRole(t *testing.T) {
	loader := NewLoader(seededStore(), Options{AdminRole: "ADMIN"})
	ac := loader.Load(context.Background(), "ROOT")
	require.True(t, ac.IsSuper())
	require.True(t, ac.HasPermission(SuperPermission))
}

func TestLoaderWithoutAdminRoleGrantsNoBypass(t *testing.T) {
	loader := NewLoader(seededStore(), Options{})
	ac := loader.Load(context.Background(), "ROOT")
	require.False(t, ac.IsSuper())
}

func TestLoaderFailureYieldsEmptyDegradedContext(t *testing.T) {
	for _, failing := range []string{"facilities", "customers", "grants"} {
		t.Run(failing, func(t *testing.T) {
			store := seededStore()
			store.failOn = failing
			metrics := observability.NewMetrics()
			loader := NewLoader(store, Options{AdminRole: "ADMIN", Metrics: metrics})

			ac := loader.Load(context.Background(), "JSMITH")
			require.True(t, ac.Authenticated())
			require.True(t, ac.Degraded())
			require.Empty(t, ac.Permissions())
			require.Empty(t, ac.Facilities())
			require.Empty(t, ac.Customers())
		})
	}
}

func TestLoaderTimesOutSlowStore(t *testing.T) {
	store := seededStore()
	store.block = true
	loader := NewLoader(store, Options{StoreTimeout: 20 * time.Millisecond})

	start := time.Now()
	ac := loader.Load(context.Background(), "JSMITH")
	require.True(t, ac.Degraded())
	require.Less(t, time.Since(start), time.Second)
}

func TestLoaderDisabledUserResolvesEmpty(t *testing.T) {
	store := seededStore()
	store.disabled["JSMITH"] = true
	loader := NewLoader(store, Options{AdminRole: "ADMIN"})

	ac := loader.Load(context.Background(), "JSMITH")
	require.True(t, ac.Authenticated())
	require.False(t, ac.Degraded())
	require.Empty(t, ac.Permissions())
	require.Empty(t, ac.Facilities())
	require.Empty(t, ac.Customers())
	require.False(t, ac.HasRole("PICKER"))
}

func TestCacheBumpRevokesDisabledUser(t *testing.T) {
	store := seededStore()
	cache := newTestCache(t)
	loader := NewLoader(store, Options{Cache: cache})
	ctx := context.Background()

	before := loader.Load(ctx, "JSMITH")
	require.True(t, before.HasPermission("ITEM_READ"))

	store.mu.Lock()
	store.disabled["JSMITH"] = true
	store.mu.Unlock()
	require.NoError(t, cache.Bump(ctx))

	after := loader.Load(ctx, "JSMITH")
	require.False(t, after.Degraded())
	require.False(t, after.HasPermission("ITEM_READ"))
}

func TestContextSnapshotIsACopy(t *testing.T) {
	ac := New("U", nil, []string{"WH1"}, nil, []string{"ITEM_READ"})
	perms := ac.Permissions()
	perms[0] = "ITEM_DELETE"
	require.True(t, ac.HasPermission("ITEM_READ"))
	require.False(t, ac.HasPermission("ITEM_DELETE"))
}

func TestNilContextIsUnauthenticated(t *testing.T) {
	var ac *Context
	require.False(t, ac.Authenticated())
	require.False(t, ac.IsSuper())
	require.Empty(t, ac.Permissions())
}

func TestFromContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	ac := New("U", nil, nil, nil, nil)
	got, ok := FromContext(NewContext(context.Background(), &ac))
	require.True(t, ok)
	require.Equal(t, "U", got.UserID())
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheServesUntilBump(t *testing.T) {
	store := seededStore()
	cache := newTestCache(t)
	loader := NewLoader(store, Options{Cache: cache})
	ctx := context.Background()

	first := loader.Load(ctx, "JSMITH")
	calls := store.calls.Load()
	require.Equal(t, int32(3), calls)

	second := loader.Load(ctx, "JSMITH")
	require.Equal(t, calls, store.calls.Load(), "second load must come from cache")
	require.Equal(t, first.Snapshot(), second.Snapshot())

	store.mu.Lock()
	store.grants["JSMITH"] = Grants{Permissions: []string{"ITEM_DELETE"}}
	store.mu.Unlock()
	require.NoError(t, cache.Bump(ctx))

	third := loader.Load(ctx, "JSMITH")
	require.Equal(t, []string{"ITEM_DELETE"}, third.Permissions())
}

func TestCacheNeverStoresDegradedContext(t *testing.T) {
	store := seededStore()
	store.failOn = "grants"
	cache := newTestCache(t)
	loader := NewLoader(store, Options{Cache: cache})
	ctx := context.Background()

	first := loader.Load(ctx, "JSMITH")
	require.True(t, first.Degraded())

	store.failOn = ""
	ac := loader.Load(ctx, "JSMITH")
	require.False(t, ac.Degraded())
	require.True(t, ac.HasPermission("ITEM_READ"))
}

func TestCacheFillSurvivesCancelledWaiter(t *testing.T) {
	store := seededStore()
	store.delay = 200 * time.Millisecond
	loader := NewLoader(store, Options{Cache: newTestCache(t)})

	shortCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var (
		wg      sync.WaitGroup
		dropped Context
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		dropped = loader.Load(shortCtx, "JSMITH")
	}()
	time.Sleep(5 * time.Millisecond)

	healthy := loader.Load(context.Background(), "JSMITH")
	wg.Wait()

	require.True(t, dropped.Degraded())
	require.False(t, healthy.Degraded())
	require.Equal(t, []string{"ITEM_READ", "PLATE_READ"}, healthy.Permissions())
}

func TestNewCacheDisabledByZeroTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	require.Nil(t, NewCache(client, 0))
	var nilCache *Cache
	require.NoError(t, nilCache.Bump(context.Background()))
}

func TestMiddlewarePublishesOnlyForIdentity(t *testing.T) {
	mw := Middleware{Loader: NewLoader(seededStore(), Options{})}

	var published *Context
	var seen bool
	handler := mw.Publish(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		published, seen = FromContext(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.False(t, seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithIdentity(req.Context(), shared.Identity{UserID: "JSMITH", Source: shared.IdentitySession}))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, seen)
	require.Equal(t, "JSMITH", published.UserID())
}

func TestMiddlewareDegradedPolicy(t *testing.T) {
	store := seededStore()
	store.failOn = "facilities"
	loader := NewLoader(store, Options{})

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		return r.WithContext(shared.ContextWithIdentity(r.Context(), shared.Identity{UserID: "JSMITH"}))
	}

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		ac, ok := FromContext(r.Context())
		require.True(t, ok)
		require.True(t, ac.Degraded())
	})

	rec := httptest.NewRecorder()
	Middleware{Loader: loader}.Publish(next).ServeHTTP(rec, req())
	require.True(t, called)

	called = false
	rec = httptest.NewRecorder()
	Middleware{Loader: loader, Strict: true}.Publish(next).ServeHTTP(rec, req())
	require.False(t, called)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestConcurrentLoadsAreIsolated(t *testing.T) {
	store := seededStore()
	store.grants["OTHER"] = Grants{Permissions: []string{"ZONE_READ"}}
	loader := NewLoader(store, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ac := loader.Load(context.Background(), "JSMITH")
			if ac.HasPermission("ZONE_READ") {
				t.Error("JSMITH leaked OTHER's grants")
			}
		}()
		go func() {
			defer wg.Done()
			ac := loader.Load(context.Background(), "OTHER")
			if ac.HasPermission("ITEM_READ") {
				t.Error("OTHER leaked JSMITH's grants")
			}
		}()
	}
	wg.Wait()
}
