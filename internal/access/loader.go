package access

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-wms/internal/observability"
)

// DefaultStoreTimeout bounds each lookup when Options leaves it unset.
const DefaultStoreTimeout = 3 * time.Second

// Grants are the role-derived grants of a user. Disabled is set for a user
// that is inactive or no longer exists.
type Grants struct {
	Roles       []string
	Permissions []string
	Disabled    bool
}

// Store is the read side of the credential store used to build a Context.
type Store interface {
	UserFacilities(ctx context.Context, userID string) ([]string, error)
	UserCustomers(ctx context.Context, userID string) ([]string, error)
	UserGrants(ctx context.Context, userID string) (Grants, error)
}

// Options configures a Loader.
type Options struct {
	AdminRole    string
	StoreTimeout time.Duration
	Cache        *Cache
	Logger       *slog.Logger
	Metrics      *observability.Metrics
}

// Loader builds per-request access contexts.
type Loader struct {
	store     Store
	adminRole string
	timeout   time.Duration
	cache     *Cache
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewLoader constructs a Loader.
func NewLoader(store Store, opts Options) *Loader {
	timeout := opts.StoreTimeout
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		store:     store,
		adminRole: strings.TrimSpace(opts.AdminRole),
		timeout:   timeout,
		cache:     opts.Cache,
		logger:    logger,
		metrics:   opts.Metrics,
	}
}

// Load resolves the context of userID. It never fails: when any lookup
// fails it logs and returns an empty, degraded context that denies every
// gated operation.
func (l *Loader) Load(ctx context.Context, userID string) Context {
	var (
		ac  Context
		err error
	)
	if l.cache != nil {
		ac, err = l.cache.Fetch(ctx, userID, l.Resolve)
	} else {
		ac, err = l.Resolve(ctx, userID)
	}
	if err != nil {
		l.logger.Error("load access context", slog.String("user_id", userID), slog.Any("error", err))
		l.metrics.AccessLoadFailed()
		ac = Empty(userID)
		ac.degraded = true
	}
	return ac
}

// Resolve runs the three lookups in parallel and returns the first error.
// A disabled user resolves to an empty context that is not degraded.
func (l *Loader) Resolve(ctx context.Context, userID string) (Context, error) {
	var (
		facilities []string
		customers  []string
		grants     Grants
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ctx, cancel := context.WithTimeout(gctx, l.timeout)
		defer cancel()
		var err error
		if facilities, err = l.store.UserFacilities(ctx, userID); err != nil {
			return fmt.Errorf("facilities: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		ctx, cancel := context.WithTimeout(gctx, l.timeout)
		defer cancel()
		var err error
		if customers, err = l.store.UserCustomers(ctx, userID); err != nil {
			return fmt.Errorf("customers: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		ctx, cancel := context.WithTimeout(gctx, l.timeout)
		defer cancel()
		var err error
		if grants, err = l.store.UserGrants(ctx, userID); err != nil {
			return fmt.Errorf("grants: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Context{}, fmt.Errorf("access: %w", err)
	}

	if grants.Disabled {
		return New(userID, nil, nil, nil, nil), nil
	}
	permissions := grants.Permissions
	if l.isAdmin(grants.Roles) {
		permissions = append(append([]string(nil), permissions...), SuperPermission)
	}
	return New(userID, grants.Roles, facilities, customers, permissions), nil
}

func (l *Loader) isAdmin(roles []string) bool {
	if l.adminRole == "" {
		return false
	}
	for _, r := range roles {
		if strings.EqualFold(strings.TrimSpace(r), l.adminRole) {
			return true
		}
	}
	return false
}
