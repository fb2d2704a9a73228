// Package access resolves, once per request, which facilities, customers and
// permissions an authenticated user may act on.
package access

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SuperPermission is granted to holders of the administrative role and
// satisfies every permission requirement.
const SuperPermission = "*"

// Context is the immutable access snapshot of one user for one request.
type Context struct {
	userID      string
	roles       map[string]struct{}
	facilities  map[string]struct{}
	customers   map[string]struct{}
	permissions map[string]struct{}
	degraded    bool
}

// Snapshot is the serialisable form of a Context.
type Snapshot struct {
	UserID      string   `json:"user_id"`
	Roles       []string `json:"roles"`
	Facilities  []string `json:"facilities"`
	Customers   []string `json:"customers"`
	Permissions []string `json:"permissions"`
	Degraded    bool     `json:"degraded,omitempty"`
}

// CanonicalPermission folds a permission id into token form: trimmed and
// upper case.
func CanonicalPermission(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == SuperPermission {
		return p
	}
	return cases.Upper(language.Und).String(p)
}

// New builds a Context from resolved grants.
func New(userID string, roles, facilities, customers, permissions []string) Context {
	perms := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		if p = CanonicalPermission(p); p != "" {
			perms[p] = struct{}{}
		}
	}
	return Context{
		userID:      userID,
		roles:       toSet(roles),
		facilities:  toSet(facilities),
		customers:   toSet(customers),
		permissions: perms,
	}
}

// Empty returns a context with no grants for the user.
func Empty(userID string) Context {
	return New(userID, nil, nil, nil, nil)
}

// FromSnapshot rebuilds a Context.
func FromSnapshot(s Snapshot) Context {
	ac := New(s.UserID, s.Roles, s.Facilities, s.Customers, s.Permissions)
	ac.degraded = s.Degraded
	return ac
}

// UserID returns the owner of the context.
func (c *Context) UserID() string {
	if c == nil {
		return ""
	}
	return c.userID
}

// Authenticated reports whether the context belongs to an identified user.
func (c *Context) Authenticated() bool {
	return c != nil && c.userID != ""
}

// Degraded reports whether the context was built after a failed load.
func (c *Context) Degraded() bool {
	return c != nil && c.degraded
}

// IsSuper reports whether the context holds the super permission.
func (c *Context) IsSuper() bool {
	return c.HasPermission(SuperPermission)
}

// HasPermission reports membership of a canonical token.
func (c *Context) HasPermission(token string) bool {
	if c == nil {
		return false
	}
	_, ok := c.permissions[token]
	return ok
}

// HasRole reports membership of a role id.
func (c *Context) HasRole(role string) bool {
	if c == nil {
		return false
	}
	_, ok := c.roles[role]
	return ok
}

// HasFacility reports whether the user may operate against the facility.
func (c *Context) HasFacility(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.facilities[id]
	return ok
}

// HasCustomer reports whether the user may operate against the customer.
func (c *Context) HasCustomer(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.customers[id]
	return ok
}

// Roles returns a sorted copy of the role ids.
func (c *Context) Roles() []string {
	return c.sorted(func(c *Context) map[string]struct{} { return c.roles })
}

// Facilities returns a sorted copy of the facility ids.
func (c *Context) Facilities() []string {
	return c.sorted(func(c *Context) map[string]struct{} { return c.facilities })
}

// Customers returns a sorted copy of the customer ids.
func (c *Context) Customers() []string {
	return c.sorted(func(c *Context) map[string]struct{} { return c.customers })
}

// Permissions returns a sorted copy of the permission tokens.
func (c *Context) Permissions() []string {
	return c.sorted(func(c *Context) map[string]struct{} { return c.permissions })
}

// Snapshot returns a serialisable copy.
func (c *Context) Snapshot() Snapshot {
	return Snapshot{
		UserID:      c.UserID(),
		Roles:       c.Roles(),
		Facilities:  c.Facilities(),
		Customers:   c.Customers(),
		Permissions: c.Permissions(),
		Degraded:    c.Degraded(),
	}
}

func (c *Context) sorted(pick func(*Context) map[string]struct{}) []string {
	if c == nil {
		return []string{}
	}
	set := pick(c)
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}

type contextKey struct{}

// NewContext publishes the access context for the rest of the request.
func NewContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext returns the published access context, if any.
func FromContext(ctx context.Context) (*Context, bool) {
	ac, ok := ctx.Value(contextKey{}).(*Context)
	if !ok || ac == nil {
		return nil, false
	}
	return ac, true
}
