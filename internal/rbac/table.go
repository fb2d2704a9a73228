package rbac

import (
	"errors"
	"fmt"
	"sort"

	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// Operation ids of the guarded endpoints.
const (
	OpAuthMe             = "auth.me"
	OpAuthPasswordChange = "auth.password.change"
	OpAuthPasswordPolicy = "auth.password.policy"
	OpAuthPasswordReset  = "auth.password.reset"

	OpUsersList    = "users.list"
	OpUsersGet     = "users.get"
	OpUsersCreate  = "users.create"
	OpUsersUpdate  = "users.update"
	OpUsersDisable = "users.disable"

	OpRolesList        = "roles.list"
	OpRolesPermissions = "roles.permissions"
	OpRolesUpdate      = "roles.update"
	OpPermissionsList  = "permissions.list"

	OpJobsHealth = "jobs.health"
	OpAuditList  = "audit.list"
)

// RuleSpec declares the requirements of one operation.
type RuleSpec struct {
	Op       string
	Requires []string
	Mode     Mode
}

func spec(op string, requires ...string) RuleSpec {
	return RuleSpec{Op: op, Requires: requires}
}

// DefaultRules is the operation table of the service and of the warehouse
// CRUD collaborators that mount Guard.
var DefaultRules = []RuleSpec{
	spec(OpAuthMe),
	spec(OpAuthPasswordChange),
	spec(OpAuthPasswordPolicy),
	spec(OpAuthPasswordReset, shared.PermUserUpdate),

	spec(OpUsersList, shared.PermUserRead),
	spec(OpUsersGet, shared.PermUserRead),
	spec(OpUsersCreate, shared.PermUserCreate),
	spec(OpUsersUpdate, shared.PermUserUpdate),
	spec(OpUsersDisable, shared.PermUserDisable),

	spec(OpRolesList, shared.PermRoleRead),
	spec(OpRolesPermissions, shared.PermRoleRead),
	spec(OpRolesUpdate, shared.PermRoleUpdate),
	spec(OpPermissionsList, shared.PermRoleRead),

	spec(OpJobsHealth, shared.PermJobRead),
	spec(OpAuditList, shared.PermAuditRead),

	spec("facilities.list", shared.PermFacilityRead),
	spec("facilities.get", shared.PermFacilityRead),
	spec("facilities.create", shared.PermFacilityCreate),
	spec("facilities.update", shared.PermFacilityUpdate),
	spec("facilities.delete", shared.PermFacilityUpdate),

	spec("zones.list", shared.PermZoneRead),
	spec("zones.get", shared.PermZoneRead),
	spec("zones.create", shared.PermZoneCreate),
	spec("zones.update", shared.PermZoneUpdate),
	spec("zones.delete", shared.PermZoneUpdate),

	spec("sections.list", shared.PermSectionRead),
	spec("sections.get", shared.PermSectionRead),
	spec("sections.create", shared.PermSectionCreate),
	spec("sections.update", shared.PermSectionUpdate),
	spec("sections.delete", shared.PermSectionUpdate),

	spec("locations.list", shared.PermLocationRead),
	spec("locations.get", shared.PermLocationRead),
	spec("locations.create", shared.PermLocationCreate),
	spec("locations.update", shared.PermLocationUpdate),
	spec("locations.delete", shared.PermLocationUpdate),

	spec("location_types.list", shared.PermLocationRead),
	spec("location_types.get", shared.PermLocationRead),
	spec("location_types.create", shared.PermLocationCreate),
	spec("location_types.update", shared.PermLocationUpdate),
	spec("location_types.delete", shared.PermLocationUpdate),

	spec("item_groups.list", shared.PermItemGroupRead),
	spec("item_groups.get", shared.PermItemGroupRead),
	spec("item_groups.create", shared.PermItemGroupCreate),
	spec("item_groups.update", shared.PermItemGroupUpdate),
	spec("item_groups.delete", shared.PermItemGroupUpdate),

	spec("items.list", shared.PermItemRead),
	spec("items.get", shared.PermItemRead),
	spec("items.create", shared.PermItemCreate),
	spec("items.update", shared.PermItemUpdate),
	spec("items.delete", shared.PermItemDelete),

	spec("plates.list", shared.PermPlateRead),
	spec("plates.get", shared.PermPlateRead),
	spec("plates.create", shared.PermPlateCreate),
	spec("plates.update", shared.PermPlateUpdate),
	spec("plates.move", shared.PermInventoryMove),

	spec("orders.create", shared.PermOrderCreate),
}

// Table maps operation ids to compiled rules. It is built once at startup
// and read-only afterwards.
type Table struct {
	rules map[string]Rule
}

// Compile validates the rule specs and builds a Table. Duplicate operation ids and
// malformed tokens are errors.
func Compile(specs []RuleSpec) (*Table, error) {
	rules := make(map[string]Rule, len(specs))
	var errs []error
	for _, s := range specs {
		if s.Op == "" {
			errs = append(errs, errors.New("rbac: rule with empty operation id"))
			continue
		}
		if _, dup := rules[s.Op]; dup {
			errs = append(errs, fmt.Errorf("rbac: duplicate operation %q", s.Op))
			continue
		}
		if s.Mode != ModeAll && s.Mode != ModeAny {
			errs = append(errs, fmt.Errorf("rbac: operation %q has unknown mode %d", s.Op, s.Mode))
			continue
		}
		tokens := make([]Token, 0, len(s.Requires))
		seen := make(map[Token]struct{}, len(s.Requires))
		for _, raw := range s.Requires {
			t, err := ParseToken(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("rbac: operation %q: %w", s.Op, err))
				continue
			}
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			tokens = append(tokens, t)
		}
		rules[s.Op] = Rule{Tokens: tokens, Mode: s.Mode}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Table{rules: rules}, nil
}

// MustCompile panics when Compile fails.
func MustCompile(specs []RuleSpec) *Table {
	t, err := Compile(specs)
	if err != nil {
		panic(err)
	}
	return t
}

// Rule returns the rule of op.
func (t *Table) Rule(op string) (Rule, bool) {
	if t == nil {
		return Rule{}, false
	}
	r, ok := t.rules[op]
	return r, ok
}

// Operations lists the known operation ids, sorted.
func (t *Table) Operations() []string {
	ops := make([]string, 0, len(t.rules))
	for op := range t.rules {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Tokens lists every token any rule requires, sorted and deduplicated.
func (t *Table) Tokens() []string {
	set := make(map[string]struct{})
	for _, r := range t.rules {
		for _, tok := range r.Tokens {
			set[string(tok)] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for tok := range set {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}
