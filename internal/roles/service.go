package roles

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/odyssey-erp/odyssey-wms/internal/rbac"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	RolePermissions(ctx context.Context, roleID string) ([]string, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	RolePermissions(ctx context.Context, roleID string) ([]string, error)
	ReplacePermissions(ctx context.Context, roleID string, tokens []string) error
}

// Invalidator drops cached access contexts after grant changes.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service handles role business logic.
type Service struct {
	repo        RepositoryPort
	invalidator Invalidator
	audit       shared.AuditRecorder
	logger      *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, invalidator Invalidator, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, invalidator: invalidator, audit: audit, logger: logger}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// Permissions returns the tokens granted to the role.
func (s *Service) Permissions(ctx context.Context, roleID string) ([]string, error) {
	return s.repo.RolePermissions(ctx, strings.TrimSpace(roleID))
}

// ReplacePermissions swaps the full permission set of a role in one
// transaction and invalidates cached access contexts.
func (s *Service) ReplacePermissions(ctx context.Context, actorID, roleID string, tokens []string) (PermissionChange, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return PermissionChange{}, fmt.Errorf("%w: %v", shared.ErrValidation, errNoRole)
	}
	next, err := canonicalTokens(tokens)
	if err != nil {
		return PermissionChange{}, err
	}

	change := PermissionChange{New: next}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.RolePermissions(ctx, roleID)
		if err != nil {
			return err
		}
		change.Old = old
		return tx.ReplacePermissions(ctx, roleID, next)
	})
	if err != nil {
		return PermissionChange{}, err
	}

	if s.invalidator != nil {
		if err := s.invalidator.Bump(ctx); err != nil {
			s.logger.Warn("access cache bump", slog.Any("error", err))
		}
	}
	shared.RecordQuietly(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  actorID,
		Action:   shared.AuditUpdate,
		Entity:   "role",
		EntityID: roleID,
		Meta:     map[string]any{"permissions": change},
	})
	return change, nil
}

func canonicalTokens(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		tok, err := rbac.ParseToken(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
		}
		if _, ok := seen[tok.String()]; ok {
			continue
		}
		seen[tok.String()] = struct{}{}
		out = append(out, tok.String())
	}
	sort.Strings(out)
	return out, nil
}
