package users

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-wms/internal/password"
	"github.com/odyssey-erp/odyssey-wms/internal/shared"
)

const auditEntity = "user"

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id string) (User, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	InsertUser(ctx context.Context, acc NewAccount) error
	LockUser(ctx context.Context, id string) (User, error)
	UpdateProfile(ctx context.Context, id string, p Profile) error
	SetPassword(ctx context.Context, id, hash string, changedAt time.Time, expiresAt *time.Time) error
	Disable(ctx context.Context, id string) error
	ReplaceAssignments(ctx context.Context, id string, a *Assignments) error
	History() password.HistoryStore
}

// Invalidator drops cached access contexts after scope changes.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service handles user business logic.
type Service struct {
	repo        RepositoryPort
	engine      *password.Engine
	invalidator Invalidator
	audit       shared.AuditRecorder
	logger      *slog.Logger
}

// NewService builds Service instance. invalidator and audit may be nil.
func NewService(repo RepositoryPort, engine *password.Engine, invalidator Invalidator, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, engine: engine, invalidator: invalidator, audit: audit, logger: logger}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser inserts the account with its assignments and the first history
// row. New accounts must change their password on first login.
func (s *Service) CreateUser(ctx context.Context, actorID string, in CreateInput) (User, error) {
	lang, err := canonicalLanguage(in.Language)
	if err != nil {
		return User{}, err
	}
	if err := s.engine.Validate(in.Password); err != nil {
		return User{}, err
	}
	hash, err := s.engine.HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	id := strings.ToUpper(strings.TrimSpace(in.ID))
	assignments := &Assignments{
		Roles:      normalize(in.Roles),
		Facilities: normalize(in.Facilities),
		Customers:  normalize(in.Customers),
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		engine := s.engine.WithHistory(tx.History())
		now := engine.Now()
		if err := tx.InsertUser(ctx, NewAccount{
			ID: id,
			Profile: Profile{
				Name:            strings.TrimSpace(in.Name),
				Email:           strings.TrimSpace(in.Email),
				PrimaryFacility: strings.TrimSpace(in.PrimaryFacility),
				Language:        lang,
			},
			Hash:      hash,
			ChangedAt: now,
			ExpiresAt: engine.ExpiryFrom(now),
		}); err != nil {
			return err
		}
		if err := tx.ReplaceAssignments(ctx, id, assignments); err != nil {
			return err
		}
		return engine.AddHistory(ctx, id, hash)
	})
	if err != nil {
		return User{}, err
	}

	s.bump(ctx)
	s.record(ctx, actorID, shared.AuditInsert, id, map[string]any{
		"roles":      assignments.Roles,
		"facilities": assignments.Facilities,
		"customers":  assignments.Customers,
	})
	return s.repo.GetUser(ctx, id)
}

// UpdateUser applies the non-nil fields of in. A supplied password is handled
// like an administrative reset.
func (s *Service) UpdateUser(ctx context.Context, actorID, id string, in UpdateInput) (User, error) {
	var hash string
	if in.Password != nil {
		if err := s.engine.Validate(*in.Password); err != nil {
			return User{}, err
		}
		var err error
		if hash, err = s.engine.HashPassword(*in.Password); err != nil {
			return User{}, err
		}
	}
	var lang string
	if in.Language != nil {
		var err error
		if lang, err = canonicalLanguage(*in.Language); err != nil {
			return User{}, err
		}
	}

	var before User
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if before, err = tx.LockUser(ctx, id); err != nil {
			return err
		}
		profile := Profile{
			Name:            before.Name,
			Email:           before.Email,
			PrimaryFacility: before.PrimaryFacility,
			Language:        before.Language,
		}
		if in.Name != nil {
			profile.Name = strings.TrimSpace(*in.Name)
		}
		if in.Email != nil {
			profile.Email = strings.TrimSpace(*in.Email)
		}
		if in.PrimaryFacility != nil {
			profile.PrimaryFacility = strings.TrimSpace(*in.PrimaryFacility)
		}
		if in.Language != nil {
			profile.Language = lang
		}
		if err := tx.UpdateProfile(ctx, id, profile); err != nil {
			return err
		}
		if in.touchesAssignments() {
			a := &Assignments{}
			if in.Roles != nil {
				a.Roles = normalize(*in.Roles)
			}
			if in.Facilities != nil {
				a.Facilities = normalize(*in.Facilities)
			}
			if in.Customers != nil {
				a.Customers = normalize(*in.Customers)
			}
			if err := tx.ReplaceAssignments(ctx, id, a); err != nil {
				return err
			}
		}
		if hash == "" {
			return nil
		}
		engine := s.engine.WithHistory(tx.History())
		now := engine.Now()
		if err := tx.SetPassword(ctx, id, hash, now, engine.ExpiryFrom(now)); err != nil {
			return err
		}
		return engine.AddHistory(ctx, id, hash)
	})
	if err != nil {
		return User{}, err
	}

	if in.touchesAssignments() {
		s.bump(ctx)
	}
	meta := map[string]any{"password_reset": hash != ""}
	if in.touchesAssignments() {
		meta["old"] = Assignments{Roles: before.Roles, Facilities: before.Facilities, Customers: before.Customers}
	}
	s.record(ctx, actorID, shared.AuditUpdate, id, meta)
	return s.repo.GetUser(ctx, id)
}

// DisableUser marks the account inactive. Users cannot disable themselves.
func (s *Service) DisableUser(ctx context.Context, actorID, id string) error {
	if strings.EqualFold(actorID, id) {
		return fmt.Errorf("%w: cannot disable your own account", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Disable(ctx, id)
	})
	if err != nil {
		return err
	}
	s.bump(ctx)
	s.record(ctx, actorID, shared.AuditDisable, id, nil)
	return nil
}

func (s *Service) bump(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Bump(ctx); err != nil {
		s.logger.Warn("access cache bump", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actorID, action, id string, meta map[string]any) {
	shared.RecordQuietly(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   auditEntity,
		EntityID: id,
		Meta:     meta,
	})
}

// canonicalLanguage validates a BCP 47 tag, defaulting to English.
func canonicalLanguage(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return language.English.String(), nil
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: invalid language %q", shared.ErrValidation, raw)
	}
	return tag.String(), nil
}

func normalize(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
