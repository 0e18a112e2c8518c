package lookup

import (
	"context"
	"log/slog"

	"github.com/miyuou/smartticket/internal/core/identity"
	"github.com/miyuou/smartticket/internal/policy"
)

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// List returns the rows of one reference table ordered by name.
func (s *Service) List(ctx context.Context, p identity.Principal, kind Kind) ([]*Item, error) {
	if d := policy.Authorize(p, policy.OpViewLookups, nil); !d.Allowed {
		s.logger.WarnContext(ctx, "lookup access denied", "user_id", p.UserID, "role", p.Role.String(), "reason", string(d.Reason))
		return nil, d.Err()
	}
	if !kind.Valid() {
		return nil, errUnknownKind(kind)
	}

	items, err := s.repo.List(ctx, kind)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list lookups", "kind", kind, "error", err)
		return nil, err
	}
	if items == nil {
		items = []*Item{}
	}

	s.logger.DebugContext(ctx, "retrieved lookups", "kind", kind, "count", len(items))
	return items, nil
}

// Exists reports whether id is present in the reference table for kind.
func (s *Service) Exists(ctx context.Context, kind Kind, id int64) bool {
	if !kind.Valid() || id < 1 {
		return false
	}
	ok, err := s.repo.Exists(ctx, kind, id)
	if err != nil {
		s.logger.WarnContext(ctx, "error checking lookup", "kind", kind, "id", id, "error", err)
		return false
	}
	return ok
}
