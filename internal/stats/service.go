package stats

import (
	"context"
	"log/slog"

	"github.com/miyuou/smartticket/internal"
	ticketDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/ticket"
	"github.com/miyuou/smartticket/internal/core/identity"
	"github.com/miyuou/smartticket/internal/policy"
	"github.com/miyuou/smartticket/internal/ticket"
)

type Service struct {
	repo           ticket.RepositoryAPI
	resolvedStatus string
	logger         *slog.Logger
	onDeny         func(op policy.Operation, reason policy.Reason)
}

func NewService(repo ticket.RepositoryAPI, resolvedStatus string, logger *slog.Logger) *Service {
	if resolvedStatus == "" {
		resolvedStatus = internal.DefaultResolvedStatus
	}
	return &Service{
		repo:           repo,
		resolvedStatus: resolvedStatus,
		logger:         logger,
	}
}

func (s *Service) OnDeny(fn func(op policy.Operation, reason policy.Reason)) {
	s.onDeny = fn
}

// GetStats reports over the same ticket subset the caller can list.
func (s *Service) GetStats(ctx context.Context, p identity.Principal) (*Report, error) {
	d := policy.Authorize(p, policy.OpViewStats, nil)
	if !d.Allowed {
		s.logger.WarnContext(ctx, "stats access denied", "user_id", p.UserID, "role", p.Role.String(), "reason", string(d.Reason))
		if s.onDeny != nil {
			s.onDeny(policy.OpViewStats, d.Reason)
		}
		return nil, d.Err()
	}

	var rows []*ticketDatamodel.Ticket
	err := s.repo.WithTx(ctx, func(tx ticket.RepositoryAPI) error {
		var err error
		rows, err = tx.List(ctx, d.Scope.Filter)
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load tickets for stats", "error", err, "user_id", p.UserID)
		return nil, err
	}

	report := Compute(ticket.FromDataModelSlice(rows), s.resolvedStatus)
	s.logger.DebugContext(ctx, "computed stats", "user_id", p.UserID, "total", report.TotalTickets)
	return &report, nil
}
