package ticket

import (
	"context"
	"log/slog"
	"time"

	"github.com/miyuou/smartticket/internal"
	ticketDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/ticket"
	"github.com/miyuou/smartticket/internal/core/events"
	"github.com/miyuou/smartticket/internal/core/identity"
	"github.com/miyuou/smartticket/internal/core/optional"
	"github.com/miyuou/smartticket/internal/policy"
)

type Config struct {
	// ResolvedStatus is the status name that stamps date_resolution.
	ResolvedStatus string
	// StrictTechnicianUpdates rejects technician payloads carrying fields
	// beyond statut_id instead of dropping them.
	StrictTechnicianUpdates bool
}

type Service struct {
	repo      RepositoryAPI
	publisher events.Publisher
	cfg       Config
	logger    *slog.Logger
	onDeny    func(op policy.Operation, reason policy.Reason)
}

func NewService(repo RepositoryAPI, publisher events.Publisher, cfg Config, logger *slog.Logger) *Service {
	if cfg.ResolvedStatus == "" {
		cfg.ResolvedStatus = internal.DefaultResolvedStatus
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// OnDeny registers a callback run for every denied operation, including
// target checks that only the service can make.
func (s *Service) OnDeny(fn func(op policy.Operation, reason policy.Reason)) {
	s.onDeny = fn
}

func (s *Service) authorize(ctx context.Context, p identity.Principal, op policy.Operation, target *policy.Target) (policy.Decision, error) {
	d := policy.Authorize(p, op, target)
	if !d.Allowed {
		s.logger.WarnContext(ctx, "ticket access denied",
			"user_id", p.UserID,
			"role", p.Role.String(),
			"operation", string(op),
			"reason", string(d.Reason))
		if s.onDeny != nil {
			s.onDeny(op, d.Reason)
		}
		return d, d.Err()
	}
	return d, nil
}

func (s *Service) ListTickets(ctx context.Context, p identity.Principal) ([]*Ticket, error) {
	d, err := s.authorize(ctx, p, policy.OpListTickets, nil)
	if err != nil {
		return nil, err
	}

	var rows []*ticketDatamodel.Ticket
	err = s.repo.WithTx(ctx, func(tx RepositoryAPI) error {
		var err error
		rows, err = tx.List(ctx, d.Scope.Filter)
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list tickets", "error", err, "user_id", p.UserID)
		return nil, err
	}

	return FromDataModelSlice(rows), nil
}

func (s *Service) GetTicket(ctx context.Context, p identity.Principal, id int64) (*Ticket, error) {
	if _, err := s.authorize(ctx, p, policy.OpReadTicket, nil); err != nil {
		return nil, err
	}

	var result *Ticket
	err := s.repo.WithTx(ctx, func(tx RepositoryAPI) error {
		row, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		t := FromDataModel(row)
		if _, err := s.authorize(ctx, p, policy.OpReadTicket, t.PolicyTarget()); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) CreateTicket(ctx context.Context, p identity.Principal, dto CreateTicketDTO) (*Ticket, error) {
	if _, err := s.authorize(ctx, p, policy.OpCreateTicket, nil); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		s.logger.InfoContext(ctx, "ticket validation failed", "error", err, "user_id", p.UserID)
		return nil, err
	}

	var result *Ticket
	err := s.repo.WithTx(ctx, func(tx RepositoryAPI) error {
		row := dto.ToDataModel()

		status, err := tx.GetStatus(ctx, row.StatutID)
		if err != nil {
			return err
		}
		if status.Nom == s.cfg.ResolvedStatus && row.DateResolution == nil {
			now := time.Now().UTC()
			row.DateResolution = &now
		}

		if err := tx.Create(ctx, row); err != nil {
			return err
		}
		if len(dto.TechnicienIDs) > 0 {
			if err := tx.SetAssignees(ctx, row.ID, dto.TechnicienIDs); err != nil {
				return err
			}
		}

		created, err := tx.GetByID(ctx, row.ID)
		if err != nil {
			return err
		}
		result = FromDataModel(created)
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create ticket", "error", err, "user_id", p.UserID)
		return nil, err
	}

	s.logger.InfoContext(ctx, "ticket created", "ticket_id", result.ID, "user_id", p.UserID)
	s.publish(ctx, events.NewTicketEvent(events.EventTypeTicketCreated, result.ID, p.UserID, p.Role.String(), nil))
	return result, nil
}

func (s *Service) UpdateTicket(ctx context.Context, p identity.Principal, id int64, dto UpdateTicketDTO) (*Ticket, error) {
	if _, err := s.authorize(ctx, p, policy.OpUpdateTicket, nil); err != nil {
		return nil, err
	}

	var (
		result  *Ticket
		changed []string
	)
	err := s.repo.WithTx(ctx, func(tx RepositoryAPI) error {
		row, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		current := FromDataModel(row)

		d, err := s.authorize(ctx, p, policy.OpUpdateTicket, current.PolicyTarget())
		if err != nil {
			return err
		}

		patch, assignees, err := s.scopePatch(ctx, p, d.Scope.Mutation, dto)
		if err != nil {
			return err
		}
		if err := s.deriveResolution(ctx, tx, current, &patch); err != nil {
			return err
		}

		if err := tx.Update(ctx, id, patch); err != nil {
			return err
		}
		changed = patch.Fields()

		if assignees.Set {
			if err := tx.SetAssignees(ctx, id, assignees.Value); err != nil {
				return err
			}
			changed = append(changed, "technicien_ids")
		}

		updated, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		result = FromDataModel(updated)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "ticket updated", "ticket_id", id, "user_id", p.UserID, "fields", changed)
	s.publish(ctx, events.NewTicketEvent(events.EventTypeTicketUpdated, id, p.UserID, p.Role.String(), changed))
	return result, nil
}

func (s *Service) DeleteTicket(ctx context.Context, p identity.Principal, id int64) error {
	if _, err := s.authorize(ctx, p, policy.OpDeleteTicket, nil); err != nil {
		return err
	}

	err := s.repo.WithTx(ctx, func(tx RepositoryAPI) error {
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "ticket deleted", "ticket_id", id, "user_id", p.UserID)
	s.publish(ctx, events.NewTicketEvent(events.EventTypeTicketDeleted, id, p.UserID, p.Role.String(), nil))
	return nil
}

// scopePatch narrows the requested change to what the mutation scope allows
// and validates only what is kept.
func (s *Service) scopePatch(ctx context.Context, p identity.Principal, mutation policy.Mutation, dto UpdateTicketDTO) (Patch, optional.Field[[]int64], error) {
	switch mutation {
	case policy.MutationFull:
		if err := dto.Validate(); err != nil {
			return Patch{}, optional.Field[[]int64]{}, err
		}
		return dto.ToPatch(), dto.TechnicienIDs, nil
	case policy.MutationStatusOnly:
		if extra := dto.NonStatusFields(); len(extra) > 0 {
			if s.cfg.StrictTechnicianUpdates {
				return Patch{}, optional.Field[[]int64]{}, internal.NewValidationFieldError(extra[0],
					"technicians may only change statut_id", internal.ErrCodeFieldNotPermitted)
			}
			s.logger.WarnContext(ctx, "dropping fields outside technician update scope",
				"user_id", p.UserID, "fields", extra)
		}
		if err := (UpdateTicketDTO{StatutID: dto.StatutID}).Validate(); err != nil {
			return Patch{}, optional.Field[[]int64]{}, err
		}
		return Patch{StatutID: dto.StatutID}, optional.Field[[]int64]{}, nil
	}
	return Patch{}, optional.Field[[]int64]{}, internal.ErrRoleNotPermitted
}

// deriveResolution stamps date_resolution when the ticket enters the
// resolved status and clears it when it leaves, unless the caller set it.
func (s *Service) deriveResolution(ctx context.Context, tx RepositoryAPI, current *Ticket, patch *Patch) error {
	if !patch.StatutID.Valid || patch.DateResolution.Set {
		return nil
	}
	next, err := tx.GetStatus(ctx, patch.StatutID.Value)
	if err != nil {
		return err
	}

	wasResolved := current.IsResolved(s.cfg.ResolvedStatus)
	isResolved := next.Nom == s.cfg.ResolvedStatus
	switch {
	case isResolved && !wasResolved:
		patch.DateResolution = optional.Of(time.Now().UTC())
	case !isResolved && wasResolved:
		patch.DateResolution = optional.Null[time.Time]()
	}
	return nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSync(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish ticket event", "error", err, "event_type", event.EventType())
	}
}
