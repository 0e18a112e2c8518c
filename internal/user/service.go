package user

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/miyuou/smartticket/internal"
	userDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/user"
	"github.com/miyuou/smartticket/internal/core/identity"
	"github.com/miyuou/smartticket/internal/policy"
)

type Service struct {
	repo       RepositoryAPI
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, bcryptCost int, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

func (s *Service) authorize(ctx context.Context, p identity.Principal) error {
	d := policy.Authorize(p, policy.OpManageUsers, nil)
	if !d.Allowed {
		s.logger.WarnContext(ctx, "user administration denied", "user_id", p.UserID, "role", p.Role.String(), "reason", string(d.Reason))
		return d.Err()
	}
	return nil
}

// ListUsers returns all users, optionally filtered by role name.
func (s *Service) ListUsers(ctx context.Context, p identity.Principal, role string) ([]*User, error) {
	if err := s.authorize(ctx, p); err != nil {
		return nil, err
	}

	stored := ""
	if strings.TrimSpace(role) != "" {
		r, err := identity.ParseRole(role)
		if err != nil {
			return nil, internal.NewValidationFieldError("role", "unknown role filter", internal.ErrCodeInvalidFormat)
		}
		stored = r.String()
	}

	var rows []*userDatamodel.User
	err := s.repo.WithTx(ctx, func(tx RepositoryAPI) error {
		var err error
		rows, err = tx.List(ctx, stored)
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list users", "error", err)
		return nil, err
	}
	return FromDataModelSlice(rows), nil
}

func (s *Service) CreateUser(ctx context.Context, p identity.Principal, dto CreateUserDTO) (*User, error) {
	if err := s.authorize(ctx, p); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(dto.MotDePasse, s.bcryptCost)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}
	row := dto.ToDataModel(hash)

	err = s.repo.WithTx(ctx, func(tx RepositoryAPI) error {
		if err := ensureEmailFree(ctx, tx, row.Email, 0); err != nil {
			return err
		}
		return tx.Create(ctx, row)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user created", "user_id", row.ID, "role", row.Role, "by", p.UserID)
	return FromDataModel(row), nil
}

func (s *Service) UpdateUser(ctx context.Context, p identity.Principal, id int64, dto UpdateUserDTO) (*User, error) {
	if err := s.authorize(ctx, p); err != nil {
		return nil, err
	}
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if dto.Nom != nil {
		fields["nom"] = strings.TrimSpace(*dto.Nom)
	}
	if dto.Email != nil {
		fields["email"] = normalizeEmail(*dto.Email)
	}
	if dto.Role != nil {
		role, _ := identity.ParseRole(*dto.Role)
		fields["role"] = role.String()
	}
	if dto.MotDePasse != nil {
		hash, err := HashPassword(*dto.MotDePasse, s.bcryptCost)
		if err != nil {
			return nil, internal.NewInternalError("failed to hash password", err)
		}
		fields["mot_de_passe"] = hash
	}

	var result *User
	err := s.repo.WithTx(ctx, func(tx RepositoryAPI) error {
		if _, err := tx.GetByID(ctx, id); err != nil {
			return err
		}
		if email, ok := fields["email"].(string); ok {
			if err := ensureEmailFree(ctx, tx, email, id); err != nil {
				return err
			}
		}
		if len(fields) > 0 {
			if err := tx.Update(ctx, id, fields); err != nil {
				return err
			}
		}
		row, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		result = FromDataModel(row)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user updated", "user_id", id, "by", p.UserID)
	return result, nil
}

func (s *Service) DeleteUser(ctx context.Context, p identity.Principal, id int64) error {
	if err := s.authorize(ctx, p); err != nil {
		return err
	}
	if id == p.UserID {
		return ErrCannotDeleteSelf
	}

	err := s.repo.WithTx(ctx, func(tx RepositoryAPI) error {
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "user deleted", "user_id", id, "by", p.UserID)
	return nil
}

// GetMe returns the caller's own account.
func (s *Service) GetMe(ctx context.Context, p identity.Principal) (*User, error) {
	if !p.Role.Valid() {
		return nil, internal.ErrUnknownRole
	}

	var result *User
	err := s.repo.WithTx(ctx, func(tx RepositoryAPI) error {
		row, err := tx.GetByID(ctx, p.UserID)
		if err != nil {
			return err
		}
		result = FromDataModel(row)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func ensureEmailFree(ctx context.Context, tx RepositoryAPI, email string, selfID int64) error {
	existing, err := tx.GetByEmail(ctx, email)
	if errors.Is(err, internal.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != selfID {
		return ErrEmailTaken
	}
	return nil
}
