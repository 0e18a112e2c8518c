package user

import (
	"strings"

	"github.com/miyuou/smartticket/internal"
	"github.com/miyuou/smartticket/internal/core/common/validation"
	userDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/user"
	"github.com/miyuou/smartticket/internal/core/identity"
)

const (
	maxNameLength     = 100
	maxEmailLength    = 120
	minPasswordLength = 6
	maxPasswordLength = 72
)

type CreateUserDTO struct {
	Nom        string `json:"nom"`
	Email      string `json:"email"`
	MotDePasse string `json:"mot_de_passe"`
	Role       string `json:"role"`
}

func (dto CreateUserDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("nom", dto.Nom).Required().MaxLength(maxNameLength)
	v.Field("email", dto.Email).Required().MaxLength(maxEmailLength).Email()
	v.Field("mot_de_passe", dto.MotDePasse).Required().MinLength(minPasswordLength).MaxLength(maxPasswordLength)
	v.Field("role", dto.Role).Required().Custom(validRole)
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// ToDataModel expects a validated DTO and an already hashed password.
func (dto CreateUserDTO) ToDataModel(hash string) *userDatamodel.User {
	role, _ := identity.ParseRole(dto.Role)
	return &userDatamodel.User{
		Nom:        strings.TrimSpace(dto.Nom),
		Email:      normalizeEmail(dto.Email),
		MotDePasse: hash,
		Role:       role.String(),
	}
}

// UpdateUserDTO changes only the fields present in the payload.
type UpdateUserDTO struct {
	Nom        *string `json:"nom"`
	Email      *string `json:"email"`
	MotDePasse *string `json:"mot_de_passe"`
	Role       *string `json:"role"`
}

func (dto UpdateUserDTO) Validate() error {
	v := validation.NewValidator()
	if dto.Nom != nil {
		v.Field("nom", dto.Nom).Required().MaxLength(maxNameLength)
	}
	if dto.Email != nil {
		v.Field("email", dto.Email).Required().MaxLength(maxEmailLength).Email()
	}
	if dto.MotDePasse != nil {
		v.Field("mot_de_passe", dto.MotDePasse).Required().MinLength(minPasswordLength).MaxLength(maxPasswordLength)
	}
	if dto.Role != nil {
		v.Field("role", *dto.Role).Required().Custom(validRole)
	}
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

func (dto UpdateUserDTO) Empty() bool {
	return dto.Nom == nil && dto.Email == nil && dto.MotDePasse == nil && dto.Role == nil
}

func validRole(value interface{}) *internal.AppError {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := identity.ParseRole(s); err != nil {
		return internal.NewValidationFieldError("role", "role must be one of admin, technicien, user", internal.ErrCodeInvalidFormat)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
