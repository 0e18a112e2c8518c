package user

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/miyuou/smartticket/internal"
	userDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/user"
	"github.com/miyuou/smartticket/internal/core/identity"
)

// User is the public view of an account. The password hash stays in the
// data model.
type User struct {
	ID    int64         `json:"id"`
	Nom   string        `json:"nom"`
	Email string        `json:"email"`
	Role  identity.Role `json:"role"`
}

var ErrEmailTaken = internal.NewValidationFieldError("email", "Email already in use", internal.ErrCodeEmailTaken)

var ErrCannotDeleteSelf = internal.NewValidationError("You cannot delete your own account", internal.ErrCodeCannotDeleteMe)

type RepositoryAPI interface {
	WithTx(ctx context.Context, fn func(tx RepositoryAPI) error) error
	// List returns every user, or only those with the stored role name when
	// role is not empty.
	List(ctx context.Context, role string) ([]*userDatamodel.User, error)
	GetByID(ctx context.Context, id int64) (*userDatamodel.User, error)
	GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	Create(ctx context.Context, u *userDatamodel.User) error
	Update(ctx context.Context, id int64, fields map[string]interface{}) error
	// Delete removes the user and every assignment pointing at them.
	Delete(ctx context.Context, id int64) error
}

func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func FromDataModel(u *userDatamodel.User) *User {
	role, _ := identity.ParseRole(u.Role)
	return &User{
		ID:    u.ID,
		Nom:   u.Nom,
		Email: u.Email,
		Role:  role,
	}
}

func FromDataModelSlice(users []*userDatamodel.User) []*User {
	result := make([]*User, len(users))
	for i, u := range users {
		result[i] = FromDataModel(u)
	}
	return result
}
