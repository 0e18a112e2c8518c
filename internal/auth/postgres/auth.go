package postgres

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"

	"github.com/miyuou/smartticket/internal"
	"github.com/miyuou/smartticket/internal/auth"
	userDatamodel "github.com/miyuou/smartticket/internal/core/datamodel/user"
	"github.com/miyuou/smartticket/internal/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetCredentials(ctx context.Context, email string) (*auth.Credentials, error) {
	var creds auth.Credentials
	query := `SELECT id, mot_de_passe, role FROM users WHERE LOWER(email) = LOWER(?)`

	row := r.db.WithContext(ctx).Raw(query, email).Row()
	if err := row.Scan(&creds.UserID, &creds.PasswordHash, &creds.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &creds, nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (*user.User, error) {
	var u userDatamodel.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return user.FromDataModel(&u), nil
}
