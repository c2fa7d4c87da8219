package postgres

import (
	"context"
	"errors"

	"github.com/sara-platform/portal/internal/auth"
	userDatamodel "github.com/sara-platform/portal/internal/core/datamodel/user"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) auth.RepositoryAPI {
	return &Repository{
		db: db,
	}
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (*auth.Credential, error) {
	return r.find(ctx, "username = ?", username)
}

func (r *Repository) FindByID(ctx context.Context, userID int64) (*auth.Credential, error) {
	return r.find(ctx, "id = ?", userID)
}

func (r *Repository) find(ctx context.Context, query string, arg interface{}) (*auth.Credential, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).
		Preload("Roles").
		Where(query, arg).
		First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toCredential(&u), nil
}

func toCredential(u *userDatamodel.User) *auth.Credential {
	names := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		names = append(names, role.Name)
	}
	return &auth.Credential{
		UserID:               u.ID,
		Username:             u.Username,
		PasswordHash:         u.PasswordHash,
		IsActive:             u.IsActive,
		IsSuperuser:          u.IsSuperuser,
		AllowedSourceAddress: u.AllowedSourceAddress,
		LastActivity:         u.LastActivity,
		RoleNames:            names,
	}
}
