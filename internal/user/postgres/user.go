package postgres

import (
	"context"
	"errors"

	accessDatamodel "github.com/sara-platform/portal/internal/core/datamodel/access"
	userDatamodel "github.com/sara-platform/portal/internal/core/datamodel/user"
	"github.com/sara-platform/portal/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.RepositoryAPI {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.WithContext(ctx).Preload("Roles").First(&u, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) ListActive(ctx context.Context) ([]*userDatamodel.User, error) {
	var users []*userDatamodel.User
	err := r.db.WithContext(ctx).
		Preload("Roles").
		Where("is_active = ?", true).
		Order("username").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) ListByRoles(ctx context.Context, roleNames []string, all bool) ([]*userDatamodel.User, error) {
	query := r.db.WithContext(ctx).Preload("Roles").Order("username")
	if !all {
		if len(roleNames) == 0 {
			return []*userDatamodel.User{}, nil
		}
		holders := r.db.Table("user_roles").
			Select("user_roles.user_id").
			Joins("JOIN roles ON roles.id = user_roles.role_id").
			Where("roles.name IN ?", roleNames)
		query = query.Where("id IN (?)", holders)
	}

	var users []*userDatamodel.User
	if err := query.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("username = ?", username).
		Count(&count).Error
	return count > 0, err
}

// Create inserts the user together with their role membership.
func (r *UserRepository) Create(ctx context.Context, u *userDatamodel.User, roleName string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := findOrCreateRole(tx, roleName)
		if err != nil {
			return err
		}
		u.Roles = []userDatamodel.Role{*role}
		return tx.Create(u).Error
	})
}

func (r *UserRepository) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// SetRole replaces every role membership of the user with roleName.
func (r *UserRepository) SetRole(ctx context.Context, id int64, roleName string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := findOrCreateRole(tx, roleName)
		if err != nil {
			return err
		}
		return tx.Model(&userDatamodel.User{ID: id}).Association("Roles").Replace(role)
	})
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&accessDatamodel.UserModule{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&userDatamodel.User{ID: id}).Association("Roles").Clear(); err != nil {
			return err
		}
		return tx.Delete(&userDatamodel.User{}, id).Error
	})
}

func findOrCreateRole(tx *gorm.DB, name string) (*userDatamodel.Role, error) {
	var role userDatamodel.Role
	if err := tx.Where(userDatamodel.Role{Name: name}).FirstOrCreate(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}
