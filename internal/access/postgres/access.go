package postgres

import (
	"context"
	"time"

	"github.com/sara-platform/portal/internal/access"
	accessDatamodel "github.com/sara-platform/portal/internal/core/datamodel/access"
	applicationDatamodel "github.com/sara-platform/portal/internal/core/datamodel/application"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccessRepository struct {
	db *gorm.DB
}

func NewAccessRepository(db *gorm.DB) access.RepositoryAPI {
	return &AccessRepository{db: db}
}

func (r *AccessRepository) Grant(ctx context.Context, userID, moduleID int64, grantedBy *int64) error {
	row := accessDatamodel.UserModule{
		UserID:    userID,
		ModuleID:  moduleID,
		GrantedBy: grantedBy,
		CreatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (r *AccessRepository) Revoke(ctx context.Context, userID, moduleID int64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND module_id = ?", userID, moduleID).
		Delete(&accessDatamodel.UserModule{}).Error
}

func (r *AccessRepository) ReplaceGrants(ctx context.Context, userID int64, moduleIDs []int64, grantedBy *int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&accessDatamodel.UserModule{}).Error; err != nil {
			return err
		}
		if len(moduleIDs) == 0 {
			return nil
		}

		now := time.Now()
		rows := make([]accessDatamodel.UserModule, 0, len(moduleIDs))
		for _, id := range moduleIDs {
			rows = append(rows, accessDatamodel.UserModule{
				UserID:    userID,
				ModuleID:  id,
				GrantedBy: grantedBy,
				CreatedAt: now,
			})
		}
		return tx.Create(&rows).Error
	})
}

func (r *AccessRepository) HasGrant(ctx context.Context, userID int64, namespace, viewIdentifier string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("user_modules AS um").
		Joins("JOIN modules AS m ON m.id = um.module_id").
		Joins("JOIN applications AS a ON a.id = m.application_id").
		Where("um.user_id = ? AND a.namespace = ? AND m.view_identifier = ?", userID, namespace, viewIdentifier).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *AccessRepository) GrantedModuleIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&accessDatamodel.UserModule{}).
		Where("user_id = ?", userID).
		Order("module_id ASC").
		Pluck("module_id", &ids).Error
	return ids, err
}

func (r *AccessRepository) ExistingModuleIDs(ctx context.Context, ids []int64) ([]int64, error) {
	var found []int64
	err := r.db.WithContext(ctx).
		Model(&applicationDatamodel.Module{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error
	return found, err
}
