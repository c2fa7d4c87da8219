package postgres

import (
	"context"
	"errors"

	"github.com/sara-platform/portal/internal/application"
	applicationDatamodel "github.com/sara-platform/portal/internal/core/datamodel/application"
	"gorm.io/gorm"
)

type ApplicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) application.RepositoryAPI {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) GetAll(ctx context.Context) ([]*applicationDatamodel.Application, error) {
	var apps []*applicationDatamodel.Application
	err := r.db.WithContext(ctx).
		Preload("Modules", func(db *gorm.DB) *gorm.DB {
			return db.Order("name ASC")
		}).
		Order("name ASC").
		Find(&apps).Error
	return apps, err
}

func (r *ApplicationRepository) FindModule(ctx context.Context, namespace, viewIdentifier string) (*applicationDatamodel.Module, error) {
	var m applicationDatamodel.Module
	err := r.db.WithContext(ctx).
		Joins("JOIN applications ON applications.id = modules.application_id").
		Where("applications.namespace = ? AND modules.view_identifier = ?", namespace, viewIdentifier).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// Upsert matches the application by namespace and modules by view identifier,
// filling app (and its modules) with the stored ids.
func (r *ApplicationRepository) Upsert(ctx context.Context, app *applicationDatamodel.Application) error {
	modules := app.Modules
	app.Modules = nil

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where(applicationDatamodel.Application{Namespace: app.Namespace}).
			Assign(applicationDatamodel.Application{Name: app.Name, Description: app.Description}).
			FirstOrCreate(app).Error
		if err != nil {
			return err
		}

		for i := range modules {
			m := &modules[i]
			m.ApplicationID = app.ID
			err := tx.Where(applicationDatamodel.Module{ApplicationID: app.ID, ViewIdentifier: m.ViewIdentifier}).
				Assign(applicationDatamodel.Module{Name: m.Name}).
				FirstOrCreate(m).Error
			if err != nil {
				return err
			}
		}
		app.Modules = modules
		return nil
	})
}
