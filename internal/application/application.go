package application

import (
	"time"

	applicationDatamodel "github.com/sara-platform/portal/internal/core/datamodel/application"
)

type Application struct {
	ID          int64
	Name        string
	Namespace   string
	Description string
	Modules     []Module
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Module struct {
	ID             int64
	ApplicationID  int64
	Namespace      string
	Name           string
	ViewIdentifier string
}

// Key is the composite authorization key of the module.
func (m Module) Key() string {
	return moduleKey(m.Namespace, m.ViewIdentifier)
}

func moduleKey(namespace, viewIdentifier string) string {
	return namespace + ":" + viewIdentifier
}

// ModuleSpec describes a module to register.
type ModuleSpec struct {
	Name           string
	ViewIdentifier string
}

func (a *Application) ToResponse() ApplicationResponse {
	modules := make([]ModuleResponse, 0, len(a.Modules))
	for _, m := range a.Modules {
		modules = append(modules, m.ToResponse())
	}
	return ApplicationResponse{
		ID:          a.ID,
		Name:        a.Name,
		Namespace:   a.Namespace,
		Description: a.Description,
		Modules:     modules,
	}
}

func (m Module) ToResponse() ModuleResponse {
	return ModuleResponse{
		ID:             m.ID,
		Name:           m.Name,
		ViewIdentifier: m.ViewIdentifier,
	}
}

func FromDataModel(a *applicationDatamodel.Application) *Application {
	app := &Application{
		ID:          a.ID,
		Name:        a.Name,
		Namespace:   a.Namespace,
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
		Modules:     make([]Module, 0, len(a.Modules)),
	}
	for _, m := range a.Modules {
		app.Modules = append(app.Modules, ModuleFromDataModel(&m, a.Namespace))
	}
	return app
}

func ModuleFromDataModel(m *applicationDatamodel.Module, namespace string) Module {
	return Module{
		ID:             m.ID,
		ApplicationID:  m.ApplicationID,
		Namespace:      namespace,
		Name:           m.Name,
		ViewIdentifier: m.ViewIdentifier,
	}
}
