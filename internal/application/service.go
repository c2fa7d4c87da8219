package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	applicationDatamodel "github.com/sara-platform/portal/internal/core/datamodel/application"
	"github.com/sara-platform/portal/internal/metrics"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = 5 * time.Minute
)

type RepositoryAPI interface {
	GetAll(ctx context.Context) ([]*applicationDatamodel.Application, error)
	FindModule(ctx context.Context, namespace, viewIdentifier string) (*applicationDatamodel.Module, error)
	Upsert(ctx context.Context, app *applicationDatamodel.Application) error
}

type Service struct {
	repo   RepositoryAPI
	cache  *lru.LRU[string, Module]
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return NewServiceWithCache(repo, logger, defaultCacheSize, defaultCacheTTL)
}

func NewServiceWithCache(repo RepositoryAPI, logger *slog.Logger, size int, ttl time.Duration) *Service {
	return &Service{
		repo:   repo,
		cache:  lru.NewLRU[string, Module](size, nil, ttl),
		logger: logger,
	}
}

// ListApplications returns every application with its modules, ordered by name.
func (s *Service) ListApplications(ctx context.Context) ([]*Application, error) {
	data, err := s.repo.GetAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to get applications from repository", "error", err)
		return nil, fmt.Errorf("list applications: %w", err)
	}

	apps := make([]*Application, 0, len(data))
	for _, a := range data {
		apps = append(apps, FromDataModel(a))
	}
	return apps, nil
}

// ResolveModule finds the module behind a (namespace, view identifier) pair.
// It returns nil when no such module is registered. Only hits are cached.
func (s *Service) ResolveModule(ctx context.Context, namespace, viewIdentifier string) (*Module, error) {
	key := moduleKey(namespace, viewIdentifier)
	if m, ok := s.cache.Get(key); ok {
		metrics.ModuleCacheTotal.WithLabelValues("hit").Inc()
		return &m, nil
	}
	metrics.ModuleCacheTotal.WithLabelValues("miss").Inc()

	data, err := s.repo.FindModule(ctx, namespace, viewIdentifier)
	if err != nil {
		return nil, fmt.Errorf("resolve module %s: %w", key, err)
	}
	if data == nil {
		return nil, nil
	}

	m := ModuleFromDataModel(data, namespace)
	s.cache.Add(key, m)
	return &m, nil
}

// Register creates or updates an application and its modules. Modules that
// are not listed are left in place.
func (s *Service) Register(ctx context.Context, name, namespace, description string, modules []ModuleSpec) (*Application, error) {
	app := &applicationDatamodel.Application{
		Name:        name,
		Namespace:   namespace,
		Description: description,
	}
	for _, m := range modules {
		app.Modules = append(app.Modules, applicationDatamodel.Module{
			Name:           m.Name,
			ViewIdentifier: m.ViewIdentifier,
		})
	}

	if err := s.repo.Upsert(ctx, app); err != nil {
		return nil, fmt.Errorf("register application %s: %w", namespace, err)
	}
	s.cache.Purge()

	s.logger.InfoContext(ctx, "application registered", "namespace", namespace, "modules", len(modules))
	return FromDataModel(app), nil
}
