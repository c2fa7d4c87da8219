package access

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/sara-platform/portal/internal"
	"github.com/sara-platform/portal/internal/core/events"
)

type Service struct {
	repo      RepositoryAPI
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *Service) Grant(ctx context.Context, actorID, userID, moduleID int64) error {
	if err := s.ensureModules(ctx, []int64{moduleID}); err != nil {
		return err
	}
	if err := s.repo.Grant(ctx, userID, moduleID, &actorID); err != nil {
		return fmt.Errorf("grant module %d to user %d: %w", moduleID, userID, err)
	}
	s.logger.InfoContext(ctx, "module granted", "user_id", userID, "module_id", moduleID, "actor_id", actorID)
	return nil
}

func (s *Service) Revoke(ctx context.Context, actorID, userID, moduleID int64) error {
	if err := s.repo.Revoke(ctx, userID, moduleID); err != nil {
		return fmt.Errorf("revoke module %d from user %d: %w", moduleID, userID, err)
	}
	s.logger.InfoContext(ctx, "module revoked", "user_id", userID, "module_id", moduleID, "actor_id", actorID)
	return nil
}

// SetExactGrants makes moduleIDs the user's complete grant set. Duplicates
// are collapsed; any unknown id rejects the whole request.
func (s *Service) SetExactGrants(ctx context.Context, actorID, userID int64, moduleIDs []int64) error {
	ids := dedupe(moduleIDs)
	if err := s.ensureModules(ctx, ids); err != nil {
		return err
	}

	if err := s.repo.ReplaceGrants(ctx, userID, ids, &actorID); err != nil {
		return fmt.Errorf("replace grants for user %d: %w", userID, err)
	}

	s.logger.InfoContext(ctx, "module grants replaced", "user_id", userID, "actor_id", actorID, "module_ids", ids)
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.NewGrantsReplacedEvent(userID, actorID, ids)); err != nil {
			s.logger.WarnContext(ctx, "failed to publish grants replaced event", "error", err)
		}
	}
	return nil
}

// HasGrant looks the grant up by the composite (namespace, view identifier) key.
// Store failures are wrapped in ErrStore so callers can fail closed.
func (s *Service) HasGrant(ctx context.Context, userID int64, namespace, viewIdentifier string) (bool, error) {
	if namespace == "" || viewIdentifier == "" {
		return false, nil
	}
	ok, err := s.repo.HasGrant(ctx, userID, namespace, viewIdentifier)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStore, err)
	}
	return ok, nil
}

func (s *Service) GrantedModuleIDs(ctx context.Context, userID int64) (ModuleSet, error) {
	ids, err := s.repo.GrantedModuleIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list grants for user %d: %w", userID, err)
	}
	return NewModuleSet(ids...), nil
}

// SortedModuleIDs is GrantedModuleIDs as an ordered slice, for responses.
func (s *Service) SortedModuleIDs(ctx context.Context, userID int64) ([]int64, error) {
	set, err := s.GrantedModuleIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Service) ensureModules(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := s.repo.ExistingModuleIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("check modules: %w", err)
	}

	known := NewModuleSet(found...)
	var missing []internal.ValidationError
	for _, id := range ids {
		if !known.Has(id) {
			missing = append(missing, internal.ValidationError{
				Field:   "module_ids",
				Message: fmt.Sprintf("module %d does not exist", id),
				Code:    string(internal.ErrCodeUnknownModule),
			})
		}
	}
	if len(missing) > 0 {
		return ErrUnknownModule.WithDetails(internal.ValidationErrors{Errors: missing})
	}
	return nil
}

func dedupe(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
