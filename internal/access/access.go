package access

import (
	"context"
	"errors"

	"github.com/sara-platform/portal/internal"
)

var ErrUnknownModule = internal.NewValidationError("One or more modules do not exist", internal.ErrCodeUnknownModule)

// ErrStore marks failures of the grant store itself, as opposed to denials.
var ErrStore = errors.New("access grant store unavailable")

type RepositoryAPI interface {
	Grant(ctx context.Context, userID, moduleID int64, grantedBy *int64) error
	Revoke(ctx context.Context, userID, moduleID int64) error
	// ReplaceGrants swaps the user's whole grant set in one transaction.
	ReplaceGrants(ctx context.Context, userID int64, moduleIDs []int64, grantedBy *int64) error
	HasGrant(ctx context.Context, userID int64, namespace, viewIdentifier string) (bool, error)
	GrantedModuleIDs(ctx context.Context, userID int64) ([]int64, error)
	ExistingModuleIDs(ctx context.Context, ids []int64) ([]int64, error)
}

type ModuleSet map[int64]struct{}

func NewModuleSet(ids ...int64) ModuleSet {
	set := make(ModuleSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func (s ModuleSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}
