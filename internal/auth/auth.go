package auth

import (
	"context"
	"time"

	"github.com/sara-platform/portal/internal"
	"github.com/sara-platform/portal/internal/hierarchy"
)

type ctxKey string

const contextIdentityKey ctxKey = "identity"

// Identity is the authenticated requester resolved from the session.
type Identity struct {
	UserID      int64
	Username    string
	IsSuperuser bool
	Roles       []hierarchy.Role
}

func (i *Identity) Subject() hierarchy.Subject {
	return hierarchy.Subject{
		ID:          i.UserID,
		IsSuperuser: i.IsSuperuser,
		Roles:       i.Roles,
	}
}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextIdentityKey, id)
}

func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextIdentityKey).(*Identity)
	return id, ok && id != nil
}

// UserIDFromContext adapts IdentityFromContext for the presence middleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return 0, false
	}
	return id.UserID, true
}

// Credential is what the login flow needs to know about a stored account.
type Credential struct {
	UserID               int64
	Username             string
	PasswordHash         string
	IsActive             bool
	IsSuperuser          bool
	AllowedSourceAddress *string
	LastActivity         *time.Time
	RoleNames            []string
}

// Identity converts the stored account into a request identity. Role names
// the hierarchy does not know are ignored.
func (c *Credential) Identity() *Identity {
	roles := make([]hierarchy.Role, 0, len(c.RoleNames))
	for _, name := range c.RoleNames {
		if role, err := hierarchy.ParseRole(name); err == nil {
			roles = append(roles, role)
		}
	}
	return &Identity{
		UserID:      c.UserID,
		Username:    c.Username,
		IsSuperuser: c.IsSuperuser,
		Roles:       roles,
	}
}

// SourceAllowed reports whether addr may use this account. Accounts without
// a pinned address accept any source.
func (c *Credential) SourceAllowed(addr string) bool {
	if c.AllowedSourceAddress == nil || *c.AllowedSourceAddress == "" {
		return true
	}
	return *c.AllowedSourceAddress == addr
}

type RepositoryAPI interface {
	// FindByUsername and FindByID return (nil, nil) when no account matches.
	FindByUsername(ctx context.Context, username string) (*Credential, error)
	FindByID(ctx context.Context, userID int64) (*Credential, error)
}

var (
	ErrInvalidCredentials = internal.ErrInvalidCredentials
	ErrUserInactive       = internal.ErrUserInactive
	ErrSourceDenied       = internal.ErrSourceAddressDenied
)
