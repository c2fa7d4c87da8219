package user

import (
	"strings"
	"time"

	userDatamodel "github.com/sara-platform/portal/internal/core/datamodel/user"
	"github.com/sara-platform/portal/internal/hierarchy"
)

const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// User is the portal account as the management and directory pages see it.
type User struct {
	ID                   int64
	Username             string
	Email                string
	FirstName            string
	LastName             string
	PasswordHash         string
	IsActive             bool
	IsSuperuser          bool
	AllowedSourceAddress *string
	LastActivity         *time.Time
	Theme                string
	Roles                []hierarchy.Role
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (u *User) Subject() hierarchy.Subject {
	return hierarchy.Subject{
		ID:          u.ID,
		IsSuperuser: u.IsSuperuser,
		Roles:       u.Roles,
	}
}

// EffectiveRole is the role matching the user's rank, so superusers read as
// administrators.
func (u *User) EffectiveRole() hierarchy.Role {
	return hierarchy.Role(hierarchy.RankOf(u.Subject()))
}

func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

func FromDataModel(u *userDatamodel.User) *User {
	roles := make([]hierarchy.Role, 0, len(u.Roles))
	for _, r := range u.Roles {
		if role, err := hierarchy.ParseRole(r.Name); err == nil {
			roles = append(roles, role)
		}
	}
	return &User{
		ID:                   u.ID,
		Username:             u.Username,
		Email:                u.Email,
		FirstName:            u.FirstName,
		LastName:             u.LastName,
		PasswordHash:         u.PasswordHash,
		IsActive:             u.IsActive,
		IsSuperuser:          u.IsSuperuser,
		AllowedSourceAddress: u.AllowedSourceAddress,
		LastActivity:         u.LastActivity,
		Theme:                u.Theme,
		Roles:                roles,
		CreatedAt:            u.CreatedAt,
		UpdatedAt:            u.UpdatedAt,
	}
}
