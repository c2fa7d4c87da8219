// Package hierarchy ranks portal users and decides who may administer whom.
//
// Everything here is pure: no I/O, no shared state, safe for concurrent use.
package hierarchy

import (
	"errors"
	"strings"
)

// Role is one of the fixed portal roles. Its numeric value is its rank:
// a lower number means more authority.
type Role int

const (
	RoleAdministrator Role = iota + 1
	RoleCoordinator
	RoleManager
	RoleUser
	RoleNone
)

// ranked lists the assignable roles from most to least authority.
var ranked = []Role{RoleAdministrator, RoleCoordinator, RoleManager, RoleUser}

var ErrUnknownRole = errors.New("unknown role")

func (r Role) Rank() int {
	if r < RoleAdministrator || r > RoleNone {
		return int(RoleNone)
	}
	return int(r)
}

func (r Role) String() string {
	switch r {
	case RoleAdministrator:
		return "Administrator"
	case RoleCoordinator:
		return "Coordinator"
	case RoleManager:
		return "Manager"
	case RoleUser:
		return "User"
	default:
		return "None"
	}
}

// ParseRole maps a role name (case-insensitive) to its Role.
func ParseRole(name string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "administrator":
		return RoleAdministrator, nil
	case "coordinator":
		return RoleCoordinator, nil
	case "manager":
		return RoleManager, nil
	case "user":
		return RoleUser, nil
	}
	return RoleNone, ErrUnknownRole
}

// Subject is the minimal view of a user needed for ranking.
type Subject struct {
	ID          int64
	IsSuperuser bool
	Roles       []Role
}

func (s Subject) has(role Role) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// PrimaryRole returns the highest-authority role the subject holds,
// checked in Administrator, Coordinator, Manager, User order.
func PrimaryRole(s Subject) Role {
	for _, role := range ranked {
		if s.has(role) {
			return role
		}
	}
	return RoleNone
}

// RankOf returns 1 for superusers and administrators, 2..4 for the other
// roles and 5 when the subject holds no role.
func RankOf(s Subject) int {
	if s.IsSuperuser {
		return RoleAdministrator.Rank()
	}
	return PrimaryRole(s).Rank()
}

// CanManage reports whether requester strictly outranks target.
// Nobody manages themselves through this path.
func CanManage(requester, target Subject) bool {
	if requester.ID == target.ID {
		return false
	}
	return RankOf(requester) < RankOf(target)
}

// IsManagerial reports whether the subject may open the user management pages.
func IsManagerial(s Subject) bool {
	return RankOf(s) <= RoleManager.Rank()
}

// AssignableRoles lists the roles requester may give to users they create or edit.
func AssignableRoles(requester Subject) []Role {
	switch RankOf(requester) {
	case 1:
		return []Role{RoleAdministrator, RoleCoordinator, RoleManager, RoleUser}
	case 2:
		return []Role{RoleManager, RoleUser}
	case 3:
		return []Role{RoleUser}
	}
	return nil
}

// CanAssign reports whether role is in AssignableRoles(requester).
func CanAssign(requester Subject, role Role) bool {
	for _, r := range AssignableRoles(requester) {
		if r == role {
			return true
		}
	}
	return false
}

// VisibleRoles lists the roles whose holders appear in the requester's
// management listing. all is true when the requester sees every user,
// including those without a role.
func VisibleRoles(requester Subject) (roles []Role, all bool) {
	switch RankOf(requester) {
	case 1:
		return nil, true
	case 2:
		return []Role{RoleCoordinator, RoleManager, RoleUser}, false
	case 3:
		return []Role{RoleManager, RoleUser}, false
	}
	return nil, false
}

// Names renders roles by name.
func Names(roles []Role) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.String())
	}
	return names
}
