package user

import (
	"time"

	"github.com/sara-platform/portal/internal/application"
)

type CreateUserDTO struct {
	Username             string `json:"username" validate:"required,max=150"`
	Email                string `json:"email" validate:"omitempty,email"`
	FirstName            string `json:"first_name" validate:"max=150"`
	LastName             string `json:"last_name" validate:"max=150"`
	Password             string `json:"password" validate:"required,min=8"`
	Role                 string `json:"role" validate:"required,oneof=Administrator Coordinator Manager User"`
	AllowedSourceAddress string `json:"allowed_source_address" validate:"omitempty,ip"`
}

// UpdateUserDTO changes only the fields that are present.
type UpdateUserDTO struct {
	Email                *string `json:"email" validate:"omitempty,email"`
	FirstName            *string `json:"first_name" validate:"omitempty,max=150"`
	LastName             *string `json:"last_name" validate:"omitempty,max=150"`
	Role                 *string `json:"role" validate:"omitempty,oneof=Administrator Coordinator Manager User"`
	IsActive             *bool   `json:"is_active"`
	AllowedSourceAddress *string `json:"allowed_source_address" validate:"omitempty,ip|len=0"`
}

type SetPasswordDTO struct {
	Password string `json:"password" validate:"required,min=8"`
}

type UpdateProfileDTO struct {
	Email     string `json:"email" validate:"omitempty,email"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

type ChangePasswordDTO struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,nefield=OldPassword"`
}

type ThemeDTO struct {
	Theme string `json:"theme" validate:"required,oneof=light dark"`
}

// SetAccessDTO carries the complete module set; an empty list revokes everything.
type SetAccessDTO struct {
	ModuleIDs []int64 `json:"module_ids" validate:"required"`
}

type UserResponse struct {
	ID                   int64      `json:"id"`
	Username             string     `json:"username"`
	Email                string     `json:"email"`
	FirstName            string     `json:"first_name"`
	LastName             string     `json:"last_name"`
	FullName             string     `json:"full_name"`
	Role                 string     `json:"role"`
	IsActive             bool       `json:"is_active"`
	AllowedSourceAddress *string    `json:"allowed_source_address,omitempty"`
	IsOnline             bool       `json:"is_online"`
	LastActivity         *time.Time `json:"last_activity,omitempty"`
	LastSeen             string     `json:"last_seen"`
	Theme                string     `json:"theme"`
}

type DirectoryResponse struct {
	Users       []UserResponse `json:"users"`
	OnlineCount int            `json:"online_count"`
}

type ProfileResponse struct {
	User             UserResponse                      `json:"user"`
	Applications     []application.ApplicationResponse `json:"applications"`
	GrantedModuleIDs []int64                           `json:"granted_module_ids"`
	CanManage        bool                              `json:"can_manage"`
}

type ManagementResponse struct {
	Users           []UserResponse `json:"users"`
	AssignableRoles []string       `json:"assignable_roles"`
}

type AccessResponse struct {
	UserID           int64                             `json:"user_id"`
	Applications     []application.ApplicationResponse `json:"applications"`
	GrantedModuleIDs []int64                           `json:"granted_module_ids"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
