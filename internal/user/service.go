package user

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sara-platform/portal/internal"
	"github.com/sara-platform/portal/internal/application"
	"github.com/sara-platform/portal/internal/auth"
	"github.com/sara-platform/portal/internal/core/common/validation"
	userDatamodel "github.com/sara-platform/portal/internal/core/datamodel/user"
	"github.com/sara-platform/portal/internal/hierarchy"
	"github.com/sara-platform/portal/internal/presence"
)

type RepositoryAPI interface {
	// GetByID returns (nil, nil) when the user does not exist.
	GetByID(ctx context.Context, id int64) (*userDatamodel.User, error)
	ListActive(ctx context.Context) ([]*userDatamodel.User, error)
	// ListByRoles returns users holding any of roleNames, or every user when all is set.
	ListByRoles(ctx context.Context, roleNames []string, all bool) ([]*userDatamodel.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, u *userDatamodel.User, roleName string) error
	UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error
	SetRole(ctx context.Context, id int64, roleName string) error
	Delete(ctx context.Context, id int64) error
}

type AccessAPI interface {
	SortedModuleIDs(ctx context.Context, userID int64) ([]int64, error)
	SetExactGrants(ctx context.Context, actorID, userID int64, moduleIDs []int64) error
	Grant(ctx context.Context, actorID, userID, moduleID int64) error
	Revoke(ctx context.Context, actorID, userID, moduleID int64) error
}

type ApplicationAPI interface {
	ListApplications(ctx context.Context) ([]*application.Application, error)
}

type PresenceAPI interface {
	IsOnline(lastActivity *time.Time) bool
}

type Service struct {
	repo       RepositoryAPI
	access     AccessAPI
	apps       ApplicationAPI
	presence   PresenceAPI
	bcryptCost int
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repo RepositoryAPI, access AccessAPI, apps ApplicationAPI, presence PresenceAPI, bcryptCost int, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		access:     access,
		apps:       apps,
		presence:   presence,
		bcryptCost: bcryptCost,
		logger:     logger,
		now:        time.Now,
	}
}

// Directory lists active users with their online status.
func (s *Service) Directory(ctx context.Context) (*DirectoryResponse, error) {
	data, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}

	resp := &DirectoryResponse{Users: make([]UserResponse, 0, len(data))}
	for _, d := range data {
		u := s.toResponse(FromDataModel(d))
		if u.IsOnline {
			resp.OnlineCount++
		}
		resp.Users = append(resp.Users, u)
	}
	return resp, nil
}

// Profile shows a user with every application and the modules they hold.
func (s *Service) Profile(ctx context.Context, requester hierarchy.Subject, id int64) (*ProfileResponse, error) {
	target, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	apps, granted, err := s.accessView(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ProfileResponse{
		User:             s.toResponse(target),
		Applications:     apps,
		GrantedModuleIDs: granted,
		CanManage:        hierarchy.CanManage(requester, target.Subject()),
	}, nil
}

// ManagementList returns the users the requester's role lets them see.
func (s *Service) ManagementList(ctx context.Context, requester hierarchy.Subject) (*ManagementResponse, error) {
	if !hierarchy.IsManagerial(requester) {
		return nil, internal.ErrManagerialRoleRequired
	}

	roles, all := hierarchy.VisibleRoles(requester)
	data, err := s.repo.ListByRoles(ctx, hierarchy.Names(roles), all)
	if err != nil {
		return nil, fmt.Errorf("list manageable users: %w", err)
	}

	visible := make(map[hierarchy.Role]bool, len(roles))
	for _, r := range roles {
		visible[r] = true
	}

	resp := &ManagementResponse{
		Users:           make([]UserResponse, 0, len(data)),
		AssignableRoles: hierarchy.Names(hierarchy.AssignableRoles(requester)),
	}
	for _, d := range data {
		u := FromDataModel(d)
		// a user holding several roles is listed by the highest one
		if !all && !visible[u.EffectiveRole()] {
			continue
		}
		resp.Users = append(resp.Users, s.toResponse(u))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, requester hierarchy.Subject, dto CreateUserDTO) (*UserResponse, error) {
	if !hierarchy.IsManagerial(requester) {
		return nil, internal.ErrManagerialRoleRequired
	}
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}
	role, err := s.assignable(requester, dto.Role)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByUsername(ctx, dto.Username)
	if err != nil {
		return nil, fmt.Errorf("check username %q: %w", dto.Username, err)
	}
	if exists {
		return nil, internal.ErrUsernameTaken
	}

	hash, err := auth.HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	data := &userDatamodel.User{
		Username:     dto.Username,
		Email:        dto.Email,
		FirstName:    dto.FirstName,
		LastName:     dto.LastName,
		PasswordHash: hash,
		IsActive:     true,
		Theme:        ThemeLight,
	}
	if dto.AllowedSourceAddress != "" {
		addr := dto.AllowedSourceAddress
		data.AllowedSourceAddress = &addr
	}
	if err := s.repo.Create(ctx, data, role.String()); err != nil {
		return nil, fmt.Errorf("create user %q: %w", dto.Username, err)
	}

	s.logger.InfoContext(ctx, "user created", "user_id", data.ID, "role", role.String(), "actor_id", requester.ID)
	resp := s.toResponse(FromDataModel(data))
	resp.Role = role.String()
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, requester hierarchy.Subject, id int64, dto UpdateUserDTO) (*UserResponse, error) {
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}
	if _, err := s.manageable(ctx, requester, id); err != nil {
		return nil, err
	}

	var role hierarchy.Role
	if dto.Role != nil {
		r, err := s.assignable(requester, *dto.Role)
		if err != nil {
			return nil, err
		}
		role = r
	}

	fields := map[string]interface{}{}
	if dto.Email != nil {
		fields["email"] = *dto.Email
	}
	if dto.FirstName != nil {
		fields["first_name"] = *dto.FirstName
	}
	if dto.LastName != nil {
		fields["last_name"] = *dto.LastName
	}
	if dto.IsActive != nil {
		fields["is_active"] = *dto.IsActive
	}
	if dto.AllowedSourceAddress != nil {
		if *dto.AllowedSourceAddress == "" {
			fields["allowed_source_address"] = nil
		} else {
			fields["allowed_source_address"] = *dto.AllowedSourceAddress
		}
	}

	if len(fields) > 0 {
		if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
			return nil, fmt.Errorf("update user %d: %w", id, err)
		}
	}
	if dto.Role != nil {
		if err := s.repo.SetRole(ctx, id, role.String()); err != nil {
			return nil, fmt.Errorf("set role of user %d: %w", id, err)
		}
	}

	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "user updated", "user_id", id, "actor_id", requester.ID)
	resp := s.toResponse(updated)
	return &resp, nil
}

func (s *Service) Delete(ctx context.Context, requester hierarchy.Subject, id int64) error {
	target, err := s.manageable(ctx, requester, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	s.logger.InfoContext(ctx, "user deleted", "user_id", id, "username", target.Username, "actor_id", requester.ID)
	return nil
}

// SetPassword is the administrative reset; the old password is not needed.
func (s *Service) SetPassword(ctx context.Context, requester hierarchy.Subject, id int64, dto SetPasswordDTO) error {
	if verr := validation.Struct(dto); verr != nil {
		return verr
	}
	if _, err := s.manageable(ctx, requester, id); err != nil {
		return err
	}
	return s.storePassword(ctx, id, dto.Password)
}

func (s *Service) GetAccess(ctx context.Context, requester hierarchy.Subject, id int64) (*AccessResponse, error) {
	if _, err := s.manageable(ctx, requester, id); err != nil {
		return nil, err
	}
	apps, granted, err := s.accessView(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AccessResponse{UserID: id, Applications: apps, GrantedModuleIDs: granted}, nil
}

// SetAccess replaces the target's whole module grant set.
func (s *Service) SetAccess(ctx context.Context, requester hierarchy.Subject, id int64, dto SetAccessDTO) (*AccessResponse, error) {
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}
	if _, err := s.manageable(ctx, requester, id); err != nil {
		return nil, err
	}
	if err := s.access.SetExactGrants(ctx, requester.ID, id, dto.ModuleIDs); err != nil {
		return nil, err
	}
	apps, granted, err := s.accessView(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AccessResponse{UserID: id, Applications: apps, GrantedModuleIDs: granted}, nil
}

func (s *Service) GrantModule(ctx context.Context, requester hierarchy.Subject, id, moduleID int64) error {
	if _, err := s.manageable(ctx, requester, id); err != nil {
		return err
	}
	return s.access.Grant(ctx, requester.ID, id, moduleID)
}

func (s *Service) RevokeModule(ctx context.Context, requester hierarchy.Subject, id, moduleID int64) error {
	if _, err := s.manageable(ctx, requester, id); err != nil {
		return err
	}
	return s.access.Revoke(ctx, requester.ID, id, moduleID)
}

func (s *Service) UpdateProfile(ctx context.Context, id int64, dto UpdateProfileDTO) (*UserResponse, error) {
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	err := s.repo.UpdateFields(ctx, id, map[string]interface{}{
		"email":      dto.Email,
		"first_name": dto.FirstName,
		"last_name":  dto.LastName,
	})
	if err != nil {
		return nil, fmt.Errorf("update profile of user %d: %w", id, err)
	}
	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := s.toResponse(updated)
	return &resp, nil
}

func (s *Service) ChangeOwnPassword(ctx context.Context, id int64, dto ChangePasswordDTO) error {
	if verr := validation.Struct(dto); verr != nil {
		return verr
	}
	u, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, dto.OldPassword) {
		return internal.NewValidationFieldError("old_password", "old_password is incorrect", internal.ErrCodeValidationFailed)
	}
	return s.storePassword(ctx, id, dto.NewPassword)
}

// SetTheme stores the theme preference and touches nothing else.
func (s *Service) SetTheme(ctx context.Context, id int64, dto ThemeDTO) error {
	if verr := validation.Struct(dto); verr != nil {
		return internal.ErrInvalidTheme.WithDetails(verr.Details)
	}
	if err := s.repo.UpdateFields(ctx, id, map[string]interface{}{"theme": dto.Theme}); err != nil {
		return fmt.Errorf("set theme of user %d: %w", id, err)
	}
	return nil
}

func (s *Service) storePassword(ctx context.Context, id int64, password string) error {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdateFields(ctx, id, map[string]interface{}{"password_hash": hash}); err != nil {
		return fmt.Errorf("store password of user %d: %w", id, err)
	}
	return nil
}

func (s *Service) load(ctx context.Context, id int64) (*User, error) {
	data, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	if data == nil {
		return nil, internal.ErrUserNotFound
	}
	return FromDataModel(data), nil
}

// manageable loads the target and checks that requester strictly outranks it.
func (s *Service) manageable(ctx context.Context, requester hierarchy.Subject, id int64) (*User, error) {
	target, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !hierarchy.CanManage(requester, target.Subject()) {
		s.logger.WarnContext(ctx, "management action refused",
			"actor_id", requester.ID,
			"target_id", id,
			"actor_rank", hierarchy.RankOf(requester),
			"target_rank", hierarchy.RankOf(target.Subject()))
		return nil, internal.ErrCannotManageUser
	}
	return target, nil
}

func (s *Service) assignable(requester hierarchy.Subject, name string) (hierarchy.Role, error) {
	role, err := hierarchy.ParseRole(name)
	if err != nil {
		return hierarchy.RoleNone, internal.NewValidationFieldError("role", "role must be one of: Administrator Coordinator Manager User", internal.ErrCodeInvalidRole)
	}
	if !hierarchy.CanAssign(requester, role) {
		return hierarchy.RoleNone, internal.ErrRoleNotAssignable
	}
	return role, nil
}

func (s *Service) accessView(ctx context.Context, id int64) ([]application.ApplicationResponse, []int64, error) {
	apps, err := s.apps.ListApplications(ctx)
	if err != nil {
		return nil, nil, err
	}
	granted, err := s.access.SortedModuleIDs(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	resp := make([]application.ApplicationResponse, 0, len(apps))
	for _, a := range apps {
		resp = append(resp, a.ToResponse())
	}
	return resp, granted, nil
}

func (s *Service) toResponse(u *User) UserResponse {
	return UserResponse{
		ID:                   u.ID,
		Username:             u.Username,
		Email:                u.Email,
		FirstName:            u.FirstName,
		LastName:             u.LastName,
		FullName:             u.FullName(),
		Role:                 u.EffectiveRole().String(),
		IsActive:             u.IsActive,
		AllowedSourceAddress: u.AllowedSourceAddress,
		IsOnline:             s.presence.IsOnline(u.LastActivity),
		LastActivity:         u.LastActivity,
		LastSeen:             presence.HumanizeLastActivity(u.LastActivity, s.now()),
		Theme:                u.Theme,
	}
}
