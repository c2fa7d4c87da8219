package user

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/sara-platform/portal/internal"
	"github.com/sara-platform/portal/internal/auth"
	"github.com/sara-platform/portal/internal/hierarchy"
	"github.com/sara-platform/portal/internal/transport"
)

type ServiceAPI interface {
	Directory(ctx context.Context) (*DirectoryResponse, error)
	Profile(ctx context.Context, requester hierarchy.Subject, id int64) (*ProfileResponse, error)
	ManagementList(ctx context.Context, requester hierarchy.Subject) (*ManagementResponse, error)
	Create(ctx context.Context, requester hierarchy.Subject, dto CreateUserDTO) (*UserResponse, error)
	Update(ctx context.Context, requester hierarchy.Subject, id int64, dto UpdateUserDTO) (*UserResponse, error)
	Delete(ctx context.Context, requester hierarchy.Subject, id int64) error
	SetPassword(ctx context.Context, requester hierarchy.Subject, id int64, dto SetPasswordDTO) error
	GetAccess(ctx context.Context, requester hierarchy.Subject, id int64) (*AccessResponse, error)
	SetAccess(ctx context.Context, requester hierarchy.Subject, id int64, dto SetAccessDTO) (*AccessResponse, error)
	GrantModule(ctx context.Context, requester hierarchy.Subject, id, moduleID int64) error
	RevokeModule(ctx context.Context, requester hierarchy.Subject, id, moduleID int64) error
	UpdateProfile(ctx context.Context, id int64, dto UpdateProfileDTO) (*UserResponse, error)
	ChangeOwnPassword(ctx context.Context, id int64, dto ChangePasswordDTO) error
	SetTheme(ctx context.Context, id int64, dto ThemeDTO) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// requester returns the authenticated identity. Routes are mounted behind the
// login gate, so a missing identity is answered with 401.
func (h *Handler) requester(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrAuthenticationRequired)
		return nil, false
	}
	return identity, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		h.WriteAppError(w, internal.NewValidationFieldError(param, param+" must be a positive integer", internal.ErrCodeInvalidRequest))
		return 0, false
	}
	return id, true
}

// ListDirectory handles GET /users/
func (h *Handler) ListDirectory(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requester(w, r); !ok {
		return
	}
	resp, err := h.Service.Directory(r.Context())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// GetProfile handles GET /users/{id}
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requester(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	resp, err := h.Service.Profile(r.Context(), identity.Subject(), id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// ListManageable handles GET /management/users/
func (h *Handler) ListManageable(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requester(w, r)
	if !ok {
		return
	}
	resp, err := h.Service.ManagementList(r.Context(), identity.Subject())
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// CreateUser handles POST /management/users/
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requester(w, r)
	if !ok {
		return
	}
	var dto CreateUserDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	resp, err := h.Service.Create(r.Context(), identity.Subject(), dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, resp)
}

// UpdateUser handles PUT /management/users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requester(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var dto UpdateUserDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	resp, err := h.Service.Update(r.Context(), identity.Subject(), id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// DeleteUser handles DELETE /management/users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requester(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.Delete(r.Context(), identity.Subject(), id); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword handles PUT /management/users/{id}/password
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requester(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var dto SetPasswordDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if err := h.Service.SetPassword(r.Context(), identity.Subject(), id, dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetAccess handles GET /management/users/{id}/access
func (h *Handler) GetAccess(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requester(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	resp, err := h.Service.GetAccess(r.Context(), identity.Subject(), id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// SetAccess handles PUT /management/users/{id}/access
func (h *Handler) SetAccess(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requester(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var dto SetAccessDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	resp, err := h.Service.SetAccess(r.Context(), identity.Subject(), id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// GrantModule handles PUT /management/users/{id}/access/{moduleID}
func (h *Handler) GrantModule(w http.ResponseWriter, r *http.Request) {
	h.changeGrant(w, r, h.Service.GrantModule)
}

// RevokeModule handles DELETE /management/users/{id}/access/{moduleID}
func (h *Handler) RevokeModule(w http.ResponseWriter, r *http.Request) {
	h.changeGrant(w, r, h.Service.RevokeModule)
}

func (h *Handler) changeGrant(w http.ResponseWriter, r *http.Request, change func(context.Context, hierarchy.Subject, int64, int64) error) {
	identity, ok := h.requester(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	moduleID, ok := h.pathID(w, r, "moduleID")
	if !ok {
		return
	}
	if err := change(r.Context(), identity.Subject(), id, moduleID); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdateProfile handles PUT /profile/
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requester(w, r)
	if !ok {
		return
	}
	var dto UpdateProfileDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	resp, err := h.Service.UpdateProfile(r.Context(), identity.UserID, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// ChangePassword handles PUT /profile/password/
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requester(w, r)
	if !ok {
		return
	}
	var dto ChangePasswordDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	if err := h.Service.ChangeOwnPassword(r.Context(), identity.UserID, dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, StatusResponse{Status: "ok", Message: "Your password was changed successfully."})
}

// SetTheme handles POST /set-theme/. Errors use the same {status, message}
// body as success.
func (h *Handler) SetTheme(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.requester(w, r)
	if !ok {
		return
	}
	var dto ThemeDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteJSON(w, http.StatusBadRequest, StatusResponse{Status: "error", Message: "Invalid request."})
		return
	}
	if err := h.Service.SetTheme(r.Context(), identity.UserID, dto); err != nil {
		if errors.Is(err, internal.ErrInvalidTheme) {
			h.WriteJSON(w, http.StatusBadRequest, StatusResponse{Status: "error", Message: "Invalid theme."})
			return
		}
		h.Logger.ErrorContext(r.Context(), "Handler: failed to store theme", "user_id", identity.UserID, "error", err)
		h.WriteJSON(w, http.StatusInternalServerError, StatusResponse{Status: "error", Message: "Could not update the theme."})
		return
	}
	h.WriteJSON(w, http.StatusOK, StatusResponse{Status: "ok", Message: "Theme updated successfully."})
}
