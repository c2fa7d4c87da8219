package application

import (
	"context"
	"net/http"

	"github.com/sara-platform/portal/internal/transport"
)

type ServiceAPI interface {
	ListApplications(ctx context.Context) ([]*Application, error)
	ResolveModule(ctx context.Context, namespace, viewIdentifier string) (*Module, error)
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

// GetApplications handles GET /api/applications
func (h *Handler) GetApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.Service.ListApplications(r.Context())
	if err != nil {
		h.Logger.ErrorContext(r.Context(), "GetApplications: failed to list applications", "error", err)
		h.WriteError(w, http.StatusInternalServerError, "failed to get applications")
		return
	}

	resp := ApplicationsResponse{Applications: make([]ApplicationResponse, 0, len(apps))}
	for _, a := range apps {
		resp.Applications = append(resp.Applications, a.ToResponse())
	}
	h.WriteJSON(w, http.StatusOK, resp)
}

// Landing answers the entry page of a protected application. The gate in
// front of it has already checked the module grant.
func (h *Handler) Landing(namespace, viewIdentifier string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := h.Service.ResolveModule(r.Context(), namespace, viewIdentifier)
		if err != nil {
			h.HandleServiceError(w, r, err)
			return
		}
		if m == nil {
			h.WriteError(w, http.StatusNotFound, "module not registered")
			return
		}
		h.WriteJSON(w, http.StatusOK, LandingResponse{
			Namespace: namespace,
			Module:    m.ToResponse(),
		})
	}
}
