package profiles

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alkesia/alkesia/internal/platform/httpx"
	"github.com/alkesia/alkesia/internal/rbac"
	"github.com/alkesia/alkesia/internal/shared"
)

// Handler manages user administration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   *rbac.Guard
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *rbac.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers user administration routes. Listing is readable by
// reports.view holders; every mutation requires users.manage.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(rbac.PermReportsView))
		r.Get("/", h.listProfiles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(rbac.PermUsersManage))
		r.Get("/{userID}", h.getProfile)
		r.Patch("/{userID}/role", h.changeRole)
		r.Patch("/{userID}/active", h.setActive)
	})
}

func (h *Handler) listProfiles(w http.ResponseWriter, r *http.Request) {
	actor := rbac.SubjectFromContext(r.Context())
	list, err := h.service.List(r.Context(), actor)
	if err != nil {
		h.logger.Error("list profiles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": list})
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get profile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

type changeRoleRequest struct {
	Role string `json:"role"`
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	var req changeRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	actor := rbac.SubjectFromContext(r.Context())
	profile, err := h.service.ChangeRole(r.Context(), actor, chi.URLParam(r, "userID"), req.Role)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.notify(r, "success", "Role pengguna diperbarui")
	httpx.JSON(w, http.StatusOK, profile)
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Active == nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	actor := rbac.SubjectFromContext(r.Context())
	profile, err := h.service.SetActive(r.Context(), actor, chi.URLParam(r, "userID"), *req.Active)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if *req.Active {
		h.notify(r, "success", "Akun diaktifkan")
	} else {
		h.notify(r, "success", "Akun dinonaktifkan")
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) notify(r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddToast(shared.Toast{Kind: kind, Message: message})
	}
}
