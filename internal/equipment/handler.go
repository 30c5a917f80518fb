package equipment

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/alkesia/alkesia/internal/platform/httpx"
	"github.com/alkesia/alkesia/internal/rbac"
	"github.com/alkesia/alkesia/internal/shared"
)

// Handler manages equipment inventory endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	guard    *rbac.Guard
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *rbac.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, validate: validator.New()}
}

// MountRoutes registers equipment routes. Reads and writes carry separate
// permissions; the maintenance/calibration sub-resources carry their own.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(rbac.PermEquipmentView))
		r.Get("/", h.listEquipment)
		r.Get("/{equipmentID}", h.getEquipment)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(rbac.PermEquipmentManage))
		r.Post("/", h.registerEquipment)
		r.Patch("/{equipmentID}/status", h.changeStatus)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(rbac.PermMaintenanceView))
		r.Get("/{equipmentID}/maintenance", h.listMaintenance)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(rbac.PermMaintenanceManage))
		r.Post("/{equipmentID}/maintenance", h.logMaintenance)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(rbac.PermCalibrationView))
		r.Get("/{equipmentID}/calibrations", h.listCalibrations)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePermission(rbac.PermCalibrationManage))
		r.Post("/{equipmentID}/calibrations", h.logCalibration)
	})
}

func (h *Handler) listEquipment(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), rbac.SubjectFromContext(r.Context()))
	if err != nil {
		h.logger.Error("list equipment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"equipment": list})
}

func (h *Handler) getEquipment(w http.ResponseWriter, r *http.Request) {
	eq, err := h.service.Get(r.Context(), rbac.SubjectFromContext(r.Context()), chi.URLParam(r, "equipmentID"))
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, eq)
}

type registerRequest struct {
	TenantID     string     `json:"tenant_id"`
	Name         string     `json:"name" validate:"required"`
	SerialNumber string     `json:"serial_number" validate:"required"`
	Category     string     `json:"category"`
	PurchasedAt  *time.Time `json:"purchased_at"`
}

func (h *Handler) registerEquipment(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	eq, err := h.service.Register(r.Context(), rbac.SubjectFromContext(r.Context()), NewEquipment{
		TenantID:     req.TenantID,
		Name:         req.Name,
		SerialNumber: req.SerialNumber,
		Category:     req.Category,
		PurchasedAt:  req.PurchasedAt,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, eq)
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	eq, err := h.service.ChangeStatus(r.Context(), rbac.SubjectFromContext(r.Context()), chi.URLParam(r, "equipmentID"), Status(req.Status))
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, eq)
}

func (h *Handler) listMaintenance(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Maintenance(r.Context(), rbac.SubjectFromContext(r.Context()), chi.URLParam(r, "equipmentID"))
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": records})
}

type maintenanceRequest struct {
	PerformedAt time.Time  `json:"performed_at" validate:"required"`
	NextDueAt   *time.Time `json:"next_due_at"`
	Notes       string     `json:"notes"`
}

func (h *Handler) logMaintenance(w http.ResponseWriter, r *http.Request) {
	var req maintenanceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	rec, err := h.service.LogMaintenance(r.Context(), rbac.SubjectFromContext(r.Context()), chi.URLParam(r, "equipmentID"), req.PerformedAt, req.NextDueAt, req.Notes)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) listCalibrations(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Calibrations(r.Context(), rbac.SubjectFromContext(r.Context()), chi.URLParam(r, "equipmentID"))
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": records})
}

type calibrationRequest struct {
	CertificateNo string    `json:"certificate_no" validate:"required"`
	CalibratedAt  time.Time `json:"calibrated_at" validate:"required"`
	ExpiresAt     time.Time `json:"expires_at" validate:"required"`
}

func (h *Handler) logCalibration(w http.ResponseWriter, r *http.Request) {
	var req calibrationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	rec, err := h.service.LogCalibration(r.Context(), rbac.SubjectFromContext(r.Context()), chi.URLParam(r, "equipmentID"), req.CertificateNo, req.CalibratedAt, req.ExpiresAt)
	if err != nil {
		h.respondLookupError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	httpx.RespondError(w, err)
}
