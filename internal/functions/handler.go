package functions

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alkesia/alkesia/internal/platform/httpx"
	"github.com/alkesia/alkesia/internal/rbac"
	"github.com/alkesia/alkesia/internal/shared"
)

// Handler exposes the procedures as JSON POST endpoints. Browsers call them
// cross-origin, so every endpoint also answers a CORS preflight with an
// empty 200.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the procedure endpoints. requireAuth guards the
// create-user POST only: preflights never carry credentials and the
// promotion path must work before a profile exists. Nil means no guard,
// which the tests use; the procedures still validate everything they
// depend on themselves.
func (h *Handler) MountRoutes(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	if requireAuth == nil {
		requireAuth = func(next http.Handler) http.Handler { return next }
	}
	r.Options("/create-user", h.preflight)
	r.With(requireAuth).Post("/create-user", h.createUser)
	r.Options("/promote-super-admin", h.preflight)
	r.Post("/promote-super-admin", h.promoteSuperAdmin)
}

// envelope is the response contract shared by both procedures.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func (h *Handler) preflight(w http.ResponseWriter, r *http.Request) {
	writeCORS(w)
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	writeCORS(w)

	// Defense in depth: the route is already guarded, but the procedure
	// re-checks the caller through the central permission matrix.
	actor := rbac.SubjectFromContext(r.Context())
	if actor == nil || !rbac.HasPermission(actor.Role, rbac.PermUsersManage) {
		h.respondError(w, errf(KindUnauthorized, "caller may not manage users"))
		return
	}

	var req CreateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, errf(KindValidation, "malformed JSON body"))
		return
	}

	result, err := h.service.CreateUser(r.Context(), actor.UserID, req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.notify(r, "success", "Pengguna baru berhasil dibuat")
	httpx.JSON(w, http.StatusOK, envelope{Success: true, Message: "user created", Data: result})
}

type promoteRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (h *Handler) promoteSuperAdmin(w http.ResponseWriter, r *http.Request) {
	writeCORS(w)

	var req promoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.respondError(w, errf(KindValidation, "malformed JSON body"))
		return
	}

	result, err := h.service.PromoteSelfToSuperAdmin(r.Context(), req.UserID, req.Email)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, envelope{Success: true, Message: result.Message, Data: result})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var procErr *Error
	if !errors.As(err, &procErr) {
		procErr = errf(KindInternal, "unexpected error")
	}
	if procErr.Kind == KindInternal || procErr.Kind == KindInconsistent {
		h.logger.Error("procedure failed", slog.String("kind", string(procErr.Kind)), slog.String("message", procErr.Message))
	} else {
		h.logger.Warn("procedure rejected", slog.String("kind", string(procErr.Kind)), slog.String("message", procErr.Message))
	}
	httpx.JSON(w, procErr.HTTPStatus(), envelope{Success: false, Error: procErr.Message, Message: string(procErr.Kind)})
}

func (h *Handler) notify(r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddToast(shared.Toast{Kind: kind, Message: message})
	}
}

func writeCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "authorization, content-type, x-csrf-token")
}
