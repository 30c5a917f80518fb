package auth

import (
	"context"
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

// SubjectResolver resolves the profile attached to an identity. Implemented
// by the profiles service.
type SubjectResolver interface {
	ResolveSubject(ctx context.Context, userID string) (*rbac.Subject, error)
	TouchLastLogin(ctx context.Context, userID string) error
}

// Handler wires the JSON authentication endpoints consumed by the dashboard.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	subjects SubjectResolver
	sessions *shared.SessionManager
	csrf     *shared.CSRFManager
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, subjects SubjectResolver, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		service:  service,
		subjects: subjects,
		sessions: sessions,
		csrf:     csrf,
		validate: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)
	r.Get("/session", h.handleSession)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type principalPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// sessionPayload mirrors the auth collaborator surface the dashboard reads:
// principal, profile, and queued toasts, plus the CSRF token for mutations.
type sessionPayload struct {
	Principal *principalPayload `json:"principal"`
	Profile   *rbac.Subject     `json:"profile"`
	CSRFToken string            `json:"csrf_token,omitempty"`
	Toasts    []shared.Toast    `json:"toasts,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email and password are required")
		return
	}

	ident, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.UserSafeMessage(shared.ErrInvalidCredentials))
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetUser(ident.ID)
	sess.AddToast(shared.Toast{Kind: "success", Message: "Selamat datang kembali"})

	if err := h.service.RegisterSession(r.Context(), sess.ID, ident.ID, time.Now().Add(h.sessions.TTL()), r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	if err := h.subjects.TouchLastLogin(r.Context(), ident.ID); err != nil {
		h.logger.Warn("touch last login", slog.Any("error", err))
	}

	// Login succeeds even without a profile; the guard keeps profile-less
	// principals out of protected routes and the client shows the
	// profile-missing state instead of a login redirect.
	profile := h.resolveProfile(r.Context(), ident.ID)

	token, _ := h.csrf.IssueToken(sess)
	httpx.JSON(w, http.StatusOK, sessionPayload{
		Principal: &principalPayload{ID: ident.ID, Email: ident.Email},
		Profile:   profile,
		CSRFToken: token,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil && sess.User() != "" {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessions.Destroy(sess)
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleSession is the refetch surface: the dashboard polls it to rebuild
// its auth state after mutations.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	payload := sessionPayload{}
	if sess != nil && sess.User() != "" {
		payload.Principal = &principalPayload{ID: sess.User()}
		payload.Profile = h.resolveProfile(r.Context(), sess.User())
		payload.Toasts = sess.DrainToasts()
		token, _ := h.csrf.IssueToken(sess)
		payload.CSRFToken = token
	}
	httpx.JSON(w, http.StatusOK, payload)
}

func (h *Handler) resolveProfile(ctx context.Context, userID string) *rbac.Subject {
	subj, err := h.subjects.ResolveSubject(ctx, userID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("resolve profile", slog.String("user_id", userID), slog.Any("error", err))
		}
		return nil
	}
	return subj
}
