package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/alkesia/alkesia/internal/platform/httpx"
	"github.com/alkesia/alkesia/internal/shared"
)

// SubjectSource resolves the profile backing an identity id. Implementations
// return shared.ErrNotFound when the principal has no profile.
type SubjectSource interface {
	ResolveSubject(ctx context.Context, userID string) (*Subject, error)
}

// DenialRecorder counts guard denials, implemented by observability.Metrics.
type DenialRecorder interface {
	RecordGuardDenial(decision string)
}

// Guard wires the route guard state machine into the HTTP middleware chain.
//
// This gating is defense in depth for the dashboard's UX, not the sole
// enforcement: the privileged procedures re-check authorization themselves.
type Guard struct {
	logger  *slog.Logger
	cache   *subjectCache
	denials DenialRecorder
}

// NewGuard constructs a Guard. The Redis client is optional; without it
// subject lookups go straight to the source on every request.
func NewGuard(logger *slog.Logger, source SubjectSource, client *redis.Client) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{logger: logger, cache: newSubjectCache(client, source)}
}

// WithDenialRecorder attaches a denial counter; nil-safe and optional.
func (g *Guard) WithDenialRecorder(rec DenialRecorder) *Guard {
	g.denials = rec
	return g
}

// RequireAuth admits any authenticated principal with an active profile.
func (g *Guard) RequireAuth() func(http.Handler) http.Handler {
	return g.middleware("", "")
}

// RequireRole admits only subjects whose role equals the given role exactly.
func (g *Guard) RequireRole(role Role) func(http.Handler) http.Handler {
	return g.middleware(role, "")
}

// RequirePermission admits subjects whose role holds the permission.
func (g *Guard) RequirePermission(perm Permission) func(http.Handler) http.Handler {
	return g.middleware("", perm)
}

// InvalidateSubject drops the cached subject after privileged mutations so
// role changes take effect without waiting out the cache TTL.
func (g *Guard) InvalidateSubject(ctx context.Context, userID string) {
	g.cache.invalidate(ctx, userID)
}

func (g *Guard) middleware(role Role, perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := State{RequiredRole: role, RequiredPermission: perm}

			sess := shared.SessionFromContext(r.Context())
			if sess != nil {
				state.Principal = sess.User()
			}

			if state.Principal != "" {
				subj, err := g.cache.resolve(r.Context(), state.Principal)
				switch {
				case err == nil:
					state.Subject = subj
				case errors.Is(err, shared.ErrNotFound):
					// Authenticated identity without a profile row.
				default:
					g.logger.Error("guard resolve subject", slog.String("user_id", state.Principal), slog.Any("error", err))
					httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
					return
				}
			}

			decision := Evaluate(state)
			if decision == DecisionAuthorized {
				next.ServeHTTP(w, r.WithContext(ContextWithSubject(r.Context(), state.Subject)))
				return
			}
			g.deny(w, r, decision)
		})
	}
}

func (g *Guard) deny(w http.ResponseWriter, r *http.Request, decision Decision) {
	g.logger.Warn("guard denied request",
		slog.String("path", r.URL.Path),
		slog.String("decision", decision.String()),
	)
	if g.denials != nil {
		g.denials.RecordGuardDenial(decision.String())
	}
	switch decision {
	case DecisionUnauthenticated:
		httpx.JSON(w, http.StatusUnauthorized, httpx.ProblemDetail{
			Type:   "/login",
			Title:  "Unauthenticated",
			Status: http.StatusUnauthorized,
			Detail: "login required",
		})
	case DecisionProfileMissing:
		httpx.Problem(w, http.StatusForbidden, "Profile Missing", "no active profile for this account")
	case DecisionForbiddenRole:
		httpx.Problem(w, http.StatusForbidden, "Forbidden Role", "role does not grant access to this resource")
	case DecisionForbiddenPermission:
		httpx.Problem(w, http.StatusForbidden, "Forbidden Permission", "permission required for this resource")
	default:
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
	}
}

type subjectContextKey struct{}

// ContextWithSubject stores the authorized subject in context.
func ContextWithSubject(ctx context.Context, subj *Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, subj)
}

// SubjectFromContext extracts the authorized subject, nil when absent.
func SubjectFromContext(ctx context.Context) *Subject {
	subj, _ := ctx.Value(subjectContextKey{}).(*Subject)
	return subj
}
