package middleware

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/2beens/confhub/internal/access"
	"github.com/2beens/confhub/internal/telemetry/tracing"
	"github.com/2beens/confhub/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:generate mockgen -source=$GOFILE -destination=guard_mocks_test.go -package=middleware_test

type verdictChecker interface {
	Check(ctx context.Context, capability access.Capability) access.Verdict
}

const (
	RedirectReasonLoginRequired = "login_required"
	RedirectReasonForbidden     = "forbidden"

	loadingPlaceholder = `<!doctype html><html><head><meta http-equiv="refresh" content="1"><title>ConferenceHub</title></head><body><p>Loading...</p></body></html>`
)

// AccessGuard gates http handlers behind a capability.
type AccessGuard struct {
	guard        verdictChecker
	loginPath    string
	checkTimeout time.Duration
}

func NewAccessGuard(guard verdictChecker, loginPath string, checkTimeout time.Duration) *AccessGuard {
	return &AccessGuard{
		guard:        guard,
		loginPath:    loginPath,
		checkTimeout: checkTimeout,
	}
}

func (g *AccessGuard) check(r *http.Request, capability access.Capability, spanName string) (context.Context, access.Verdict) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), spanName)
	defer span.End()

	checkCtx, cancel := context.WithTimeout(ctx, g.checkTimeout)
	defer cancel()
	verdict := g.guard.Check(checkCtx, capability)

	span.SetAttributes(
		attribute.String("guard.capability", string(capability)),
		attribute.String("guard.decision", string(verdict.Decision)),
		attribute.String("guard.reason", string(verdict.Reason)),
	)
	if verdict.Allowed() {
		span.SetStatus(codes.Ok, "allowed")
	} else {
		span.SetStatus(codes.Error, string(verdict.Decision))
	}

	logger := log.WithFields(log.Fields{
		"path":       r.URL.Path,
		"capability": capability,
		"decision":   verdict.Decision,
		"reason":     verdict.Reason,
	})
	switch verdict.Decision {
	case access.DecisionAllowed:
		logger.Trace("access guard")
	case access.DecisionChecking:
		logger.Debug("access guard: session still resolving")
	default:
		logger.Info("access guard: denied")
	}

	if verdict.Allowed() && verdict.Identity != nil {
		ctx = access.WithIdentity(ctx, verdict.Identity)
	}
	return ctx, verdict
}

// Require serves next only when the capability is granted. Denials redirect to
// the login page, an undecided check serves a loading placeholder.
func (g *AccessGuard) Require(capability access.Capability) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, verdict := g.check(r, capability, "middleware.accessGuard")

			switch verdict.Decision {
			case access.DecisionAllowed:
				next.ServeHTTP(w, r.WithContext(ctx))
			case access.DecisionChecking:
				w.Header().Set("Retry-After", "1")
				w.Header().Set("Cache-Control", "no-store")
				pkg.WriteResponse(w, pkg.ContentType.HTML, loadingPlaceholder, http.StatusServiceUnavailable)
			default:
				next := ""
				if r.Method == http.MethodGet || r.Method == http.MethodHead {
					next = r.URL.RequestURI()
				}
				http.Redirect(w, r, LoginRedirectURL(g.loginPath, next, redirectReason(verdict)), http.StatusSeeOther)
			}
		})
	}
}

// RequireJSON is Require for api endpoints: 401/403/503 json replies instead of redirects.
func (g *AccessGuard) RequireJSON(capability access.Capability) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, verdict := g.check(r, capability, "middleware.accessGuardJSON")

			switch {
			case verdict.Allowed():
				next.ServeHTTP(w, r.WithContext(ctx))
			case verdict.Decision == access.DecisionChecking:
				w.Header().Set("Retry-After", "1")
				pkg.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"decision": string(verdict.Decision),
				})
			case verdict.LoginRequired():
				pkg.WriteJSON(w, http.StatusUnauthorized, map[string]string{
					"decision": string(verdict.Decision),
					"reason":   string(verdict.Reason),
				})
			default:
				pkg.WriteJSON(w, http.StatusForbidden, map[string]string{
					"decision": string(verdict.Decision),
					"reason":   string(verdict.Reason),
				})
			}
		})
	}
}

func redirectReason(verdict access.Verdict) string {
	if verdict.LoginRequired() {
		return RedirectReasonLoginRequired
	}
	return RedirectReasonForbidden
}

// LoginRedirectURL builds the login entry point url carrying the return path and reason.
func LoginRedirectURL(loginPath, next, reason string) string {
	query := url.Values{}
	if safe := SafeNextPath(next); safe != "" {
		query.Set("next", safe)
	}
	if reason != "" {
		query.Set("reason", reason)
	}
	if len(query) == 0 {
		return loginPath
	}
	return loginPath + "?" + query.Encode()
}

// SafeNextPath returns next if it is a local path, "" otherwise.
func SafeNextPath(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") {
		return ""
	}
	if strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	parsed, err := url.Parse(next)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return ""
	}
	return next
}
