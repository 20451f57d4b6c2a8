package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/secureboard/security"
	"github.com/cppla/secureboard/utils"
)

const (
	// ContextPrincipalKey stores the authenticated *security.Principal inside Gin context.
	ContextPrincipalKey = "principal"
	// ContextSessionKey stores the resolved *security.Session inside Gin context.
	ContextSessionKey = "session"
)

// PrincipalLoader rebuilds a principal from its username.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, email string) (*security.Principal, error)
}

// SecurityFilter resolves the session of every request and applies the route policy.
// Anonymous requests to protected paths are redirected to the login page,
// authenticated requests lacking a role get 403.
func SecurityFilter(policy *security.Policy, sessions *security.SessionManager, users PrincipalLoader, cookieName string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		p := ctx.Request.URL.Path
		if policy.Match(p).Access == security.PermitAll {
			ctx.Next()
			return
		}

		principal := authenticate(ctx, sessions, users, cookieName)
		switch policy.Decide(p, principal) {
		case security.RedirectToLogin:
			ctx.Redirect(http.StatusFound, policy.LoginPath)
			ctx.Abort()
		case security.Forbidden:
			utils.Sugar.Infow("access denied", "path", p, "user", principal.Username, "roles", principal.Roles())
			utils.Error(ctx, http.StatusForbidden, 40301, "access denied")
			ctx.Abort()
		default:
			ctx.Next()
		}
	}
}

// authenticate returns the live principal behind the request, or nil.
func authenticate(ctx *gin.Context, sessions *security.SessionManager, users PrincipalLoader, cookieName string) *security.Principal {
	token := SessionToken(ctx, cookieName)
	if token == "" {
		return nil
	}
	session, err := sessions.Resolve(ctx.Request.Context(), token)
	if err != nil {
		return nil
	}
	principal, err := users.LoadPrincipal(ctx.Request.Context(), session.Email)
	if err != nil {
		utils.Logger.Debug("session user not loadable", zap.String("email", session.Email), zap.Error(err))
		return nil
	}
	ctx.Set(ContextSessionKey, session)
	ctx.Set(ContextPrincipalKey, principal)
	return principal
}

// SessionToken reads the session token from the cookie, falling back to a Bearer header.
func SessionToken(ctx *gin.Context, cookieName string) string {
	if v, err := ctx.Cookie(cookieName); err == nil && v != "" {
		return v
	}
	parts := strings.SplitN(ctx.GetHeader("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// CurrentPrincipal returns the principal set by SecurityFilter.
func CurrentPrincipal(ctx *gin.Context) (*security.Principal, bool) {
	v, ok := ctx.Get(ContextPrincipalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*security.Principal)
	return p, ok && p != nil
}

// CurrentSession returns the session set by SecurityFilter.
func CurrentSession(ctx *gin.Context) (*security.Session, bool) {
	v, ok := ctx.Get(ContextSessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*security.Session)
	return s, ok && s != nil
}
