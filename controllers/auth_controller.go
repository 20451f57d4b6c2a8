package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/secureboard/middleware"
	"github.com/cppla/secureboard/security"
	"github.com/cppla/secureboard/services"
	"github.com/cppla/secureboard/utils"
)

// CookieOptions controls the session cookie written on login.
type CookieOptions struct {
	Name   string
	Secure bool
}

// AuthController handles signup, login, logout and the account pages.
type AuthController struct {
	users    *services.UserService
	sessions *security.SessionManager
	policy   *security.Policy
	cookie   CookieOptions
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(users *services.UserService, sessions *security.SessionManager, policy *security.Policy, cookie CookieOptions) *AuthController {
	return &AuthController{users: users, sessions: sessions, policy: policy, cookie: cookie}
}

// LoginPage describes the login form.
func (a *AuthController) LoginPage(ctx *gin.Context) {
	_, failed := ctx.GetQuery("error")
	utils.Success(ctx, gin.H{
		"action": a.policy.LoginPath,
		"method": http.MethodPost,
		"fields": []string{"username", "password"},
		"error":  failed,
	})
}

// Login checks the submitted credentials and starts a session.
func (a *AuthController) Login(ctx *gin.Context) {
	email := strings.TrimSpace(ctx.PostForm("username"))
	if email == "" {
		email = strings.TrimSpace(ctx.PostForm("email"))
	}
	password := ctx.PostForm("password")

	principal, err := a.users.Authenticate(ctx.Request.Context(), email, password)
	if err != nil {
		if !errors.Is(err, services.ErrBadCredentials) {
			utils.Logger.Error("login failed", zap.String("email", email), zap.Error(err))
		}
		ctx.Redirect(http.StatusFound, a.policy.LoginPath+"?error")
		return
	}

	session, err := a.sessions.Start(principal)
	if err != nil {
		utils.Logger.Error("failed to start session", zap.String("email", email), zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to start session")
		return
	}
	a.setCookie(ctx, session.Token, int(a.sessions.TTL().Seconds()))
	utils.Logger.Info("user logged in", zap.String("email", principal.Username), zap.String("session", session.ID))
	ctx.Redirect(http.StatusFound, a.policy.LoginSuccessPath)
}

// Logout revokes the current session and clears the cookie.
func (a *AuthController) Logout(ctx *gin.Context) {
	if session, ok := middleware.CurrentSession(ctx); ok {
		if err := a.sessions.Invalidate(ctx.Request.Context(), session); err != nil {
			utils.Logger.Error("failed to revoke session", zap.String("session", session.ID), zap.Error(err))
			utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to end session")
			return
		}
	}
	a.setCookie(ctx, "", -1)
	ctx.Redirect(http.StatusFound, a.policy.LogoutSuccessURL)
}

// SignupPage describes the signup form.
func (a *AuthController) SignupPage(ctx *gin.Context) {
	utils.Success(ctx, gin.H{
		"action": "/user",
		"method": http.MethodPost,
		"fields": []string{"email", "password", "name", "auth"},
	})
}

// Signup registers a new user and sends the browser to the login page.
func (a *AuthController) Signup(ctx *gin.Context) {
	req := services.SignupRequest{
		Email:    ctx.PostForm("email"),
		Password: ctx.PostForm("password"),
		Name:     ctx.PostForm("name"),
		Auth:     ctx.PostForm("auth"),
	}

	if _, err := a.users.Signup(ctx.Request.Context(), req); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			utils.Error(ctx, http.StatusBadRequest, 40001, "email and a password of at most 72 bytes are required")
		case errors.Is(err, services.ErrDuplicateEmail):
			utils.Error(ctx, http.StatusConflict, 40901, "email already registered")
		default:
			utils.Logger.Error("signup failed", zap.Error(err))
			utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to create user")
		}
		return
	}
	utils.SeeOther(ctx, a.policy.LoginPath)
}

// Home returns the logged-in principal.
func (a *AuthController) Home(ctx *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	utils.Success(ctx, gin.H{
		"id":    principal.UserID,
		"email": principal.Username,
		"name":  principal.Name,
		"roles": principal.Roles(),
	})
}

// Admin lists registered users.
func (a *AuthController) Admin(ctx *gin.Context) {
	users, err := a.users.ListUsers(ctx.Request.Context())
	if err != nil {
		utils.Logger.Error("failed to list users", zap.Error(err))
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to list users")
		return
	}
	utils.Success(ctx, gin.H{"users": users})
}

func (a *AuthController) setCookie(ctx *gin.Context, value string, maxAge int) {
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(a.cookie.Name, value, maxAge, "/", "", a.cookie.Secure, true)
}
