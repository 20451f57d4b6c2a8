package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/secureboard/config"
	"github.com/cppla/secureboard/controllers"
	"github.com/cppla/secureboard/middleware"
	"github.com/cppla/secureboard/security"
	"github.com/cppla/secureboard/services"
	"github.com/cppla/secureboard/utils"
)

// Dependencies are the collaborators the router wires into controllers.
type Dependencies struct {
	Config   config.AppConfig
	Users    *services.UserService
	Board    *services.BoardService
	Sessions *security.SessionManager
	Policy   *security.Policy
	// GinLogger receives request logs; nil falls back to utils.Logger.
	GinLogger *zap.Logger
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	policy := deps.Policy
	if policy == nil {
		policy = security.DefaultPolicy()
	}
	gl := deps.GinLogger
	if gl == nil {
		gl = utils.Logger
	}

	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		utils.Logger.Error("invalid TRUSTED_PROXIES, trusting none", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(middleware.Ginzap(gl, time.RFC3339, true))
	r.Use(middleware.RecoveryWithZap(gl, true))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		// A wildcard never carries the session cookie cross-origin
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Use(middleware.SecurityFilter(policy, deps.Sessions, deps.Users, cfg.SessionCookie))

	authController := controllers.NewAuthController(deps.Users, deps.Sessions, policy, controllers.CookieOptions{
		Name:   cfg.SessionCookie,
		Secure: cfg.CookieSecure,
	})
	boardController := controllers.NewBoardController(deps.Board)
	limit := cfg.RateLimitPerMinute

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	r.GET(policy.LoginPath, authController.LoginPage)
	r.POST(policy.LoginPath, middleware.RateLimit(limit), authController.Login)
	r.GET(policy.LogoutPath, authController.Logout)
	r.GET("/signup", authController.SignupPage)
	r.POST("/user", middleware.RateLimit(limit), authController.Signup)

	r.GET("/", authController.Home)
	r.GET("/admin", authController.Admin)

	r.GET("/board", boardController.List)
	r.POST("/boardwrite", boardController.Write)
	r.GET("/board/file", boardController.Download)
	r.DELETE("/board/file", boardController.DeleteFile)
	r.GET("/board/:id", boardController.Detail)
	r.PUT("/board/:id", boardController.Update)
	r.DELETE("/board/:id", boardController.Delete)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}
