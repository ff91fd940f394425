// Package router assembles the gin engine: global middleware, health
// endpoints and every versioned API route with its access rules.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/nucleo-eljunko/comodato-api/api/swagger"
	"github.com/nucleo-eljunko/comodato-api/internal/handler"
	"github.com/nucleo-eljunko/comodato-api/internal/middleware"
	"github.com/nucleo-eljunko/comodato-api/internal/models"
	"github.com/nucleo-eljunko/comodato-api/internal/service"
	"github.com/nucleo-eljunko/comodato-api/pkg/config"
	corsmiddleware "github.com/nucleo-eljunko/comodato-api/pkg/middleware/cors"
	reqidmiddleware "github.com/nucleo-eljunko/comodato-api/pkg/middleware/requestid"
	"github.com/nucleo-eljunko/comodato-api/pkg/logger"
)

// Deps carries everything the router needs. Redis may be nil when the
// cache is disabled; rate limiting then falls open.
type Deps struct {
	Config  *config.Config
	Logger  *zap.Logger
	Redis   *redis.Client
	Metrics *service.MetricsService

	Auth *service.AuthService

	AuthHandler           *handler.AuthHandler
	UserHandler           *handler.UserHandler
	RepresentativeHandler *handler.RepresentativeHandler
	StudentHandler        *handler.StudentHandler
	InstrumentHandler     *handler.InstrumentHandler
	LoanHandler           *handler.LoanHandler
	DashboardHandler      *handler.DashboardHandler
	ExportHandler         *handler.ExportHandler
}

// New builds the engine with all routes registered.
func New(deps Deps) *gin.Engine {
	if deps.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.Config.CORS.AllowedOrigins))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	if deps.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(deps.Config.APIPrefix)
	api.Use(middleware.RateLimit(deps.Config.RateLimit, deps.Redis))

	registerAuthRoutes(api, deps)
	registerAdminRoutes(api, deps)
	registerDomainRoutes(api, deps)

	return r
}

func registerAuthRoutes(api *gin.RouterGroup, deps Deps) {
	auth := api.Group("/auth")
	auth.POST("/login", deps.AuthHandler.Login)
	auth.POST("/register", deps.AuthHandler.Register)
	auth.POST("/refresh", deps.AuthHandler.Refresh)
	auth.POST("/forgot-password", deps.AuthHandler.ForgotPassword)
	auth.POST("/reset-password", deps.AuthHandler.ResetPassword)
	auth.GET("/verify-email", deps.AuthHandler.VerifyEmail)

	session := auth.Group("")
	session.Use(middleware.JWT(deps.Auth))
	session.POST("/logout", deps.AuthHandler.Logout)
	session.GET("/me", deps.AuthHandler.Me)
	session.POST("/change-password", deps.AuthHandler.ChangePassword)
	session.POST("/resend-verification", deps.AuthHandler.ResendVerification)
}

func registerAdminRoutes(api *gin.RouterGroup, deps Deps) {
	admin := api.Group("")
	admin.Use(middleware.JWT(deps.Auth), middleware.RequireRoles(models.RoleAdmin))

	admin.GET("/users", deps.UserHandler.List)
	admin.POST("/users", deps.UserHandler.Create)
	admin.GET("/users/:id", deps.UserHandler.Get)
	admin.PUT("/users/:id", deps.UserHandler.Update)
	admin.DELETE("/users/:id", deps.UserHandler.Delete)
	admin.GET("/audit-logs", deps.UserHandler.AuditLogs)

	admin.GET("/representatives", deps.RepresentativeHandler.List)

	admin.POST("/instruments", deps.InstrumentHandler.Create)
	admin.PUT("/instruments/:id", deps.InstrumentHandler.Update)
	admin.PATCH("/instruments/:id/state", deps.InstrumentHandler.ChangeState)
	admin.DELETE("/instruments/:id", deps.InstrumentHandler.Delete)
	admin.POST("/instruments/import", deps.InstrumentHandler.Import)
	admin.GET("/instruments/suggest-serial", deps.InstrumentHandler.SuggestSerial)
	admin.POST("/instruments/:id/accessories", deps.InstrumentHandler.AddAccessory)
	admin.PUT("/accessories/:accessoryId", deps.InstrumentHandler.UpdateAccessory)
	admin.DELETE("/accessories/:accessoryId", deps.InstrumentHandler.RemoveAccessory)
	admin.POST("/states", deps.InstrumentHandler.CreateState)
	admin.POST("/measures", deps.InstrumentHandler.CreateMeasure)

	admin.GET("/loans/overdue", deps.LoanHandler.Overdue)
	admin.GET("/loans/expiring", deps.LoanHandler.Expiring)

	admin.GET("/dashboard/stats", deps.DashboardHandler.Stats)
	admin.GET("/dashboard/alerts", deps.DashboardHandler.Alerts)
	admin.GET("/search", deps.DashboardHandler.Search)

	admin.GET("/exports/instruments", deps.ExportHandler.Instruments)
	admin.GET("/exports/representatives", deps.ExportHandler.Representatives)
}

// registerDomainRoutes covers resources representatives can reach for
// their own records. Record-level ownership is enforced in the services.
func registerDomainRoutes(api *gin.RouterGroup, deps Deps) {
	authed := api.Group("")
	authed.Use(middleware.JWT(deps.Auth), middleware.RequireRoles(models.RoleAdmin, models.RoleRepresentative))

	authed.GET("/representatives/:id", deps.RepresentativeHandler.Get)
	authed.PUT("/representatives/:id", deps.RepresentativeHandler.Update)
	authed.GET("/representatives/:id/stats", deps.RepresentativeHandler.Stats)

	authed.GET("/students", deps.StudentHandler.List)
	authed.POST("/students", deps.StudentHandler.Create)
	authed.GET("/students/:id", deps.StudentHandler.Get)
	authed.PUT("/students/:id", deps.StudentHandler.Update)
	authed.DELETE("/students/:id", deps.StudentHandler.Deactivate)

	authed.GET("/instruments", deps.InstrumentHandler.List)
	authed.GET("/instruments/available", deps.InstrumentHandler.Available)
	authed.GET("/instruments/validate-serial", deps.InstrumentHandler.ValidateSerial)
	authed.GET("/instruments/:id", deps.InstrumentHandler.Get)
	authed.GET("/instruments/:id/history", deps.InstrumentHandler.History)
	authed.GET("/instruments/:id/accessories", deps.InstrumentHandler.Accessories)
	authed.GET("/instruments/:id/loans", deps.LoanHandler.ByInstrument)
	authed.GET("/states", deps.InstrumentHandler.States)
	authed.GET("/measures", deps.InstrumentHandler.Measures)

	authed.GET("/loans", deps.LoanHandler.List)
	authed.POST("/loans", deps.LoanHandler.Create)
	authed.GET("/loans/:id", deps.LoanHandler.Get)
	authed.PUT("/loans/:id", deps.LoanHandler.Update)
	authed.POST("/loans/:id/finalize", deps.LoanHandler.Finalize)
	authed.POST("/loans/:id/cancel", deps.LoanHandler.Cancel)
	authed.POST("/loans/:id/renew", deps.LoanHandler.Renew)

	authed.GET("/exports/loans", deps.ExportHandler.Loans)
	authed.GET("/exports/students", deps.ExportHandler.Students)
}
