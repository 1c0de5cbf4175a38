// Package router wires HTTP routes onto the gin engine.
package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/handler"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/middleware"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/service"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/config"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/logger"
	corsmiddleware "github.com/Abdulhakimkamal/otpas-hu-api/pkg/middleware/cors"
	reqidmiddleware "github.com/Abdulhakimkamal/otpas-hu-api/pkg/middleware/requestid"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	Logger  *zap.Logger
	Metrics *service.MetricsService
	Tokens  middleware.TokenValidator
	Auth    *handler.AuthHandler
	Users   *handler.UserHandler
	Depts   *handler.DepartmentHandler
	Courses *handler.CourseHandler
	Evals   *handler.EvaluationHandler
	News    *handler.AnnouncementHandler
	Reports *handler.ReportHandler
	System  *handler.MetricsHandler
}

var (
	admin      = models.RoleAdmin
	head       = models.RoleDepartmentHead
	instructor = models.RoleInstructor
	student    = models.RoleStudent
)

// New builds the engine with the common middleware chain and all routes.
func New(cfg *config.Config, deps Dependencies) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(cfg.CORS))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics, "/metrics", "/health"))
	}
	r.Use(middleware.WithResponseMeta())

	Register(r, cfg, deps)
	return r
}

// Register attaches routes under the configured API prefix.
func Register(r *gin.Engine, cfg *config.Config, deps Dependencies) {
	if deps.System != nil {
		r.GET("/health", deps.System.Health)
		r.GET("/ready", deps.System.Ready)
		r.GET("/metrics", deps.System.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	if deps.Auth != nil {
		auth := api.Group("/auth")
		auth.POST("/login", deps.Auth.Login)
		auth.POST("/refresh", deps.Auth.Refresh)
	}

	// signed token replaces the bearer token
	if deps.Reports != nil {
		api.GET("/export/:token", deps.Reports.Download)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.Tokens))

	if deps.Auth != nil {
		secured.POST("/auth/logout", deps.Auth.Logout)
		secured.POST("/auth/change-password", deps.Auth.ChangePassword)
		secured.GET("/auth/me", deps.Auth.Me)
	}

	if deps.Users != nil {
		users := secured.Group("/users")
		users.GET("", middleware.RequireRoles(admin), deps.Users.List)
		users.POST("", middleware.RequireRoles(admin), deps.Users.Create)
		users.GET("/:id", middleware.RBAC(string(admin), middleware.Self), deps.Users.Get)
		users.PUT("/:id", middleware.RequireRoles(admin), deps.Users.Update)
		users.DELETE("/:id", middleware.RequireRoles(admin), deps.Users.Delete)
	}

	if deps.Depts != nil {
		depts := secured.Group("/departments")
		depts.GET("", deps.Depts.List)
		depts.GET("/:id", deps.Depts.Get)
		depts.POST("", middleware.RequireRoles(admin), deps.Depts.Create)
		depts.PUT("/:id", middleware.RequireRoles(admin), deps.Depts.Update)
		depts.DELETE("/:id", middleware.RequireRoles(admin), deps.Depts.Delete)
	}

	if deps.Courses != nil {
		courses := secured.Group("/courses")
		courses.GET("", deps.Courses.List)
		courses.GET("/:id", deps.Courses.Get)
		courses.POST("", middleware.RequireRoles(admin, head), deps.Courses.Create)
		courses.PUT("/:id", middleware.RequireRoles(admin, head), deps.Courses.Update)
		courses.DELETE("/:id", middleware.RequireRoles(admin, head), deps.Courses.Delete)
	}

	if deps.Evals != nil {
		evals := secured.Group("/instructor/evaluations")
		evals.GET("", middleware.RequireRoles(instructor, admin), deps.Evals.List)
		evals.POST("", middleware.RequireRoles(instructor, admin), deps.Evals.Submit)
		evals.GET("/grouped", middleware.RequireRoles(instructor, admin, head), deps.Evals.Grouped)
		evals.DELETE("/:id", middleware.RequireRoles(instructor, admin), deps.Evals.Delete)

		secured.GET("/student/evaluations", middleware.RequireRoles(student), deps.Evals.Mine)
		secured.GET("/grading/bands", deps.Evals.Bands)
	}

	if deps.News != nil {
		news := secured.Group("/announcements")
		news.GET("", deps.News.List)
		news.POST("", middleware.RequireRoles(admin, head, instructor), deps.News.Create)
		news.DELETE("/:id", middleware.RequireRoles(admin, head, instructor), deps.News.Delete)
	}

	if deps.Reports != nil {
		reports := secured.Group("/reports", middleware.RequireRoles(instructor, admin, head))
		reports.POST("/evaluations", deps.Reports.Generate)
		reports.GET("/:id", deps.Reports.Status)
	}

	if deps.System != nil {
		secured.GET("/admin/metrics", middleware.RequireRoles(admin), deps.System.Summary)
	}
}
