// Package router assembles the gin engine.
package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/handler"
	"github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/requestid"
)

// Options carries everything the routes depend on.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Tokens         middleware.TokenParser

	Timetable *handler.TimetableHandler
	Semesters *handler.SemesterHandler
	Alerts    *handler.AlertHandler
	Ops       *handler.MetricsHandler
}

var (
	schedulers = []models.UserRole{models.RoleAdmin, models.RolePrincipal, models.RoleHOD}
	anyRole    = []models.UserRole{models.RoleAdmin, models.RolePrincipal, models.RoleHOD, models.RoleTeacher}
)

// New wires middleware and routes.
func New(opts Options) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(opts.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(opts.Metrics))

	r.GET("/health", opts.Ops.Health)
	r.GET("/ready", opts.Ops.Ready)
	r.GET("/metrics", opts.Ops.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix, middleware.JWT(opts.Tokens))
	readers := middleware.RequireRoles(anyRole...)
	writers := middleware.RequireRoles(schedulers...)
	admins := middleware.RequireRoles(models.RoleAdmin)

	timetables := api.Group("/timetables")
	timetables.GET("", readers, opts.Timetable.List)
	timetables.GET("/upcoming", readers, opts.Timetable.Upcoming)
	timetables.GET("/export", readers, opts.Timetable.Export)
	timetables.POST("", writers, opts.Timetable.Propose)
	timetables.PUT("", writers, opts.Timetable.BatchUpdate)
	timetables.DELETE("/:id", writers, opts.Timetable.Deactivate)

	semesters := api.Group("/semesters")
	semesters.GET("", readers, opts.Semesters.List)
	semesters.GET("/active", readers, opts.Semesters.Active)
	semesters.GET("/:id", readers, opts.Semesters.Get)
	semesters.POST("", admins, opts.Semesters.Create)
	semesters.POST("/:id/activate", admins, opts.Semesters.Activate)

	api.POST("/alerts/run", writers, opts.Alerts.Run)
	api.GET("/metrics/summary", admins, opts.Ops.Summary)

	return r
}
