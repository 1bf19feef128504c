package routes

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/dolos-sec/dolos/internal/api/handlers"
	"github.com/dolos-sec/dolos/internal/api/middleware"
	"github.com/dolos-sec/dolos/internal/blocklist"
	"github.com/dolos-sec/dolos/internal/config"
	"github.com/dolos-sec/dolos/internal/detect"
	"github.com/dolos-sec/dolos/internal/engine"
	"github.com/dolos-sec/dolos/internal/geo"
	"github.com/dolos-sec/dolos/internal/models"
	"github.com/dolos-sec/dolos/internal/notify"
	"github.com/dolos-sec/dolos/internal/services"
	"github.com/dolos-sec/dolos/internal/stats"
)

// Deps carries the core components the API exposes.
type Deps struct {
	Classifier *detect.Classifier
	Gate       *geo.Gate
	Engine     *engine.Engine
	Registry   *blocklist.Registry
	Stats      *stats.Aggregator
	Notifier   *notify.Notifier
	Metrics    *prometheus.Registry
}

// Register wires up API routes and performs automatic migrations.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config, deps Deps) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.BlockRecord{},
		&models.AuditEntry{},
		&models.NotificationProvider{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	router.GET("/api/v1/health", handlers.HealthHandler(deps.Registry))
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")

	authService := services.NewAuthService(db, cfg)
	authHandler := handlers.NewAuthHandler(authService)
	authMiddleware := middleware.AuthMiddleware(authService)

	auditService := services.NewAuditService(db)

	eventHandler := handlers.NewEventHandler(deps.Classifier, deps.Gate, deps.Engine, deps.Stats)
	blockHandler := handlers.NewBlockHandler(deps.Registry, auditService, deps.Notifier)
	ruleHandler := handlers.NewRuleHandler(deps.Engine, auditService)
	statsHandler := handlers.NewStatsHandler(deps.Stats)
	providerHandler := handlers.NewProviderHandler(db)
	auditHandler := handlers.NewAuditHandler(auditService)

	api.POST("/auth/login", authHandler.Login)

	// Ingestion is called by the trap front-end before any operator exists,
	// so it stays outside the auth group.
	api.POST("/events", eventHandler.Ingest)

	authed := api.Group("")
	authed.Use(authMiddleware)
	{
		authed.GET("/auth/me", authHandler.Me)
		authed.POST("/auth/change-password", authHandler.ChangePassword)

		authed.GET("/blocks", blockHandler.List)
		authed.POST("/blocks", blockHandler.Create)
		authed.DELETE("/blocks/:address", blockHandler.Delete)

		authed.GET("/rules", ruleHandler.List)
		authed.GET("/rules/:id", ruleHandler.Get)
		authed.POST("/rules", ruleHandler.Create)
		authed.PUT("/rules/:id", ruleHandler.Update)
		authed.DELETE("/rules/:id", ruleHandler.Delete)
		authed.PATCH("/rules/:id/enable", ruleHandler.Enable)
		authed.POST("/rules/reset", ruleHandler.Reset)

		authed.GET("/stats", statsHandler.Dashboard)
		authed.GET("/audit", auditHandler.List)

		admin := authed.Group("")
		admin.Use(middleware.RequireRole("admin"))
		{
			admin.GET("/notification-providers", providerHandler.List)
			admin.POST("/notification-providers", providerHandler.Create)
			admin.DELETE("/notification-providers/:id", providerHandler.Delete)
		}
	}

	return nil
}
