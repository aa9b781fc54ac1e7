package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/vogaflex/crm-insights/internal/config"
	"github.com/vogaflex/crm-insights/internal/http/handlers"
	"github.com/vogaflex/crm-insights/internal/http/middleware"
	"github.com/vogaflex/crm-insights/internal/metrics"
	"github.com/vogaflex/crm-insights/internal/session"

	_ "github.com/vogaflex/crm-insights/docs"
)

func Router(cfg config.Config, sess *session.Session, source handlers.Pinger, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.APIKeyHeader, middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" || cfg.CORSAllowed == "" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Session:   sess,
		Source:    source,
		Validator: validator.New(),
		Logger:    logger,
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	api.Use(middleware.APIKey(cfg.APIKey))
	{
		api.GET("/state", h.State)
		api.PATCH("/state", h.UpdateState)
		api.POST("/refresh", h.Refresh)
		api.GET("/conversations", h.Conversations)
		api.GET("/conversations/:id/messages", h.Messages)
		api.GET("/dashboard", h.Dashboard)
		api.GET("/dashboard/vendors/:vendor/breakdown", h.VendorBreakdown)
		api.GET("/export.csv", h.Export)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
