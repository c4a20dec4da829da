package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"loan-intake-go/internal/pipeline"
	"loan-intake-go/internal/repository"
	"loan-intake-go/internal/scheduler"
)

// WatchRegistrar registers the mailbox for push notifications. Only the
// Gmail API fetcher supports this; in IMAP mode it is nil.
type WatchRegistrar interface {
	SetupWatch(ctx context.Context) error
}

// Handlers contains all HTTP handlers
type Handlers struct {
	db        *gorm.DB
	repo      *repository.Repository
	pipeline  *pipeline.Pipeline
	scheduler *scheduler.Scheduler
	watcher   WatchRegistrar
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *gorm.DB, repo *repository.Repository, p *pipeline.Pipeline, s *scheduler.Scheduler, w WatchRegistrar) *Handlers {
	return &Handlers{db: db, repo: repo, pipeline: p, scheduler: s, watcher: w}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	// Health check
	router.GET("/healthz", h.HealthCheck)

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api")
	{
		// Deals
		api.GET("/deals", h.GetDeals)
		api.GET("/deals/:id", h.GetDeal)
		api.PATCH("/deals/:id", h.UpdateDeal)
		api.DELETE("/deals", h.DeleteDeals)

		// Activity trail
		api.GET("/activity", h.GetActivity)
		api.POST("/activity", h.CreateActivity)

		// Ingestion triggers
		api.POST("/ingest", h.Ingest)
		api.POST("/webhooks/gmail", h.GmailWebhook)
		api.POST("/webhooks/gmail/watch", h.SetupWatch)

		// Scheduler control
		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}
