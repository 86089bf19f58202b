package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/vb/internal/api/handlers"
	"github.com/your-org/vb/internal/api/ws"
	"github.com/your-org/vb/internal/auth"
	"github.com/your-org/vb/internal/queue"
	"github.com/your-org/vb/internal/storage"
)

type RouterConfig struct {
	APIKey   string
	DB       *storage.PostgresStore
	MinIO    *storage.MinIOStore
	Producer *queue.Producer
	Hub      *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket progress feed
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Jobs
	jobH := handlers.NewJobHandler(cfg.DB, cfg.MinIO, cfg.Producer)
	v1.POST("/jobs", jobH.Create)
	v1.POST("/jobs/upload", jobH.Upload)
	v1.GET("/jobs", jobH.List)
	v1.GET("/jobs/:id", jobH.Get)
	v1.POST("/jobs/:id/start", jobH.Start)
	v1.POST("/jobs/:id/stop", jobH.Stop)
	v1.DELETE("/jobs/:id", jobH.Delete)
	v1.GET("/jobs/:id/download", jobH.Download)

	// Events
	eventH := handlers.NewEventHandler(cfg.DB, cfg.MinIO)
	v1.GET("/jobs/:id/events", eventH.List)
	v1.GET("/events/:id/frame", eventH.Frame)

	return r
}
