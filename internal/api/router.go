// Package api exposes the HTTP surface: content intake, review decisions,
// lifecycle queries and operational endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/gopost/internal/config"
	"github.com/jonesrussell/gopost/internal/domain"
	"github.com/jonesrussell/gopost/internal/intake"
	"github.com/jonesrussell/gopost/internal/logger"
	"github.com/jonesrussell/gopost/internal/metrics"
)

const (
	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
	healthCheckTimeout   = 2 * time.Second
	serviceVersion       = "1.0.0"

	defaultListLimit = 50
	maxListLimit     = 200
)

// IntakeService accepts new content submissions.
type IntakeService interface {
	Submit(ctx context.Context, draft intake.Draft) (*domain.Content, error)
}

// ReviewService applies approve/reject decisions.
type ReviewService interface {
	Approve(ctx context.Context, contentID string, scheduledAt *time.Time) (*domain.Content, error)
	Reject(ctx context.Context, contentID, reason string) (*domain.Content, error)
	PublishNow(ctx context.Context, contentID string) (*domain.Content, error)
}

// Recycler runs a one-off recycling sweep.
type Recycler interface {
	RunOnce(ctx context.Context) (int, error)
}

// ContentReader is the read side of the content repository.
type ContentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Content, error)
	ListByClient(ctx context.Context, clientID string, status domain.ContentStatus, limit int) ([]domain.Content, error)
	ListByStatus(ctx context.Context, status domain.ContentStatus, limit int) ([]domain.Content, error)
	GetStats(ctx context.Context) (*domain.ContentStats, error)
}

// ClientReader is the read side of the client repository.
type ClientReader interface {
	GetByID(ctx context.Context, id string) (*domain.Client, error)
	ListActive(ctx context.Context) ([]domain.Client, error)
}

// QueueReader reports job queue statistics.
type QueueReader interface {
	GetStats(ctx context.Context) (*domain.QueueStats, error)
}

// Pinger checks database connectivity. *sqlx.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Router holds the API dependencies.
type Router struct {
	intake   IntakeService
	reviews  ReviewService
	recycler Recycler

	contents ContentReader
	clients  ClientReader
	queue    QueueReader

	db      Pinger
	redis   *redis.Client
	metrics *metrics.Metrics
	cfg     *config.Config
	logger  logger.Logger
}

// NewRouter creates the API router.
func NewRouter(
	intakeSvc IntakeService,
	reviews ReviewService,
	recycler Recycler,
	contents ContentReader,
	clients ClientReader,
	queue QueueReader,
	db Pinger,
	redisClient *redis.Client,
	m *metrics.Metrics,
	cfg *config.Config,
	log logger.Logger,
) *Router {
	return &Router{
		intake:   intakeSvc,
		reviews:  reviews,
		recycler: recycler,
		contents: contents,
		clients:  clients,
		queue:    queue,
		db:       db,
		redis:    redisClient,
		metrics:  m,
		cfg:      cfg,
		logger:   log,
	}
}

// SetupRoutes builds the gin engine with middleware and all routes.
func (r *Router) SetupRoutes() *gin.Engine {
	if !r.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(r.cfg.Server.CORSOrigins))

	router.GET("/health", r.healthCheck)
	router.GET("/metrics", gin.WrapH(r.metrics.Handler()))

	v1 := router.Group("/api/v1")

	content := v1.Group("/content")
	content.POST("", r.submitContent)
	content.GET("", r.listContent)
	content.GET("/:id", r.getContent)
	content.POST("/:id/approve", r.approveContent)
	content.POST("/:id/reject", r.rejectContent)
	content.POST("/:id/publish-now", r.publishNowContent)

	clients := v1.Group("/clients")
	clients.GET("", r.listClients)
	clients.GET("/:id", r.getClient)

	v1.POST("/recycling/run", r.runRecycling)
	v1.GET("/stats", r.getStats)

	return router
}

// healthCheck reports service health including backing stores.
func (r *Router) healthCheck(c *gin.Context) {
	health := gin.H{
		"status":  healthStatusHealthy,
		"service": "gopost",
		"version": serviceVersion,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	dbConnected := true
	if err := r.db.PingContext(ctx); err != nil {
		dbConnected = false
		health["status"] = healthStatusDegraded
	}
	health["database"] = gin.H{"connected": dbConnected}

	redisConnected := true
	if r.redis == nil {
		redisConnected = false
	} else if err := r.redis.Ping(ctx).Err(); err != nil {
		redisConnected = false
	}
	if !redisConnected {
		health["status"] = healthStatusDegraded
	}
	health["redis"] = gin.H{"connected": redisConnected}

	c.JSON(http.StatusOK, health)
}
