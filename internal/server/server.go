package server

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jklovins/mediagen/internal/config"
	"github.com/jklovins/mediagen/internal/service"
	"github.com/jklovins/mediagen/internal/service/blob"
	"github.com/jklovins/mediagen/internal/service/provider"
	"github.com/jklovins/mediagen/internal/store"
)

type Server struct {
	Config *config.Config
	DB     *gorm.DB
	Store  *store.Store
	Router *gin.Engine
	Logger *zap.Logger
	Server *http.Server

	// Services
	Batch     *service.BatchService
	Submitter *service.SubmitterService
	Reclaimer *service.ReclaimerService
	Webhooks  *service.WebhookService
	Scheduler *service.Scheduler
}

func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	// Set gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	st := store.New(db)

	uploader, err := blob.NewUploader(&cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob uploader: %w", err)
	}

	// Initialize services
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	composer := service.NewPromptComposer(rng)
	providerClient := provider.NewClient(&cfg.Provider, logger)
	jobTimeout := time.Duration(cfg.Generation.JobTimeoutMinutes) * time.Minute

	batch := service.NewBatchService(st, composer, rng, logger)
	submitter := service.NewSubmitterService(st, providerClient, logger)
	reclaimer := service.NewReclaimerService(st, jobTimeout, logger)
	webhooks := service.NewWebhookService(st, uploader, logger)
	scheduler := service.NewScheduler(&cfg.Generation, logger, batch, submitter, reclaimer)

	// Create router
	router := gin.New()

	srv := &Server{
		Config:    cfg,
		DB:        db,
		Store:     st,
		Router:    router,
		Logger:    logger,
		Batch:     batch,
		Submitter: submitter,
		Reclaimer: reclaimer,
		Webhooks:  webhooks,
		Scheduler: scheduler,
	}

	// Setup middleware and routes
	srv.setupMiddleware()
	srv.setupRoutes()

	return srv, nil
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.Router.Use(gin.Recovery())

	// Logger middleware
	s.Router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	// CORS middleware
	s.Router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
}

func (s *Server) setupRoutes() {
	// Health check
	s.Router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})

	// Provider callback; authenticated by its own HMAC signature.
	s.Router.POST("/webhooks/provider", s.handleProviderWebhook)

	// API routes, gated by the shared API key
	api := s.Router.Group("/api/v1")
	api.Use(s.apiKeyMiddleware())
	{
		api.GET("/groups", s.handleListGroups)
		api.GET("/items/:id", s.handleGetItem)
		api.GET("/webhook-logs", s.handleListWebhookLogs)
		api.GET("/settings", s.handleGetSettings)
		api.PUT("/settings", s.handleUpdateSettings)
		api.GET("/stats", s.handleStats)

		generation := api.Group("/generation")
		{
			generation.POST("/run", s.handleRunBatch)
			generation.POST("/submit", s.handleRunSubmit)
		}
	}
}

// apiKeyMiddleware enforces the shared secret on every API operation.
// An unconfigured key leaves the API open, mirroring the optional
// webhook secret.
func (s *Server) apiKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Config.Auth.APIKey == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-Key") != s.Config.Auth.APIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		c.Next()
	}
}

func (s *Server) Start(ctx context.Context) error {
	// Start scheduler
	if err := s.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)

	s.Server = &http.Server{
		Addr:    addr,
		Handler: s.Router,
	}

	s.Logger.Info("Starting HTTP server", zap.String("addr", addr))

	if s.Config.Server.CertFile != "" && s.Config.Server.KeyFile != "" {
		return s.Server.ListenAndServeTLS(s.Config.Server.CertFile, s.Config.Server.KeyFile)
	}

	return s.Server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Stop scheduler first
	s.Scheduler.Stop()

	if s.Server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return s.Server.Shutdown(shutdownCtx)
}
