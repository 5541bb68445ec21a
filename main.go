package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RizleneBERRAG/PIXELCRM-IA/config"
	"github.com/RizleneBERRAG/PIXELCRM-IA/handler"
	"github.com/RizleneBERRAG/PIXELCRM-IA/middleware"
	"github.com/RizleneBERRAG/PIXELCRM-IA/pkg/logger"
	"github.com/RizleneBERRAG/PIXELCRM-IA/service"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	// Load the delegate rule file and keep it fresh
	ruleStore, err := config.LoadRules(cfg.Rules.Path)
	if err != nil {
		slog.Error("failed to load rule file", "path", cfg.Rules.Path, "error", err)
		os.Exit(1)
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if err := ruleStore.Watch(watchCtx); err != nil {
		slog.Warn("rule file watching disabled", "error", err)
	}

	// Initialize services
	exportSvc, err := service.NewExportService(&cfg.Minio)
	if err != nil {
		slog.Error("failed to initialize export service", "error", err)
		os.Exit(1)
	}

	if err := exportSvc.EnsureBucket(context.Background()); err != nil {
		slog.Error("failed to ensure bucket", "error", err)
		os.Exit(1)
	}

	extractSvc := service.NewExtractService(&cfg.Extract)

	// The AI checker for non-HOMELIOR delegates is wired here when
	// available; without it those delegates get a manual-review problem.
	auditSvc := service.NewAuditService(ruleStore, nil)

	var crmSvc *service.CRMService
	if cfg.CRM.Username != "" {
		crmSvc, err = service.NewCRMService(&cfg.CRM)
		if err != nil {
			slog.Error("failed to initialize CRM service", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("CRM prefill disabled, no credentials configured")
	}

	// Initialize audit store with config
	service.InitAuditStore(&cfg.Store)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	auditHandler := handler.NewAuditHandler(exportSvc, extractSvc, auditSvc, crmSvc)
	callbackHandler := handler.NewCallbackHandler(extractSvc)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(corsMiddleware())
	router.Use(middleware.RateLimit(100, time.Minute))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
		api.POST("/extract/callback", callbackHandler.HandleCallback)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.GET("/prefill", auditHandler.Prefill)
		protected.POST("/audits", auditHandler.Create)
		protected.GET("/audits", auditHandler.List)
		protected.GET("/audits/:id", auditHandler.Get)
		protected.GET("/audits/:id/status", auditHandler.GetStatus)
		protected.DELETE("/audits/:id", auditHandler.Delete)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
