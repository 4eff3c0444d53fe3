package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/wso2/consent-ledger-api/internal/config"
	"github.com/wso2/consent-ledger-api/internal/dao"
	"github.com/wso2/consent-ledger-api/internal/database"
	"github.com/wso2/consent-ledger-api/internal/handlers"
	"github.com/wso2/consent-ledger-api/internal/ledger"
	"github.com/wso2/consent-ledger-api/internal/metrics"
	"github.com/wso2/consent-ledger-api/internal/query"
	"github.com/wso2/consent-ledger-api/internal/router"
)

// Version information (set by build script)
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	// Set Gin to release mode by default (can be overridden by GIN_MODE env var)
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	logger.WithFields(logrus.Fields{
		"version":    version,
		"build_date": buildDate,
	}).Info("Starting Consent Ledger API Server...")

	// CONFIG_PATH wins, otherwise deployment.yaml is discovered under
	// repository/conf or cmd/server/repository/conf
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	configureLogger(logger, cfg.Logging)
	logger.WithFields(logrus.Fields{
		"config_path": configPath,
		"log_level":   logger.GetLevel().String(),
		"db_type":     cfg.Database.Consent.Type,
	}).Info("Configuration loaded successfully")

	db, err := database.Initialize(&cfg.Database.Consent, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.HealthCheck(ctx); err != nil {
		cancel()
		logger.WithError(err).Fatal("Database health check failed")
	}
	if cfg.Database.Consent.AutoMigrate {
		if err := db.ApplySchema(ctx); err != nil {
			cancel()
			logger.WithError(err).Fatal("Failed to apply consent ledger schema")
		}
		logger.Info("Consent ledger schema is up to date")
	}
	cancel()
	db.LogStats()

	consentDAO := dao.NewConsentDAO(db)
	statusAuditDAO := dao.NewStatusAuditDAO(db)

	consentLedger := ledger.New(db, consentDAO, statusAuditDAO,
		ledger.WithMaxFieldLength(cfg.Ledger.MaxFieldLength))
	queryEngine := query.NewEngine(consentLedger, cfg.Ledger.AdminListMaxLimit)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.DB.DB, "consent"),
	)
	appMetrics := metrics.New(registry)

	ginRouter := router.SetupRouter(router.Options{
		ConsentHandler: handlers.NewConsentHandler(consentLedger, queryEngine, appMetrics, logger),
		AdminHandler:   handlers.NewAdminHandler(queryEngine, appMetrics, logger),
		Health:         db,
		Metrics:        appMetrics,
		Gatherer:       registry,
		Identity:       cfg.Identity,
		RequestTimeout: cfg.Server.RequestTimeout,
		Logger:         logger,
	})

	serverAddr := cfg.Server.GetServerAddress()
	server := &http.Server{
		Addr:           serverAddr,
		Handler:        ginRouter,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	go func() {
		logger.WithField("addr", serverAddr).Info("Starting HTTP server...")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited gracefully")
}

func configureLogger(logger *logrus.Logger, cfg config.LoggingConfig) {
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.WithField("level", cfg.Level).Warn("Unknown log level, keeping info")
	}
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
