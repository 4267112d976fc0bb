package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"dbautorest/bootstrap"
	"dbautorest/config"
	"dbautorest/controllers"
	_ "dbautorest/docs"
	"dbautorest/pkg/logger"
	"dbautorest/utils"
)

// @title           dbautorest
// @version         1.0
// @description     Policy-aware REST API over registered PostgreSQL, MySQL, SQL Server and MongoDB databases

func main() {
	// 1) Load config
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("LoadConfig error: %v", err)
	}

	// 2) Init structured logger with config
	logger.Init(logger.Options{
		FilePath:   config.Cfg.LogFile,
		Level:      logger.ParseLogLevel(config.Cfg.LogLevel),
		MaxSize:    config.Cfg.LogMaxSize,
		MaxBackups: config.Cfg.LogMaxBackups,
		MaxAge:     config.Cfg.LogMaxAge,
		Compress:   config.Cfg.LogCompress,
	})
	logger.Infof("Starting dbautorest with log level: %s", config.Cfg.LogLevel)

	// 3) Connect catalog DB (GORM)
	if err := config.ConnectDB(); err != nil {
		log.Fatalf("ConnectDB error: %v", err)
	}
	if config.DB == nil {
		log.Fatal("Database is nil after ConnectDB")
	}
	if err := bootstrap.Migrate(config.DB); err != nil {
		log.Fatalf("Migrate error: %v", err)
	}

	app := bootstrap.New(config.Cfg, config.DB, nil)
	controllers.SetRestEngine(app.Engine)
	controllers.SetRealtimeService(app.Realtime)
	controllers.SetCatalogService(app.Catalog)
	controllers.SetConnectionResolver(app.Resolver)

	// 4) Setup Gin
	router := gin.Default()
	router.Use(utils.LoggerMiddleware())

	v1 := router.Group("/api")
	{
		rest := v1.Group("")
		rest.Use(utils.RateLimiter(utils.RateLimitConfig{
			RequestsPerMinute: config.Cfg.RateLimitRPM,
			Burst:             config.Cfg.RateLimitBurst,
		}))
		controllers.RegisterRestRoutes(rest)
		controllers.RegisterCatalogRoutes(v1)
	}

	// 5) Swagger, metrics and health routes
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "pools": app.Pools.Len()})
	})

	// 6) Run
	srv := &http.Server{
		Addr:              "0.0.0.0:" + config.Cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Starting server at port %s", config.Cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server error: %v", err)
		}
	}()

	// 7) Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Infof("Received shutdown signal, draining connections...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Realtime streams end first so open SSE handlers return before the server waits on them.
	if err := app.Realtime.Shutdown(ctx); err != nil {
		logger.Warnf("Realtime shutdown: %v", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warnf("HTTP shutdown: %v", err)
	}
	if err := app.Shutdown(ctx); err != nil {
		logger.Warnf("Shutdown completed with errors: %v", err)
	}
	logger.Infof("Application shutdown complete")
}
