package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codoleet/internal/admission"
	"codoleet/internal/common/cache"
	"codoleet/internal/common/db"
	commonmw "codoleet/internal/common/http/middleware"
	"codoleet/internal/common/mq"
	"codoleet/internal/common/storage"
	"codoleet/internal/delivery"
	"codoleet/internal/evaluator"
	"codoleet/internal/problem"
	"codoleet/internal/submission/controller"
	"codoleet/internal/submission/repository"
	"codoleet/internal/submission/service"
	"codoleet/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/submission_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
	if err != nil {
		logger.Error(context.Background(), "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mysqlDB.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(context.Background(), "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	mqClient, err := mq.NewKafkaQueue(appCfg.Kafka.toMQConfig())
	if err != nil {
		logger.Error(context.Background(), "init kafka failed", zap.Error(err))
		return
	}
	defer func() {
		_ = mqClient.Close()
	}()

	objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
	if err != nil {
		logger.Error(context.Background(), "init minio failed", zap.Error(err))
		return
	}

	hub := delivery.NewHub()
	relay := delivery.NewRelay(hub, redisCache)

	dbProvider := db.NewManager(mysqlDB)
	submissionRepo := repository.NewSubmissionRepository(dbProvider)
	catalog := problem.NewClient(appCfg.Catalog.BaseURL, appCfg.Catalog.Timeout)
	evaluatorClient := evaluator.NewClient(appCfg.Evaluator.BaseURL, appCfg.Evaluator.Timeout)

	submissionSvc, err := service.NewSubmissionService(service.Config{
		Repo:         submissionRepo,
		Cache:        redisCache,
		MQ:           mqClient,
		Storage:      objStorage,
		Catalog:      catalog,
		Evaluator:    evaluatorClient,
		Delivery:     relay,
		TaskTopic:    appCfg.Consumer.Topic,
		SourceBucket: appCfg.Submission.SourceBucket,
		MaxCodeBytes: appCfg.Submission.MaxCodeBytes,
		DispatchTTL:  appCfg.Submission.DispatchTTL,
	})
	if err != nil {
		logger.Error(context.Background(), "init submission service failed", zap.Error(err))
		return
	}

	consumer, err := service.NewConsumer(mqClient, submissionSvc, appCfg.Consumer)
	if err != nil {
		logger.Error(context.Background(), "init evaluation consumer failed", zap.Error(err))
		return
	}
	if err := consumer.Start(context.Background()); err != nil {
		logger.Error(context.Background(), "subscribe evaluation tasks failed", zap.Error(err))
		return
	}
	if err := mqClient.Start(); err != nil {
		logger.Error(context.Background(), "start kafka consumer failed", zap.Error(err))
		return
	}

	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	go func() {
		if err := relay.Run(relayCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(context.Background(), "delivery relay stopped", zap.Error(err))
		}
	}()

	httpServer := buildHTTPServer(appCfg, submissionSvc, hub, redisCache)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "submission http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
	_ = mqClient.Stop()
}

func buildHTTPServer(cfg *AppConfig, svc *service.SubmissionService, hub *delivery.Hub, redisCache cache.Cache) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	router.GET("/health", func(c *gin.Context) {
		if err := redisCache.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "submission"})
	})

	verifier := commonmw.NewTokenVerifier(cfg.Auth.Secret, cfg.Auth.Issuer)
	limiter := admission.NewSlidingWindow(cfg.RateLimit)

	api := router.Group("/api/v1")
	api.Use(commonmw.RateLimitMiddleware(limiter))
	api.Use(commonmw.AuthMiddleware(verifier))

	controller.NewSubmissionController(svc).RegisterRoutes(api)
	delivery.NewController(hub).RegisterRoutes(api)

	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
