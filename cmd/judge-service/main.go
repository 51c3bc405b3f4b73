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

	"codepulse/internal/common/cache"
	"codepulse/internal/common/db"
	commonmw "codepulse/internal/common/http/middleware"
	"codepulse/internal/common/mq"
	"codepulse/internal/common/storage"
	"codepulse/internal/judge/controller"
	"codepulse/internal/judge/repository"
	"codepulse/internal/judge/sandbox"
	"codepulse/internal/judge/sandbox/engine"
	"codepulse/internal/judge/sandbox/language"
	"codepulse/internal/judge/sandbox/observer"
	"codepulse/internal/judge/sandbox/runner"
	"codepulse/internal/judge/sandbox/workspace"
	"codepulse/internal/judge/service"
	"codepulse/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultConfigPath = "configs/judge_service.yaml"
	defaultEnvPath    = ".env"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	envPath := flag.String("env", defaultEnvPath, "Optional env file loaded before the config is expanded")
	flag.Parse()

	if err := loadEnvFile(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return
	}
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

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(&appCfg.Database)
	if err != nil {
		logger.Error(rootCtx, "init database failed", zap.Error(err))
		return
	}
	defer func() {
		_ = database.Close()
	}()

	redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
	if err != nil {
		logger.Error(rootCtx, "init redis failed", zap.Error(err))
		return
	}
	defer func() {
		_ = redisCache.Close()
	}()

	var archive repository.SourceArchive
	if appCfg.MinIO.Endpoint != "" {
		objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
		if err != nil {
			logger.Error(rootCtx, "init minio failed", zap.Error(err))
			return
		}
		if err := objStorage.EnsureBucket(rootCtx, appCfg.MinIO.Bucket); err != nil {
			logger.Error(rootCtx, "ensure source bucket failed", zap.Error(err))
			return
		}
		archive = repository.NewObjectSourceArchive(objStorage, appCfg.MinIO.Bucket)
	}

	var publisher repository.VerdictPublisher
	if len(appCfg.Kafka.Brokers) > 0 {
		producer, err := mq.NewKafkaProducer(appCfg.Kafka.KafkaConfig)
		if err != nil {
			logger.Error(rootCtx, "init kafka failed", zap.Error(err))
			return
		}
		defer func() {
			_ = producer.Close()
		}()
		publisher = repository.NewMQVerdictPublisher(producer, appCfg.Kafka.VerdictTopic)
	}

	registry, err := language.Default().WithImages(appCfg.Sandbox.Images)
	if err != nil {
		logger.Error(rootCtx, "invalid sandbox images", zap.Error(err))
		return
	}

	var reaper engine.Reaper
	dockerClient, err := engine.NewDockerClient()
	if err != nil {
		logger.Warn(rootCtx, "docker sdk unavailable, falling back to cli reaper", zap.Error(err))
	} else {
		defer func() {
			_ = dockerClient.Close()
		}()
		reaper = dockerClient
		if appCfg.Sandbox.PullImages {
			if err := dockerClient.EnsureImages(rootCtx, registry.Images()); err != nil {
				logger.Error(rootCtx, "prepare sandbox images failed", zap.Error(err))
				return
			}
		}
	}

	eng, err := engine.NewEngine(appCfg.Sandbox.toEngineConfig(reaper))
	if err != nil {
		logger.Error(rootCtx, "init sandbox engine failed", zap.Error(err))
		return
	}

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := observer.NewPrometheusRecorder(metricsRegistry)
	if err != nil {
		logger.Error(rootCtx, "init metrics failed", zap.Error(err))
		return
	}

	jobRunner := runner.NewRunnerWithObserver(eng, registry, appCfg.Sandbox.Limits.toResourceLimit(), recorder)
	materializer, err := workspace.NewMaterializer(appCfg.Sandbox.ScratchDir)
	if err != nil {
		logger.Error(rootCtx, "init scratch dir failed", zap.Error(err))
		return
	}
	worker := sandbox.NewWorker(jobRunner, materializer, recorder)

	var statusRepo *repository.StatusRepository
	if appCfg.Status.Enabled {
		statusRepo = repository.NewStatusRepository(redisCache, appCfg.Status.TTL)
	}

	problems := repository.NewProblemRepositoryWithTTL(database, redisCache, appCfg.Templates.TTL, appCfg.Templates.EmptyTTL).
		WithLocalCache(appCfg.Templates.LocalSize, appCfg.Templates.LocalTTL)

	judgeSvc, err := service.NewService(service.Config{
		Worker:          worker,
		Problems:        problems,
		Submissions:     repository.NewSubmissionRepository(database),
		StatusRepo:      statusRepo,
		Archive:         archive,
		Publisher:       publisher,
		WorkerTimeout:   appCfg.Worker.Timeout,
		DBTimeout:       appCfg.Timeouts.Database,
		StorageTimeout:  appCfg.Timeouts.Storage,
		StatusTimeout:   appCfg.Timeouts.Status,
		PublishTimeout:  appCfg.Timeouts.Publish,
		QueueWait:       appCfg.Worker.QueueWait,
		WorkerPoolSize:  appCfg.Worker.PoolSize,
		MaxCodeBytes:    appCfg.Requests.MaxCodeBytes,
		MaxInputBytes:   appCfg.Requests.MaxInputBytes,
		MaxCustomInputs: appCfg.Requests.MaxCustomInputs,
	})
	if err != nil {
		logger.Error(rootCtx, "init judge service failed", zap.Error(err))
		return
	}

	var auth *commonmw.JWTAuthenticator
	if appCfg.Auth.JWTSecret != "" {
		auth = commonmw.NewJWTAuthenticator(appCfg.Auth.JWTSecret, appCfg.Auth.Issuer)
	}
	var limiter *commonmw.RateLimiter
	if appCfg.RateLimit.Enabled {
		limiter = commonmw.NewRateLimiter(redisCache, appCfg.RateLimit.Timeout)
	}

	go sweepLoop(rootCtx, materializer, appCfg.Sandbox.SweepInterval, appCfg.Sandbox.SweepAge)

	httpServer := buildHTTPServer(appCfg, judgeSvc, auth, limiter, metricsRegistry, database, redisCache)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(rootCtx, "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "judge http server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-rootCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func buildHTTPServer(
	cfg *AppConfig,
	judgeSvc controller.JudgeService,
	auth *commonmw.JWTAuthenticator,
	limiter *commonmw.RateLimiter,
	gatherer prometheus.Gatherer,
	deps ...pinger,
) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	router.GET("/healthz", healthHandler(deps...))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1", commonmw.IdentityMiddleware(auth))
	var submit []gin.HandlerFunc
	if limiter != nil {
		submit = append(submit, commonmw.RateLimitMiddleware(limiter, "execution", cfg.RateLimit.toPolicy()))
	}
	controller.RegisterRoutes(api, controller.NewJudgeController(judgeSvc), submit...)

	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func healthHandler(deps ...pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		for _, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// sweepLoop removes scratch units abandoned by crashed runs.
func sweepLoop(ctx context.Context, materializer *workspace.Materializer, interval, olderThan time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := materializer.Sweep(ctx, olderThan)
			if err != nil {
				logger.Warn(ctx, "sweep scratch dir failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Info(ctx, "swept stale scratch units", zap.Int("removed", removed))
			}
		}
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
