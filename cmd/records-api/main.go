package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/student-records/api/swagger"
	"github.com/noah-isme/student-records/internal/handler"
	internalmiddleware "github.com/noah-isme/student-records/internal/middleware"
	"github.com/noah-isme/student-records/internal/repository"
	"github.com/noah-isme/student-records/internal/service"
	"github.com/noah-isme/student-records/pkg/cache"
	"github.com/noah-isme/student-records/pkg/config"
	"github.com/noah-isme/student-records/pkg/database"
	"github.com/noah-isme/student-records/pkg/logger"
	corsmiddleware "github.com/noah-isme/student-records/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/student-records/pkg/middleware/requestid"
	"github.com/noah-isme/student-records/pkg/storage"
)

// @title Student Records API
// @version 1.0.0
// @description Students, courses and enrollments with cascading deletes.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	backend, err := openStore(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer backend.close()

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	records := service.NewRecordService(backend.store, metricsSvc, logr)
	records.Load(ctx)

	routes := handler.Routes{
		Students:      handler.NewStudentHandler(records),
		Courses:       handler.NewCourseHandler(records),
		Enrollments:   handler.NewEnrollmentHandler(records),
		System:        handler.NewSystemHandler(records),
		Metrics:       handler.NewMetricsHandler(metricsSvc, backend.ready),
		ExposeMetrics: cfg.Metrics.Enabled,
	}
	if cfg.Exports.Enabled {
		routes.Exports = handler.NewExportHandler(service.NewExportService(records, logr))
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	routes.Register(r, cfg.APIPrefix)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logr.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
}

type storeBackend struct {
	store service.KeyValueStore
	ready handler.ReadinessCheck
	close func()
}

func openStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*storeBackend, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		return &storeBackend{store: storage.NewMemoryStore(), close: func() {}}, nil

	case config.StoreFile:
		fs, err := storage.NewFileStore(cfg.Store.Dir)
		if err != nil {
			return nil, err
		}
		return &storeBackend{store: fs, close: func() {}}, nil

	case config.StoreRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		rs := repository.NewRedisStore(client, cfg.Store.KeyPrefix, logr)
		return &storeBackend{
			store: rs,
			ready: func(ctx context.Context) error { return client.Ping(ctx).Err() },
			close: func() {
				if err := rs.Close(); err != nil {
					logr.Warn("close redis", zap.Error(err))
				}
			},
		}, nil

	case config.StorePostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		ps := repository.NewPostgresStore(db)
		if err := ps.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &storeBackend{
			store: ps,
			ready: db.PingContext,
			close: func() {
				if err := db.Close(); err != nil {
					logr.Warn("close postgres", zap.Error(err))
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}
