// Link registry server: multi-tenant short-link storage, resolution
// and lifecycle management behind a versioned REST API.
//
// Startup order matters: logger first, then config, then the storage
// dependencies, then the HTTP layer. Shutdown runs the same order in
// reverse once SIGTERM/SIGINT arrives — stop accepting requests,
// drain in-flight ones, close redis and the database.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Purplemerit/linkshortner-sub000/internal/config"
	"github.com/Purplemerit/linkshortner-sub000/internal/handler"
	"github.com/Purplemerit/linkshortner-sub000/internal/mail"
	"github.com/Purplemerit/linkshortner-sub000/internal/middleware"
	"github.com/Purplemerit/linkshortner-sub000/internal/repository"
	"github.com/Purplemerit/linkshortner-sub000/internal/service"
)

func main() {
	// .env is a dev convenience; absent in containers where the
	// orchestrator injects the environment.
	_ = godotenv.Load()

	logger := initLogger()
	defer logger.Sync()

	cfg := config.Load()
	logger.Info("configuration loaded",
		zap.String("port", cfg.Server.Port),
		zap.String("db_host", cfg.Database.Host),
		zap.String("redis_addr", cfg.Redis.Addr),
	)

	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}

	rdb := initRedis(cfg)
	if rdb != nil {
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("redis connection failed", zap.Error(err))
		}
	} else {
		logger.Warn("redis not configured, rate limiting disabled")
	}

	repo := repository.New(db, rdb, logger)
	if err := repo.AutoMigrate(); err != nil {
		logger.Fatal("database migration failed", zap.Error(err))
	}

	mailer := mail.New(mail.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, logger)

	svc, err := service.New(repo, mailer, cfg.BaseURL, logger)
	if err != nil {
		logger.Fatal("service init failed", zap.Error(err))
	}
	h := handler.New(svc, repo, cfg.BaseURL, cfg.Server.APIRateLimit, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.StructuredLogging(logger),
		middleware.PrometheusMetrics(),
	)
	h.RegisterRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("http server started", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("http shutdown error", zap.Error(err))
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("redis close error", zap.Error(err))
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("database close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

// initLogger builds a JSON logger in production and a colored console
// logger elsewhere.
func initLogger() *zap.Logger {
	var loggerConfig zap.Config
	if os.Getenv("APP_ENV") == "production" {
		loggerConfig = zap.NewProductionConfig()
	} else {
		loggerConfig = zap.NewDevelopmentConfig()
		loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		panic(fmt.Sprintf("logger init failed: %v", err))
	}
	return logger
}

func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		// Surface unique-index violations as gorm.ErrDuplicatedKey so
		// the repository can translate them.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("acquire sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(0)

	return db, nil
}

// initRedis returns nil when no address is configured; the repository
// and middleware degrade gracefully without it.
func initRedis(cfg *config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: 20,
	})
}
