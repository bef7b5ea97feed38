package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/careerloop/backend/repository"
	"github.com/careerloop/backend/services"
)

func main() {
	// Setup structured logging with JSON format
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	config := services.LoadConfig()

	server := services.NewServer(config)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connections
	if config.Database.URL != "" {
		gormDB, err := gorm.Open(postgres.Open(config.Database.URL), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormLogLevel(config.Database.LogLevel)),
		})
		if err != nil {
			slog.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}

		if sqlDB, err := gormDB.DB(); err == nil {
			sqlDB.SetMaxIdleConns(config.Database.MaxIdleConns)
			sqlDB.SetMaxOpenConns(config.Database.MaxOpenConns)
		}

		repo := repository.NewGORMRepository(gormDB)
		if err := repo.AutoMigrate(); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("Connected to database")

		// Separate pgx pool for health checks
		pool, err := pgxpool.New(ctx, config.Database.URL)
		if err != nil {
			slog.Error("Failed to create health check pool", "error", err)
		} else {
			defer pool.Close()
		}

		server.SetDatabase(repo, pool)
	} else {
		slog.Warn("Database URL not configured, running without database")
	}

	if err := server.InitializeServices(ctx); err != nil {
		slog.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}

	server.StartReminderLoop(ctx)
	server.Start()
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "info":
		return gormlogger.Info
	case "warn":
		return gormlogger.Warn
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Silent
	}
}
