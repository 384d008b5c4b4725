package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jonathanjackson-1/studio-scheduler/internal/app"
	"github.com/jonathanjackson-1/studio-scheduler/internal/config"
	"github.com/jonathanjackson-1/studio-scheduler/internal/queue"
	"github.com/jonathanjackson-1/studio-scheduler/internal/repository"
	"github.com/jonathanjackson-1/studio-scheduler/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	logger.Info("Starting studio scheduler",
		zap.String("environment", cfg.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to create connection pool", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}

	// Миграции
	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath)
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	migrator.Close()

	// Redis — очередь side effects. Недоступность очереди деградирует
	// доставку уведомлений, но не ломает планирование.
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, side effects will be dropped", zap.Error(err))
	}
	defer redisClient.Close()

	// Репозитории
	lessonRepo := repository.NewLessonRepository(pool)
	occurrenceRepo := repository.NewOccurrenceRepository(pool)
	exceptionRepo := repository.NewExceptionRepository(pool)
	negotiationRepo := repository.NewNegotiationRepository(pool)
	policyRepo := repository.NewPolicyRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	sideEffects := queue.NewRedisQueue(redisClient)
	txManager := repository.NewTxManager(pool)

	// Сервисы
	schedulingService := service.NewSchedulingService(
		lessonRepo, occurrenceRepo, exceptionRepo, policyRepo, sideEffects, auditRepo, logger)
	rescheduleService := service.NewRescheduleService(
		lessonRepo, occurrenceRepo, negotiationRepo, policyRepo,
		txManager, sideEffects, auditRepo, logger)

	// Фоновые задачи: материализация вхождений + закрытие просроченных переговоров
	horizon := time.Duration(cfg.MaterializeWeeks) * 7 * 24 * time.Hour
	scheduler := app.NewScheduler(schedulingService, rescheduleService, horizon, time.Hour, logger)
	scheduler.Start(ctx)

	logger.Info("Studio scheduler started")

	// Ждём сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	scheduler.Stop()
	cancel()
}
