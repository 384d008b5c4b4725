package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jonathanjackson-1/studio-scheduler/internal/service"
)

// Scheduler управляет фоновыми задачами ядра планирования:
// материализация вхождений активных серий и закрытие просроченных
// раундов переговоров.
type Scheduler struct {
	scheduling *service.SchedulingService
	reschedule *service.RescheduleService
	horizon    time.Duration
	interval   time.Duration
	logger     *zap.Logger
	stopChan   chan struct{}
}

// NewScheduler создаёт новый планировщик фоновых задач
func NewScheduler(
	scheduling *service.SchedulingService,
	reschedule *service.RescheduleService,
	horizon time.Duration,
	interval time.Duration,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		scheduling: scheduling,
		reschedule: reschedule,
		horizon:    horizon,
		interval:   interval,
		logger:     logger,
		stopChan:   make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler",
		zap.Duration("horizon", s.horizon),
		zap.Duration("interval", s.interval))

	go s.run(ctx)
}

// Stop останавливает фоновые задачи
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	close(s.stopChan)
}

func (s *Scheduler) run(ctx context.Context) {
	// Первый запуск сразу при старте
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopChan:
			s.logger.Info("Background tasks stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Background tasks cancelled")
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if err := s.scheduling.MaterializeOccurrences(ctx, s.horizon); err != nil {
		s.logger.Error("Failed to materialize occurrences", zap.Error(err))
	}

	if _, err := s.reschedule.ExpireStale(ctx); err != nil {
		s.logger.Error("Failed to expire stale negotiations", zap.Error(err))
	}
}
