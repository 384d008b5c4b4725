package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jonathanjackson-1/studio-scheduler/internal/model"
	"github.com/jonathanjackson-1/studio-scheduler/internal/policy"
)

// CancellationService применяет отмену к конкретному вхождению:
// оценивает штраф по политике студии, помечает строку отменённой,
// фиксирует исключение серии и после коммита сигналит downstream-эффекты.
type CancellationService struct {
	lessons     LessonStore
	occurrences OccurrenceStore
	policies    PolicyStore
	tx          Transactor
	queue       SideEffectQueue
	audit       AuditLog
	logger      *zap.Logger
	now         Clock
}

func NewCancellationService(
	lessons LessonStore,
	occurrences OccurrenceStore,
	policies PolicyStore,
	tx Transactor,
	queue SideEffectQueue,
	audit AuditLog,
	logger *zap.Logger,
) *CancellationService {
	return &CancellationService{
		lessons:     lessons,
		occurrences: occurrences,
		policies:    policies,
		tx:          tx,
		queue:       queue,
		audit:       audit,
		logger:      logger,
		now:         time.Now,
	}
}

// CancelOptions — необязательные параметры отмены. WaivePenalty доступен
// авторизованным акторам; авторизацию проверяет вызывающий слой.
type CancelOptions struct {
	Reason       string
	WaivePenalty bool
}

// CancelResult — исход отмены.
type CancelResult struct {
	Occurrence *model.LessonOccurrence
	Outcome    *policy.CancellationOutcome
}

// Cancel отменяет вхождение occurrenceStart. Любой сбой хранилища прерывает
// операцию до постановки side effects: уведомления не должны уходить по
// отмене, которая не закоммитилась.
func (s *CancellationService) Cancel(
	ctx context.Context,
	studioID, lessonID int64,
	occurrenceStart time.Time,
	actorID int64,
	opts CancelOptions,
) (*CancelResult, error) {
	now := s.now()

	lesson, err := s.lessons.GetByID(ctx, studioID, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, fmt.Errorf("lesson %d: %w", lessonID, model.ErrNotFound)
	}

	occ, err := s.occurrences.GetByLessonAndStart(ctx, lessonID, occurrenceStart)
	if err != nil {
		return nil, err
	}
	if occ == nil {
		return nil, fmt.Errorf("occurrence at %s: %w", occurrenceStart.Format(time.RFC3339), model.ErrNotFound)
	}
	if occ.IsCancelled {
		return nil, fmt.Errorf("%w: occurrence is already cancelled", model.ErrInvalidState)
	}

	pol, err := s.policies.GetByStudio(ctx, studioID)
	if err != nil {
		return nil, fmt.Errorf("get booking policy: %w", err)
	}
	if pol == nil {
		pol = model.DefaultBookingPolicy(studioID)
	}

	outcome := policy.EvaluateCancellation(now, occ.StartTime, pol.CancellationPolicy, opts.WaivePenalty)

	// Отметка строки и исключение серии коммитятся атомарно: сбой на любом
	// шаге откатывает отмену целиком
	err = s.tx.WithinTx(ctx, func(stores TxStores) error {
		if err := stores.Occurrences.MarkCancelled(ctx, occ.ID); err != nil {
			if errors.Is(err, model.ErrConflict) {
				return fmt.Errorf("%w: occurrence is already cancelled", model.ErrInvalidState)
			}
			return err
		}

		// Исключение ключуется исходным началом вхождения: для ранее перенесённого
		// занятия это дата из записи RESCHEDULED, а не текущее время строки
		originalStart, err := resolveOriginalStart(ctx, stores.Exceptions, lessonID, occ.StartTime)
		if err != nil {
			return err
		}

		return stores.Exceptions.Upsert(ctx, &model.LessonException{
			LessonID:      lessonID,
			OriginalStart: originalStart,
			Type:          model.ExceptionCancelled,
			Note:          opts.Reason,
		})
	})
	if err != nil {
		return nil, err
	}
	occ.IsCancelled = true

	s.logger.Info("Occurrence cancelled",
		zap.Int64("lesson_id", lessonID),
		zap.Int64("occurrence_id", occ.ID),
		zap.Time("start_time", occ.StartTime),
		zap.Int("penalty_percent", outcome.PenaltyPercent),
		zap.Bool("waived", outcome.Waived),
	)

	// Состояние закоммичено — дальше только best-effort
	if err := s.queue.EnqueueCancellationNotification(ctx, lessonID, occ.ID, outcome); err != nil {
		s.logger.Warn("enqueue cancellation notification failed", zap.Int64("lesson_id", lessonID), zap.Error(err))
	}
	if err := s.queue.EnqueueWaitlistOffer(ctx, lessonID); err != nil {
		s.logger.Warn("enqueue waitlist offer failed", zap.Int64("lesson_id", lessonID), zap.Error(err))
	}

	err = s.audit.Record(ctx, &model.AuditEntry{
		StudioID: lesson.StudioID,
		ActorID:  actorID,
		Entity:   "lesson",
		EntityID: lessonID,
		Action:   model.AuditLessonCancelled,
		Delta: map[string]any{
			"occurrence_start": occ.StartTime,
			"reason":           opts.Reason,
			"penalty_percent":  outcome.PenaltyPercent,
			"waived":           outcome.Waived,
		},
	})
	if err != nil {
		s.logger.Warn("audit record failed", zap.String("action", model.AuditLessonCancelled), zap.Error(err))
	}

	return &CancelResult{Occurrence: occ, Outcome: outcome}, nil
}

// resolveOriginalStart возвращает исходное начало слота для строки вхождения.
// Если строку уже переносили, её текущее время совпадает с NewStart записи
// RESCHEDULED — ключом остаётся original_start той записи.
func resolveOriginalStart(ctx context.Context, store ExceptionStore, lessonID int64, current time.Time) (time.Time, error) {
	exceptions, err := store.ListByLesson(ctx, lessonID)
	if err != nil {
		return time.Time{}, fmt.Errorf("list exceptions: %w", err)
	}

	for _, exc := range exceptions {
		if exc.IsReschedule() && exc.NewStart.Equal(current) {
			return exc.OriginalStart, nil
		}
	}

	return current, nil
}
