package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathanjackson-1/studio-scheduler/internal/model"
	"github.com/jonathanjackson-1/studio-scheduler/internal/negotiation"
)

// RescheduleService ведёт переговоры о переносе вхождения:
// propose -> accept/decline (+ фоновое истечение). Эксклюзивность раундов
// обеспечивают условные записи хранилища (см. NegotiationStore), а атомарность
// многошаговых переходов — Transactor: сбой на середине откатывает весь шаг.
type RescheduleService struct {
	lessons      LessonStore
	occurrences  OccurrenceStore
	negotiations NegotiationStore
	policies     PolicyStore
	tx           Transactor
	queue        SideEffectQueue
	audit        AuditLog
	logger       *zap.Logger
	now          Clock
}

func NewRescheduleService(
	lessons LessonStore,
	occurrences OccurrenceStore,
	negotiations NegotiationStore,
	policies PolicyStore,
	tx Transactor,
	queue SideEffectQueue,
	audit AuditLog,
	logger *zap.Logger,
) *RescheduleService {
	return &RescheduleService{
		lessons:      lessons,
		occurrences:  occurrences,
		negotiations: negotiations,
		policies:     policies,
		tx:           tx,
		queue:        queue,
		audit:        audit,
		logger:       logger,
		now:          time.Now,
	}
}

// Propose открывает раунд переговоров по вхождению originalStart: удерживает
// строку вхождения (мягкая отмена против двойного бронирования) и создаёт
// pending-раунд с кандидатными слотами — атомарно. Роли не проверяются —
// предложить перенос может любая аутентифицированная сторона.
func (s *RescheduleService) Propose(
	ctx context.Context,
	studioID, lessonID int64,
	originalStart time.Time,
	actorID int64,
	slots []negotiation.Slot,
) (*model.RescheduleNegotiation, error) {
	now := s.now()

	lesson, err := s.loadLesson(ctx, studioID, lessonID)
	if err != nil {
		return nil, err
	}

	occ, err := s.occurrences.GetByLessonAndStart(ctx, lessonID, originalStart)
	if err != nil {
		return nil, err
	}
	if occ == nil {
		return nil, fmt.Errorf("occurrence at %s: %w", originalStart.Format(time.RFC3339), model.ErrNotFound)
	}

	pol, err := s.policies.GetByStudio(ctx, studioID)
	if err != nil {
		return nil, fmt.Errorf("get booking policy: %w", err)
	}
	if pol == nil {
		pol = model.DefaultBookingPolicy(studioID)
	}

	neg, err := negotiation.Propose(occ, slots, now, pol.RescheduleWindow())
	if err != nil {
		return nil, err
	}
	neg.StudioID = lesson.StudioID

	// Удержание строки и создание раунда — одна транзакция: проигравший
	// конкурент получает конфликт либо на строке, либо на уникальном индексе
	// открытых раундов, а откат снимает удержание сам
	err = s.tx.WithinTx(ctx, func(stores TxStores) error {
		if err := stores.Occurrences.MarkCancelled(ctx, occ.ID); err != nil {
			if errors.Is(err, model.ErrConflict) {
				return fmt.Errorf("%w: occurrence is already held or cancelled", model.ErrConflict)
			}
			return err
		}
		return stores.Negotiations.CreatePending(ctx, neg)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Reschedule proposed",
		zap.Int64("lesson_id", lessonID),
		zap.Int64("occurrence_id", occ.ID),
		zap.Time("original_start", originalStart),
		zap.Int("proposals", len(neg.Proposals)),
	)

	if err := s.queue.EnqueueRescheduleFollowUp(ctx, lessonID, occ.ID); err != nil {
		s.logger.Warn("enqueue reschedule follow-up failed", zap.Int64("lesson_id", lessonID), zap.Error(err))
	}

	s.recordAudit(ctx, lesson.StudioID, actorID, lessonID, model.AuditRescheduleProposed, map[string]any{
		"original_start": originalStart,
		"negotiation_id": neg.ID,
		"proposals":      len(neg.Proposals),
	})

	return neg, nil
}

// Accept выбирает предложение proposalID из открытого раунда и применяет его:
// удержанное вхождение возвращается в расписание на новое время, исключение
// серии фиксирует канонический перенос. Закрытие раунда, перенос строки и
// исключение коммитятся атомарно. Повторный accept/decline по тому же
// вхождению завершится ErrNotFound — раунд уже закрыт.
func (s *RescheduleService) Accept(
	ctx context.Context,
	studioID, lessonID int64,
	originalStart time.Time,
	actorID int64,
	proposalID uuid.UUID,
) (*model.LessonOccurrence, error) {
	lesson, err := s.loadLesson(ctx, studioID, lessonID)
	if err != nil {
		return nil, err
	}

	neg, err := s.pendingNegotiation(ctx, lessonID, originalStart)
	if err != nil {
		return nil, err
	}

	proposal, err := negotiation.Accept(neg, proposalID)
	if err != nil {
		return nil, err
	}

	var occ *model.LessonOccurrence
	err = s.tx.WithinTx(ctx, func(stores TxStores) error {
		// Точка сериализации: ровно один из конкурирующих accept/decline пройдёт
		if err := stores.Negotiations.Finalize(ctx, neg.ID, model.NegotiationAccepted); err != nil {
			if errors.Is(err, model.ErrConflict) {
				return fmt.Errorf("negotiation already closed: %w", model.ErrNotFound)
			}
			return err
		}

		occ, err = heldOccurrence(ctx, stores.Occurrences, lessonID, originalStart)
		if err != nil {
			return err
		}

		if err := stores.Occurrences.Reinstate(ctx, occ.ID, proposal.StartTime, proposal.EndTime); err != nil {
			return err
		}

		newStart := proposal.StartTime
		newEnd := proposal.EndTime
		return stores.Exceptions.Upsert(ctx, &model.LessonException{
			LessonID:      lessonID,
			OriginalStart: originalStart,
			Type:          model.ExceptionRescheduled,
			NewStart:      &newStart,
			NewEnd:        &newEnd,
		})
	})
	if err != nil {
		return nil, err
	}

	occ.StartTime = proposal.StartTime
	occ.EndTime = proposal.EndTime
	occ.IsCancelled = false

	s.logger.Info("Reschedule accepted",
		zap.Int64("lesson_id", lessonID),
		zap.Int64("occurrence_id", occ.ID),
		zap.Time("original_start", originalStart),
		zap.Time("new_start", proposal.StartTime),
	)

	if err := s.queue.EnqueueLessonReminder(ctx, lessonID, occ.ID, proposal.StartTime); err != nil {
		s.logger.Warn("enqueue lesson reminder failed", zap.Int64("lesson_id", lessonID), zap.Error(err))
	}

	s.recordAudit(ctx, lesson.StudioID, actorID, lessonID, model.AuditRescheduleAccepted, map[string]any{
		"original_start": originalStart,
		"new_start":      proposal.StartTime,
		"new_end":        proposal.EndTime,
		"proposal_id":    proposalID,
	})

	return occ, nil
}

// Decline закрывает раунд без переноса: удержанное вхождение возвращается
// в расписание на исходное время (атомарно с закрытием), напоминание
// не ставится.
func (s *RescheduleService) Decline(
	ctx context.Context,
	studioID, lessonID int64,
	originalStart time.Time,
	actorID int64,
) error {
	lesson, err := s.loadLesson(ctx, studioID, lessonID)
	if err != nil {
		return err
	}

	neg, err := s.pendingNegotiation(ctx, lessonID, originalStart)
	if err != nil {
		return err
	}

	if err := negotiation.Decline(neg); err != nil {
		return err
	}

	var occ *model.LessonOccurrence
	err = s.tx.WithinTx(ctx, func(stores TxStores) error {
		if err := stores.Negotiations.Finalize(ctx, neg.ID, model.NegotiationDeclined); err != nil {
			if errors.Is(err, model.ErrConflict) {
				return fmt.Errorf("negotiation already closed: %w", model.ErrNotFound)
			}
			return err
		}

		occ, err = heldOccurrence(ctx, stores.Occurrences, lessonID, originalStart)
		if err != nil {
			return err
		}

		return stores.Occurrences.Release(ctx, occ.ID)
	})
	if err != nil {
		return err
	}
	occ.IsCancelled = false

	s.logger.Info("Reschedule declined",
		zap.Int64("lesson_id", lessonID),
		zap.Int64("occurrence_id", occ.ID),
		zap.Time("original_start", originalStart),
	)

	s.recordAudit(ctx, lesson.StudioID, actorID, lessonID, model.AuditRescheduleDeclined, map[string]any{
		"original_start": originalStart,
		"negotiation_id": neg.ID,
	})

	return nil
}

// ExpireStale закрывает просроченные раунды и возвращает удержанные вхождения
// в расписание. Срок раунда advisory (policy.rescheduleWindowHours) и
// применяется только здесь, фоновым воркером.
func (s *RescheduleService) ExpireStale(ctx context.Context) (int, error) {
	now := s.now()

	stale, err := s.negotiations.ListExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expired negotiations: %w", err)
	}

	expired := 0
	for _, neg := range stale {
		err := s.tx.WithinTx(ctx, func(stores TxStores) error {
			if err := stores.Negotiations.Finalize(ctx, neg.ID, model.NegotiationExpired); err != nil {
				return err
			}

			occ, err := heldOccurrence(ctx, stores.Occurrences, neg.LessonID, neg.OriginalStart)
			if err != nil {
				return err
			}
			return stores.Occurrences.Release(ctx, occ.ID)
		})
		if err != nil {
			// Конкурирующий accept/decline успел первым — не наша забота
			if errors.Is(err, model.ErrConflict) {
				continue
			}
			s.logger.Warn("expire negotiation failed",
				zap.String("negotiation_id", neg.ID.String()),
				zap.Error(err))
			continue
		}

		// ActorID=0 — системный фоновый sweep, студия берётся с раунда
		s.recordAudit(ctx, neg.StudioID, 0, neg.LessonID, model.AuditNegotiationExpired, map[string]any{
			"original_start": neg.OriginalStart,
			"negotiation_id": neg.ID,
		})
		expired++
	}

	if expired > 0 {
		s.logger.Info("Expired stale negotiations", zap.Int("count", expired))
	}

	return expired, nil
}

func (s *RescheduleService) loadLesson(ctx context.Context, studioID, lessonID int64) (*model.Lesson, error) {
	lesson, err := s.lessons.GetByID(ctx, studioID, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, fmt.Errorf("lesson %d: %w", lessonID, model.ErrNotFound)
	}
	return lesson, nil
}

func (s *RescheduleService) pendingNegotiation(ctx context.Context, lessonID int64, originalStart time.Time) (*model.RescheduleNegotiation, error) {
	neg, err := s.negotiations.GetPending(ctx, lessonID, originalStart)
	if err != nil {
		return nil, err
	}
	if neg == nil {
		return nil, fmt.Errorf("no pending negotiation for %s: %w",
			originalStart.Format(time.RFC3339), model.ErrNotFound)
	}
	return neg, nil
}

// heldOccurrence находит удержанную propose'ом строку вхождения
func heldOccurrence(ctx context.Context, occurrences OccurrenceStore, lessonID int64, originalStart time.Time) (*model.LessonOccurrence, error) {
	occ, err := occurrences.GetByLessonAndStart(ctx, lessonID, originalStart)
	if err != nil {
		return nil, err
	}
	if occ == nil {
		return nil, fmt.Errorf("held occurrence at %s: %w", originalStart.Format(time.RFC3339), model.ErrNotFound)
	}
	return occ, nil
}

func (s *RescheduleService) recordAudit(ctx context.Context, studioID, actorID, lessonID int64, action string, delta map[string]any) {
	err := s.audit.Record(ctx, &model.AuditEntry{
		StudioID: studioID,
		ActorID:  actorID,
		Entity:   "lesson",
		EntityID: lessonID,
		Action:   action,
		Delta:    delta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}
