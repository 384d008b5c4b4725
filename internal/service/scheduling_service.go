package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jonathanjackson-1/studio-scheduler/internal/model"
	"github.com/jonathanjackson-1/studio-scheduler/internal/policy"
	"github.com/jonathanjackson-1/studio-scheduler/internal/recurrence"
)

type SchedulingService struct {
	lessons     LessonStore
	occurrences OccurrenceStore
	exceptions  ExceptionStore
	policies    PolicyStore
	queue       SideEffectQueue
	audit       AuditLog
	logger      *zap.Logger
	now         Clock
}

func NewSchedulingService(
	lessons LessonStore,
	occurrences OccurrenceStore,
	exceptions ExceptionStore,
	policies PolicyStore,
	queue SideEffectQueue,
	audit AuditLog,
	logger *zap.Logger,
) *SchedulingService {
	return &SchedulingService{
		lessons:     lessons,
		occurrences: occurrences,
		exceptions:  exceptions,
		policies:    policies,
		queue:       queue,
		audit:       audit,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateLessonInput — параметры создания серии занятий.
type CreateLessonInput struct {
	StudioID       int64
	Title          string
	EducatorID     int64
	StudentID      int64
	ActorID        int64
	Start          time.Time
	End            time.Time
	RecurrenceRule string
}

// CreateLessonResult — созданная серия и решение по бронированию.
type CreateLessonResult struct {
	Lesson   *model.Lesson
	Decision *policy.Decision
}

// CreateLesson создаёт серию занятий: проверяет правило повторения и политику
// студии, персистит серию, материализует вхождения на горизонт вперёд и ставит
// напоминание о первом занятии.
func (s *SchedulingService) CreateLesson(ctx context.Context, input CreateLessonInput) (*CreateLessonResult, error) {
	now := s.now()

	if input.Title == "" {
		return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
	}
	if !input.End.After(input.Start) {
		return nil, fmt.Errorf("%w: lesson end must be after start", model.ErrValidation)
	}

	rule, err := recurrence.ParseRule(input.RecurrenceRule)
	if err != nil {
		return nil, err
	}

	// Инвариант серии: шаг повторения не короче длительности занятия, иначе
	// соседние вхождения пересекутся. Expander это не дедуплицирует —
	// пресекаем на создании.
	if rule != nil {
		step := rule.Step(input.Start, 1).Sub(input.Start)
		if input.End.Sub(input.Start) > step {
			return nil, fmt.Errorf("%w: lesson duration exceeds recurrence step", model.ErrValidation)
		}
	}

	pol, err := s.policyForStudio(ctx, input.StudioID)
	if err != nil {
		return nil, err
	}

	// Проверяем приём бронирования против существующих занятий студента
	// вокруг запрошенного слота (буфер и недельный лимит)
	existing, err := s.occurrences.ListByStudent(ctx, input.StudioID, input.StudentID,
		input.Start.AddDate(0, 0, -7), input.Start.AddDate(0, 0, 7))
	if err != nil {
		return nil, fmt.Errorf("list student occurrences: %w", err)
	}

	decision, err := policy.Validate(now, input.Start, input.End, existing, pol)
	if err != nil {
		return nil, err
	}

	lesson := &model.Lesson{
		StudioID:       input.StudioID,
		Title:          input.Title,
		EducatorID:     input.EducatorID,
		StudentID:      input.StudentID,
		Start:          input.Start,
		End:            input.End,
		RecurrenceRule: input.RecurrenceRule,
		IsActive:       true,
	}

	if err := s.lessons.Create(ctx, lesson); err != nil {
		return nil, err
	}

	created, err := s.materializeLesson(ctx, lesson, now, defaultMaterializeHorizon)
	if err != nil {
		// Серия уже закоммичена, довыпуск вхождений догонит фоновый воркер
		s.logger.Warn("initial occurrence materialization incomplete",
			zap.Int64("lesson_id", lesson.ID),
			zap.Error(err))
	}

	s.logger.Info("Lesson created",
		zap.Int64("lesson_id", lesson.ID),
		zap.Int64("studio_id", lesson.StudioID),
		zap.Int64("student_id", lesson.StudentID),
		zap.String("status", decision.Status),
		zap.Int("occurrences", created),
	)

	if first, err := s.occurrences.GetByLessonAndStart(ctx, lesson.ID, lesson.Start); err == nil && first != nil {
		if err := s.queue.EnqueueLessonReminder(ctx, lesson.ID, first.ID, first.StartTime); err != nil {
			s.logger.Warn("enqueue lesson reminder failed", zap.Int64("lesson_id", lesson.ID), zap.Error(err))
		}
	}

	s.recordAudit(ctx, &model.AuditEntry{
		StudioID: lesson.StudioID,
		ActorID:  input.ActorID,
		Entity:   "lesson",
		EntityID: lesson.ID,
		Action:   model.AuditLessonCreated,
		Delta: map[string]any{
			"title":  lesson.Title,
			"start":  lesson.Start,
			"rule":   lesson.RecurrenceRule,
			"status": decision.Status,
		},
	})

	return &CreateLessonResult{Lesson: lesson, Decision: decision}, nil
}

// GetCalendar разворачивает серию с применёнными исключениями в окне [from, to)
func (s *SchedulingService) GetCalendar(ctx context.Context, studioID, lessonID int64, from, to time.Time) ([]recurrence.ResolvedOccurrence, error) {
	lesson, err := s.loadLesson(ctx, studioID, lessonID)
	if err != nil {
		return nil, err
	}

	exceptions, err := s.exceptions.ListByLesson(ctx, lessonID)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}

	return recurrence.Expand(recurrence.Series{
		Start:          lesson.Start,
		End:            lesson.End,
		RecurrenceRule: lesson.RecurrenceRule,
		Exceptions:     exceptions,
	}, recurrence.Range{Start: from, End: to})
}

// defaultMaterializeHorizon — на сколько вперёд материализуются вхождения.
const defaultMaterializeHorizon = 28 * 24 * time.Hour

// MaterializeOccurrences довыпускает строки вхождений для всех активных серий
// на horizon вперёд. Запускается фоновым воркером; уже существующие и
// отменённые даты пропускаются.
func (s *SchedulingService) MaterializeOccurrences(ctx context.Context, horizon time.Duration) error {
	now := s.now()

	lessons, err := s.lessons.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active lessons: %w", err)
	}

	total := 0
	for _, lesson := range lessons {
		created, err := s.materializeLesson(ctx, lesson, now, horizon)
		if err != nil {
			s.logger.Warn("materialize lesson failed",
				zap.Int64("lesson_id", lesson.ID),
				zap.Error(err))
			continue
		}
		total += created
	}

	s.logger.Info("Occurrence materialization completed", zap.Int("created", total))
	return nil
}

// materializeLesson создаёт недостающие строки вхождений одной серии.
// Вхождения создаются по исходному расписанию: переносы мутируют уже
// существующие строки через переговоры, а не материализацию.
func (s *SchedulingService) materializeLesson(ctx context.Context, lesson *model.Lesson, now time.Time, horizon time.Duration) (int, error) {
	exceptions, err := s.exceptions.ListByLesson(ctx, lesson.ID)
	if err != nil {
		return 0, fmt.Errorf("list exceptions: %w", err)
	}

	resolved, err := recurrence.Expand(recurrence.Series{
		Start:          lesson.Start,
		End:            lesson.End,
		RecurrenceRule: lesson.RecurrenceRule,
		Exceptions:     exceptions,
	}, recurrence.Range{Start: now, End: now.Add(horizon)})
	if err != nil {
		return 0, err
	}

	created := 0
	for _, occ := range resolved {
		if occ.Status != recurrence.StatusScheduled {
			continue
		}

		exists, err := s.occurrences.Exists(ctx, lesson.ID, occ.Start)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		row := &model.LessonOccurrence{
			LessonID:  lesson.ID,
			StartTime: occ.Start,
			EndTime:   occ.End,
		}
		if err := s.occurrences.Create(ctx, row); err != nil {
			return created, err
		}
		created++
	}

	return created, nil
}

// policyForStudio загружает политику студии или подставляет дефолтную
func (s *SchedulingService) policyForStudio(ctx context.Context, studioID int64) (*model.BookingPolicy, error) {
	pol, err := s.policies.GetByStudio(ctx, studioID)
	if err != nil {
		return nil, fmt.Errorf("get booking policy: %w", err)
	}
	if pol == nil {
		pol = model.DefaultBookingPolicy(studioID)
	}
	return pol, nil
}

// loadLesson загружает серию с маппингом отсутствия в ErrNotFound
func (s *SchedulingService) loadLesson(ctx context.Context, studioID, lessonID int64) (*model.Lesson, error) {
	lesson, err := s.lessons.GetByID(ctx, studioID, lessonID)
	if err != nil {
		return nil, err
	}
	if lesson == nil {
		return nil, fmt.Errorf("lesson %d: %w", lessonID, model.ErrNotFound)
	}
	return lesson, nil
}

// recordAudit пишет запись аудита, сбой только логируется
func (s *SchedulingService) recordAudit(ctx context.Context, entry *model.AuditEntry) {
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit record failed",
			zap.String("action", entry.Action),
			zap.Int64("entity_id", entry.EntityID),
			zap.Error(err))
	}
}
