// Package service — координатор планирования: единственный слой с I/O.
// Загружает сущности у хранилища, делегирует чистым компонентам
// (recurrence, policy, negotiation), персистит результат и после успешного
// коммита отправляет side effects в очередь — best-effort.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jonathanjackson-1/studio-scheduler/internal/model"
	"github.com/jonathanjackson-1/studio-scheduler/internal/policy"
)

// LessonStore — контракт хранилища серий занятий.
// Методы Get* возвращают (nil, nil), если сущность не найдена в рамках студии.
type LessonStore interface {
	Create(ctx context.Context, lesson *model.Lesson) error
	GetByID(ctx context.Context, studioID, lessonID int64) (*model.Lesson, error)
	ListActive(ctx context.Context) ([]*model.Lesson, error)
}

// OccurrenceStore — контракт хранилища материализованных вхождений.
// Условные мутации (MarkCancelled/Release/Reinstate) возвращают
// model.ErrConflict, если строка уже в целевом состоянии: так конкурирующие
// операции по одному вхождению сериализуются, а не портят друг друга.
type OccurrenceStore interface {
	Create(ctx context.Context, occ *model.LessonOccurrence) error
	Exists(ctx context.Context, lessonID int64, start time.Time) (bool, error)
	GetByLessonAndStart(ctx context.Context, lessonID int64, start time.Time) (*model.LessonOccurrence, error)
	ListByStudent(ctx context.Context, studioID, studentID int64, from, to time.Time) ([]*model.LessonOccurrence, error)
	MarkCancelled(ctx context.Context, id int64) error
	Release(ctx context.Context, id int64) error
	Reinstate(ctx context.Context, id int64, start, end time.Time) error
}

// ExceptionStore — контракт хранилища исключений серии.
type ExceptionStore interface {
	Upsert(ctx context.Context, exc *model.LessonException) error
	ListByLesson(ctx context.Context, lessonID int64) ([]*model.LessonException, error)
}

// NegotiationStore — контракт хранилища раундов переговоров.
// CreatePending возвращает model.ErrConflict, если по вхождению уже открыт
// раунд; Finalize — если раунд уже закрыт конкурирующим вызовом.
type NegotiationStore interface {
	CreatePending(ctx context.Context, n *model.RescheduleNegotiation) error
	GetPending(ctx context.Context, lessonID int64, originalStart time.Time) (*model.RescheduleNegotiation, error)
	Finalize(ctx context.Context, id uuid.UUID, status model.NegotiationStatus) error
	ListExpired(ctx context.Context, now time.Time) ([]*model.RescheduleNegotiation, error)
}

// PolicyStore — контракт хранилища политик студий.
type PolicyStore interface {
	GetByStudio(ctx context.Context, studioID int64) (*model.BookingPolicy, error)
}

// TxStores — транзакционные представления хранилищ, действительные только
// внутри fn у Transactor.WithinTx.
type TxStores struct {
	Occurrences  OccurrenceStore
	Exceptions   ExceptionStore
	Negotiations NegotiationStore
}

// Transactor исполняет fn атомарно: либо все записи через переданные stores
// коммитятся вместе, либо при ошибке fn откатываются вместе. Многошаговые
// мутации координатора (hold+create, finalize+retime+exception) не должны
// оставлять частичное состояние при сбое хранилища на середине.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(stores TxStores) error) error
}

// SideEffectQueue — коллаборатор отложенных эффектов. Ошибки постановки
// логируются и никогда не превращаются в отказ операции: состояние
// планирования уже закоммичено и является источником истины.
type SideEffectQueue interface {
	EnqueueLessonReminder(ctx context.Context, lessonID, occurrenceID int64, runAt time.Time) error
	EnqueueRescheduleFollowUp(ctx context.Context, lessonID, occurrenceID int64) error
	EnqueueWaitlistOffer(ctx context.Context, lessonID int64) error
	EnqueueCancellationNotification(ctx context.Context, lessonID, occurrenceID int64, outcome *policy.CancellationOutcome) error
}

// AuditLog — коллаборатор журнала аудита, best-effort.
type AuditLog interface {
	Record(ctx context.Context, entry *model.AuditEntry) error
}

// Clock отдаёт текущий момент; в тестах подменяется фиксированным временем.
type Clock func() time.Time
