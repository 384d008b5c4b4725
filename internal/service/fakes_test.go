package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathanjackson-1/studio-scheduler/internal/model"
	"github.com/jonathanjackson-1/studio-scheduler/internal/policy"
)

// In-memory реализации контрактов хранилища с той же семантикой условных
// мутаций, что и у Postgres-репозиториев.

type fakeLessonStore struct {
	lessons map[int64]*model.Lesson
	nextID  int64
}

func newFakeLessonStore() *fakeLessonStore {
	return &fakeLessonStore{lessons: map[int64]*model.Lesson{}}
}

func (f *fakeLessonStore) Create(_ context.Context, lesson *model.Lesson) error {
	f.nextID++
	lesson.ID = f.nextID
	lesson.CreatedAt = time.Now()
	lesson.UpdatedAt = lesson.CreatedAt
	f.lessons[lesson.ID] = lesson
	return nil
}

func (f *fakeLessonStore) GetByID(_ context.Context, studioID, lessonID int64) (*model.Lesson, error) {
	lesson, ok := f.lessons[lessonID]
	if !ok || lesson.StudioID != studioID {
		return nil, nil
	}
	return lesson, nil
}

func (f *fakeLessonStore) ListActive(_ context.Context) ([]*model.Lesson, error) {
	var active []*model.Lesson
	for _, lesson := range f.lessons {
		if lesson.IsActive {
			active = append(active, lesson)
		}
	}
	return active, nil
}

type fakeOccurrenceStore struct {
	occurrences map[int64]*model.LessonOccurrence
	nextID      int64

	// Инъекции сбоя хранилища
	failMarkCancelled error
	failReinstate     error
	failRelease       error
}

func newFakeOccurrenceStore() *fakeOccurrenceStore {
	return &fakeOccurrenceStore{occurrences: map[int64]*model.LessonOccurrence{}}
}

func (f *fakeOccurrenceStore) Create(_ context.Context, occ *model.LessonOccurrence) error {
	for _, existing := range f.occurrences {
		if existing.LessonID == occ.LessonID && existing.StartTime.Equal(occ.StartTime) && !existing.IsCancelled {
			return fmt.Errorf("occurrence slot taken: %w", model.ErrConflict)
		}
	}
	f.nextID++
	occ.ID = f.nextID
	occ.CreatedAt = time.Now()
	f.occurrences[occ.ID] = occ
	return nil
}

func (f *fakeOccurrenceStore) Exists(_ context.Context, lessonID int64, start time.Time) (bool, error) {
	for _, occ := range f.occurrences {
		if occ.LessonID == lessonID && occ.StartTime.Equal(start) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeOccurrenceStore) GetByLessonAndStart(_ context.Context, lessonID int64, start time.Time) (*model.LessonOccurrence, error) {
	var found *model.LessonOccurrence
	for _, occ := range f.occurrences {
		if occ.LessonID != lessonID || !occ.StartTime.Equal(start) {
			continue
		}
		// Неотменённая строка предпочтительнее
		if found == nil || (found.IsCancelled && !occ.IsCancelled) {
			found = occ
		}
	}
	return found, nil
}

func (f *fakeOccurrenceStore) ListByStudent(_ context.Context, studioID, studentID int64, from, to time.Time) ([]*model.LessonOccurrence, error) {
	return nil, nil
}

func (f *fakeOccurrenceStore) MarkCancelled(_ context.Context, id int64) error {
	if f.failMarkCancelled != nil {
		return f.failMarkCancelled
	}
	occ, ok := f.occurrences[id]
	if !ok {
		return fmt.Errorf("occurrence %d: %w", id, model.ErrNotFound)
	}
	if occ.IsCancelled {
		return fmt.Errorf("occurrence %d already cancelled: %w", id, model.ErrConflict)
	}
	occ.IsCancelled = true
	return nil
}

func (f *fakeOccurrenceStore) Release(_ context.Context, id int64) error {
	if f.failRelease != nil {
		return f.failRelease
	}
	occ, ok := f.occurrences[id]
	if !ok {
		return fmt.Errorf("occurrence %d: %w", id, model.ErrNotFound)
	}
	if !occ.IsCancelled {
		return fmt.Errorf("occurrence %d not held: %w", id, model.ErrConflict)
	}
	occ.IsCancelled = false
	return nil
}

func (f *fakeOccurrenceStore) Reinstate(_ context.Context, id int64, start, end time.Time) error {
	if f.failReinstate != nil {
		return f.failReinstate
	}
	occ, ok := f.occurrences[id]
	if !ok {
		return fmt.Errorf("occurrence %d: %w", id, model.ErrNotFound)
	}
	if !occ.IsCancelled {
		return fmt.Errorf("occurrence %d not held: %w", id, model.ErrConflict)
	}
	occ.StartTime = start
	occ.EndTime = end
	occ.IsCancelled = false
	return nil
}

type fakeExceptionStore struct {
	byKey map[string]*model.LessonException

	failUpsert error // инъекция сбоя хранилища
}

func newFakeExceptionStore() *fakeExceptionStore {
	return &fakeExceptionStore{byKey: map[string]*model.LessonException{}}
}

func exceptionKey(lessonID int64, originalStart time.Time) string {
	return fmt.Sprintf("%d/%d", lessonID, originalStart.UnixNano())
}

func (f *fakeExceptionStore) Upsert(_ context.Context, exc *model.LessonException) error {
	if f.failUpsert != nil {
		return f.failUpsert
	}
	f.byKey[exceptionKey(exc.LessonID, exc.OriginalStart)] = exc
	return nil
}

func (f *fakeExceptionStore) ListByLesson(_ context.Context, lessonID int64) ([]*model.LessonException, error) {
	var out []*model.LessonException
	for _, exc := range f.byKey {
		if exc.LessonID == lessonID {
			out = append(out, exc)
		}
	}
	return out, nil
}

func (f *fakeExceptionStore) get(lessonID int64, originalStart time.Time) *model.LessonException {
	return f.byKey[exceptionKey(lessonID, originalStart)]
}

type fakeNegotiationStore struct {
	byID map[uuid.UUID]*model.RescheduleNegotiation
}

func newFakeNegotiationStore() *fakeNegotiationStore {
	return &fakeNegotiationStore{byID: map[uuid.UUID]*model.RescheduleNegotiation{}}
}

func (f *fakeNegotiationStore) CreatePending(_ context.Context, n *model.RescheduleNegotiation) error {
	for _, existing := range f.byID {
		if existing.LessonID == n.LessonID &&
			existing.OriginalStart.Equal(n.OriginalStart) &&
			existing.Status == model.NegotiationPending {
			return fmt.Errorf("pending negotiation exists: %w", model.ErrConflict)
		}
	}
	f.byID[n.ID] = n
	return nil
}

func (f *fakeNegotiationStore) GetPending(_ context.Context, lessonID int64, originalStart time.Time) (*model.RescheduleNegotiation, error) {
	for _, n := range f.byID {
		if n.LessonID == lessonID && n.OriginalStart.Equal(originalStart) && n.Status == model.NegotiationPending {
			return n, nil
		}
	}
	return nil, nil
}

func (f *fakeNegotiationStore) Finalize(_ context.Context, id uuid.UUID, status model.NegotiationStatus) error {
	n, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("negotiation %s: %w", id, model.ErrNotFound)
	}
	if n.Status != model.NegotiationPending {
		return fmt.Errorf("negotiation %s already %s: %w", id, n.Status, model.ErrConflict)
	}
	n.Status = status
	return nil
}

func (f *fakeNegotiationStore) ListExpired(_ context.Context, now time.Time) ([]*model.RescheduleNegotiation, error) {
	var stale []*model.RescheduleNegotiation
	for _, n := range f.byID {
		if n.Status == model.NegotiationPending && !n.ExpiresAt.After(now) {
			stale = append(stale, n)
		}
	}
	return stale, nil
}

type fakePolicyStore struct {
	policies map[int64]*model.BookingPolicy
}

func newFakePolicyStore() *fakePolicyStore {
	return &fakePolicyStore{policies: map[int64]*model.BookingPolicy{}}
}

func (f *fakePolicyStore) GetByStudio(_ context.Context, studioID int64) (*model.BookingPolicy, error) {
	return f.policies[studioID], nil
}

type queuedReminder struct {
	LessonID     int64
	OccurrenceID int64
	RunAt        time.Time
}

type queuedNotification struct {
	LessonID     int64
	OccurrenceID int64
	Outcome      *policy.CancellationOutcome
}

type fakeQueue struct {
	reminders     []queuedReminder
	followUps     []int64 // lesson ids
	waitlist      []int64
	notifications []queuedNotification

	failAll error // инъекция недоступности очереди
}

func (f *fakeQueue) EnqueueLessonReminder(_ context.Context, lessonID, occurrenceID int64, runAt time.Time) error {
	if f.failAll != nil {
		return f.failAll
	}
	f.reminders = append(f.reminders, queuedReminder{lessonID, occurrenceID, runAt})
	return nil
}

func (f *fakeQueue) EnqueueRescheduleFollowUp(_ context.Context, lessonID, occurrenceID int64) error {
	if f.failAll != nil {
		return f.failAll
	}
	f.followUps = append(f.followUps, lessonID)
	return nil
}

func (f *fakeQueue) EnqueueWaitlistOffer(_ context.Context, lessonID int64) error {
	if f.failAll != nil {
		return f.failAll
	}
	f.waitlist = append(f.waitlist, lessonID)
	return nil
}

func (f *fakeQueue) EnqueueCancellationNotification(_ context.Context, lessonID, occurrenceID int64, outcome *policy.CancellationOutcome) error {
	if f.failAll != nil {
		return f.failAll
	}
	f.notifications = append(f.notifications, queuedNotification{lessonID, occurrenceID, outcome})
	return nil
}

// fakeTx повторяет транзакционную семантику TxManager: при ошибке fn все
// мутации fake-хранилищ, сделанные внутри, откатываются до снапшота.
// Откат пишет значения через существующие указатели, чтобы ссылки,
// удерживаемые тестом, видели восстановленное состояние.
type fakeTx struct {
	occurrences  *fakeOccurrenceStore
	exceptions   *fakeExceptionStore
	negotiations *fakeNegotiationStore
}

func (f *fakeTx) WithinTx(_ context.Context, fn func(stores TxStores) error) error {
	occSnap := make(map[int64]model.LessonOccurrence, len(f.occurrences.occurrences))
	for id, occ := range f.occurrences.occurrences {
		occSnap[id] = *occ
	}
	excSnap := make(map[string]*model.LessonException, len(f.exceptions.byKey))
	for key, exc := range f.exceptions.byKey {
		excSnap[key] = exc
	}
	negSnap := make(map[uuid.UUID]model.RescheduleNegotiation, len(f.negotiations.byID))
	for id, n := range f.negotiations.byID {
		negSnap[id] = *n
	}

	err := fn(TxStores{
		Occurrences:  f.occurrences,
		Exceptions:   f.exceptions,
		Negotiations: f.negotiations,
	})
	if err == nil {
		return nil
	}

	// Rollback
	for id, occ := range f.occurrences.occurrences {
		if snap, ok := occSnap[id]; ok {
			*occ = snap
		} else {
			delete(f.occurrences.occurrences, id)
		}
	}
	f.exceptions.byKey = excSnap
	for id, n := range f.negotiations.byID {
		if snap, ok := negSnap[id]; ok {
			*n = snap
		} else {
			delete(f.negotiations.byID, id)
		}
	}

	return err
}

type fakeAudit struct {
	entries []*model.AuditEntry
}

func (f *fakeAudit) Record(_ context.Context, entry *model.AuditEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) actions() []string {
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action)
	}
	return out
}
