// Package queue реализует коллаборатора отложенных side effects поверх Redis.
// Все операции fire-and-forget: payload уходит в список своего вида эффекта,
// обработку выполняют внешние воркеры (напоминания, уведомления, waitlist).
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonathanjackson-1/studio-scheduler/internal/policy"
)

// Ключи списков по видам side effects.
const (
	keyLessonReminder           = "sideeffects:lesson_reminder"
	keyRescheduleFollowUp       = "sideeffects:reschedule_follow_up"
	keyWaitlistOffer            = "sideeffects:waitlist_offer"
	keyCancellationNotification = "sideeffects:cancellation_notification"
)

type RedisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

type reminderPayload struct {
	LessonID     int64     `json:"lesson_id"`
	OccurrenceID int64     `json:"occurrence_id"`
	RunAt        time.Time `json:"run_at"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

type followUpPayload struct {
	LessonID     int64     `json:"lesson_id"`
	OccurrenceID int64     `json:"occurrence_id"`
	EnqueuedAt   time.Time `json:"enqueued_at"`
}

type waitlistPayload struct {
	LessonID   int64     `json:"lesson_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

type cancellationPayload struct {
	LessonID     int64                       `json:"lesson_id"`
	OccurrenceID int64                       `json:"occurrence_id"`
	Outcome      *policy.CancellationOutcome `json:"outcome"`
	EnqueuedAt   time.Time                   `json:"enqueued_at"`
}

// EnqueueLessonReminder ставит напоминание о занятии на runAt
func (q *RedisQueue) EnqueueLessonReminder(ctx context.Context, lessonID, occurrenceID int64, runAt time.Time) error {
	return q.push(ctx, keyLessonReminder, reminderPayload{
		LessonID:     lessonID,
		OccurrenceID: occurrenceID,
		RunAt:        runAt,
		EnqueuedAt:   time.Now().UTC(),
	})
}

// EnqueueRescheduleFollowUp ставит напоминание-сверку по открытым переговорам
func (q *RedisQueue) EnqueueRescheduleFollowUp(ctx context.Context, lessonID, occurrenceID int64) error {
	return q.push(ctx, keyRescheduleFollowUp, followUpPayload{
		LessonID:     lessonID,
		OccurrenceID: occurrenceID,
		EnqueuedAt:   time.Now().UTC(),
	})
}

// EnqueueWaitlistOffer предлагает освободившийся слот листу ожидания
func (q *RedisQueue) EnqueueWaitlistOffer(ctx context.Context, lessonID int64) error {
	return q.push(ctx, keyWaitlistOffer, waitlistPayload{
		LessonID:   lessonID,
		EnqueuedAt: time.Now().UTC(),
	})
}

// EnqueueCancellationNotification отправляет исход отмены на уведомление
func (q *RedisQueue) EnqueueCancellationNotification(ctx context.Context, lessonID, occurrenceID int64, outcome *policy.CancellationOutcome) error {
	return q.push(ctx, keyCancellationNotification, cancellationPayload{
		LessonID:     lessonID,
		OccurrenceID: occurrenceID,
		Outcome:      outcome,
		EnqueuedAt:   time.Now().UTC(),
	})
}

func (q *RedisQueue) push(ctx context.Context, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", key, err)
	}

	if err := q.client.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", key, err)
	}

	return nil
}
