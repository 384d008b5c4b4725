package model

import "time"

// Действия, попадающие в журнал аудита.
const (
	AuditLessonCreated      = "lesson.created"
	AuditLessonCancelled    = "lesson.cancelled"
	AuditRescheduleProposed = "lesson.reschedule.proposed"
	AuditRescheduleAccepted = "lesson.reschedule.accepted"
	AuditRescheduleDeclined = "lesson.reschedule.declined"
	AuditNegotiationExpired = "lesson.reschedule.expired"
)

// AuditEntry — запись журнала аудита. Запись best-effort: сбой журнала
// не должен ронять операцию планирования.
type AuditEntry struct {
	ID        int64          `json:"id"`
	StudioID  int64          `json:"studio_id"`
	ActorID   int64          `json:"actor_id"`
	Entity    string         `json:"entity"`
	EntityID  int64          `json:"entity_id"`
	Action    string         `json:"action"`
	Delta     map[string]any `json:"delta"`
	CreatedAt time.Time      `json:"created_at"`
}
