package model

import "time"

type ExceptionType string

const (
	ExceptionCancelled   ExceptionType = "CANCELLED"
	ExceptionRescheduled ExceptionType = "RESCHEDULED"
)

// LessonException — переопределение одного вхождения серии.
// Ключ — (LessonID, OriginalStart), запись никогда не удаляется (audit trail).
type LessonException struct {
	ID            int64         `json:"id"`
	LessonID      int64         `json:"lesson_id"`
	OriginalStart time.Time     `json:"original_start"`
	Type          ExceptionType `json:"type"`
	NewStart      *time.Time    `json:"new_start"` // только для RESCHEDULED
	NewEnd        *time.Time    `json:"new_end"`
	Note          string        `json:"note"` // произвольный комментарий (причина отмены и т.п.)
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// IsCancellation проверяет, что исключение отменяет вхождение.
func (e *LessonException) IsCancellation() bool {
	return e.Type == ExceptionCancelled
}

// IsReschedule проверяет, что исключение переносит вхождение.
func (e *LessonException) IsReschedule() bool {
	return e.Type == ExceptionRescheduled && e.NewStart != nil && e.NewEnd != nil
}
