package model

import "time"

// LessonOccurrence — материализованное вхождение серии, строка-источник истины,
// которую мутируют перенос и отмена. Вычисляемое представление для календаря
// строится отдельно (см. recurrence.ResolvedOccurrence).
type LessonOccurrence struct {
	ID          int64     `json:"id"`
	LessonID    int64     `json:"lesson_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	IsCancelled bool      `json:"is_cancelled"`
	CreatedAt   time.Time `json:"created_at"`
}
