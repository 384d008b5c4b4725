package model

import "time"

// Lesson представляет повторяющуюся серию занятий.
// Базовое окно Start/End задаёт длительность и первую дату серии.
type Lesson struct {
	ID             int64     `json:"id"`
	StudioID       int64     `json:"studio_id"`
	Title          string    `json:"title"`
	EducatorID     int64     `json:"educator_id"`
	StudentID      int64     `json:"student_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	RecurrenceRule string    `json:"recurrence_rule"` // "FREQ=WEEKLY;COUNT=10", пустая строка = разовое занятие
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Исключения серии (не из таблицы lessons, подгружаются отдельно)
	Exceptions []*LessonException `json:"exceptions,omitempty"`
}

// Duration возвращает длительность одного занятия серии.
func (l *Lesson) Duration() time.Duration {
	return l.End.Sub(l.Start)
}
