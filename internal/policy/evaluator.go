// Package policy реализует проверку политик студии: приём новых бронирований
// и оценку штрафов за отмену. Пакет чистый: без I/O и side effects,
// текущий момент всегда передаётся параметром now.
package policy

import (
	"fmt"
	"time"

	"github.com/jonathanjackson-1/studio-scheduler/internal/model"
)

// Статусы решения по бронированию.
const (
	StatusConfirmed       = "confirmed"
	StatusPendingApproval = "pending-approval"
)

// Decision — результат успешной проверки бронирования.
// Вызывающая сторона персистит бронирование с этим статусом.
type Decision struct {
	Status      string `json:"status"`
	AutoConfirm bool   `json:"auto_confirm"`
}

// Validate проверяет запрошенный слот [requestedStart, requestedEnd) против
// политики студии и существующих занятий студента. Жёсткие правила проверяются
// по порядку: lead time, буфер/пересечение, недельный лимит. Первое нарушение
// прерывает проверку — частичных бронирований не бывает.
//
// existing — занятия этого студента; отменённые строки игнорируются.
func Validate(
	now time.Time,
	requestedStart time.Time,
	requestedEnd time.Time,
	existing []*model.LessonOccurrence,
	pol *model.BookingPolicy,
) (*Decision, error) {
	if !requestedEnd.After(requestedStart) {
		return nil, fmt.Errorf("%w: requested end must be after start", model.ErrValidation)
	}

	// 1. Lead time: до начала должно оставаться не меньше minLeadMinutes
	if requestedStart.Sub(now) < pol.MinLead() {
		return nil, fmt.Errorf("%w: booking requires at least %d minutes notice",
			model.ErrValidation, pol.MinLeadMinutes)
	}

	// 2. Буфер: запрошенный слот не должен пересекаться с расширенными
	// на bufferMinutes окнами существующих занятий
	buffer := pol.Buffer()
	for _, occ := range existing {
		if occ.IsCancelled {
			continue
		}
		blockStart := occ.StartTime.Add(-buffer)
		blockEnd := occ.EndTime.Add(buffer)
		if requestedStart.Before(blockEnd) && blockStart.Before(requestedEnd) {
			return nil, fmt.Errorf("%w: conflicts with existing lesson at %s (buffer %d min)",
				model.ErrValidation, occ.StartTime.Format(time.RFC3339), pol.BufferMinutes)
		}
	}

	// 3. Недельный лимит
	if pol.MaxBookingsPerWeek > 0 {
		winStart, winEnd := weekWindow(requestedStart, pol.WeekWindowMode)
		count := 0
		for _, occ := range existing {
			if occ.IsCancelled {
				continue
			}
			if !occ.StartTime.Before(winStart) && occ.StartTime.Before(winEnd) {
				count++
			}
		}
		if count >= pol.MaxBookingsPerWeek {
			return nil, fmt.Errorf("%w: weekly booking limit of %d reached",
				model.ErrValidation, pol.MaxBookingsPerWeek)
		}
	}

	decision := &Decision{
		Status:      StatusPendingApproval,
		AutoConfirm: pol.AutoConfirm,
	}
	if pol.AutoConfirm {
		decision.Status = StatusConfirmed
	}

	return decision, nil
}

// weekWindow возвращает границы [start, end) окна недельного лимита
// для запрошенного начала занятия.
func weekWindow(requestedStart time.Time, mode model.WeekWindowMode) (time.Time, time.Time) {
	switch mode {
	case model.WeekWindowCalendar:
		// Календарная неделя с понедельника, содержащая requestedStart
		daysSinceMonday := (int(requestedStart.Weekday()) + 6) % 7
		monday := time.Date(requestedStart.Year(), requestedStart.Month(), requestedStart.Day(),
			0, 0, 0, 0, requestedStart.Location()).AddDate(0, 0, -daysSinceMonday)
		return monday, monday.AddDate(0, 0, 7)
	default:
		// Скользящее окно: последние 7 суток, заканчивающиеся requestedStart
		return requestedStart.AddDate(0, 0, -6), requestedStart.Add(time.Nanosecond)
	}
}
