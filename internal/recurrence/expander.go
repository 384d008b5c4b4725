package recurrence

import (
	"fmt"
	"sort"
	"time"

	"github.com/jonathanjackson-1/studio-scheduler/internal/model"
)

// maxCandidates — предохранитель от правил без COUNT/UNTIL на огромных окнах.
const maxCandidates = 10000

type OccurrenceStatus string

const (
	StatusScheduled   OccurrenceStatus = "scheduled"
	StatusCancelled   OccurrenceStatus = "cancelled"
	StatusRescheduled OccurrenceStatus = "rescheduled"
)

// Series — вход разворачивания: базовое окно, правило и исключения серии.
type Series struct {
	Start          time.Time
	End            time.Time
	RecurrenceRule string
	Exceptions     []*model.LessonException
}

// Range — запрашиваемое окно [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// ResolvedOccurrence — вхождение с применённым исключением.
// Для RESCHEDULED Start/End — новое время, OriginalStart — исходное
// (для аудита и корреляции с записью переговоров). Для CANCELLED
// Start/End остаются исходными: отмена помечает слот, а не двигает его.
type ResolvedOccurrence struct {
	Start         time.Time
	End           time.Time
	OriginalStart time.Time
	Status        OccurrenceStatus
}

// Expand разворачивает серию в упорядоченный по эффективному началу список
// вхождений, пересекающих окно window. Чистая функция: два вызова с одними
// аргументами дают идентичный результат.
func Expand(series Series, window Range) ([]ResolvedOccurrence, error) {
	if !series.End.After(series.Start) {
		return nil, fmt.Errorf("%w: series end must be after start", model.ErrValidation)
	}

	rule, err := ParseRule(series.RecurrenceRule)
	if err != nil {
		return nil, err
	}

	duration := series.End.Sub(series.Start)
	exceptions := exceptionIndex(series.Exceptions)

	// Окно генерации кандидатов не зависит от исключений по смыслу, но должно
	// покрывать их исходные даты: перенос может затащить позднее вхождение
	// внутрь запрошенного окна.
	genEnd := window.End
	for _, exc := range series.Exceptions {
		if exc.OriginalStart.After(genEnd) {
			genEnd = exc.OriginalStart
		}
	}

	var resolved []ResolvedOccurrence

	for i := 0; ; i++ {
		var candidate time.Time
		if rule == nil {
			// Без правила — только базовое окно
			if i > 0 {
				break
			}
			candidate = series.Start
		} else {
			if rule.Count > 0 && i >= rule.Count {
				break
			}
			if i >= maxCandidates {
				break
			}
			candidate = rule.Step(series.Start, i)
			if rule.Until != nil && candidate.After(*rule.Until) {
				break
			}
			if candidate.After(genEnd) {
				break
			}
		}

		occ := resolveCandidate(candidate, candidate.Add(duration), exceptions)

		// Фильтр по эффективному времени: перенесённое вхождение попадает в
		// выдачу по новому времени, а не по исходному.
		if overlaps(occ.Start, occ.End, window.Start, window.End) {
			resolved = append(resolved, occ)
		}
	}

	sort.Slice(resolved, func(i, j int) bool {
		if !resolved[i].Start.Equal(resolved[j].Start) {
			return resolved[i].Start.Before(resolved[j].Start)
		}
		return resolved[i].OriginalStart.Before(resolved[j].OriginalStart)
	})

	return resolved, nil
}

// resolveCandidate применяет исключение (если есть) к кандидату.
func resolveCandidate(start, end time.Time, exceptions map[int64]*model.LessonException) ResolvedOccurrence {
	occ := ResolvedOccurrence{
		Start:         start,
		End:           end,
		OriginalStart: start,
		Status:        StatusScheduled,
	}

	exc, ok := exceptions[start.UnixNano()]
	if !ok {
		return occ
	}

	switch {
	case exc.IsCancellation():
		occ.Status = StatusCancelled
	case exc.IsReschedule():
		occ.Status = StatusRescheduled
		occ.Start = *exc.NewStart
		occ.End = *exc.NewEnd
	}

	return occ
}

// exceptionIndex строит индекс исключений по точному исходному началу.
// Исключения, не совпадающие ни с одним кандидатом, останутся неиспользованными —
// это намеренная терпимость к устаревшим данным, не ошибка.
func exceptionIndex(exceptions []*model.LessonException) map[int64]*model.LessonException {
	index := make(map[int64]*model.LessonException, len(exceptions))
	for _, exc := range exceptions {
		index[exc.OriginalStart.UnixNano()] = exc
	}
	return index
}

// overlaps проверяет пересечение полуоткрытых интервалов [aStart, aEnd) и [bStart, bEnd).
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
