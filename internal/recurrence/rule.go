// Package recurrence разворачивает правило повторения серии занятий
// в конкретные вхождения. Пакет чистый: без I/O и без side effects.
package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonathanjackson-1/studio-scheduler/internal/model"
)

type Frequency string

const (
	FreqDaily   Frequency = "DAILY"
	FreqWeekly  Frequency = "WEEKLY"
	FreqMonthly Frequency = "MONTHLY"
)

// Rule — разобранное правило повторения.
// Wire-формат: пары KEY=VALUE через ";", например "FREQ=WEEKLY;COUNT=10"
// или "FREQ=DAILY;UNTIL=2024-06-01T00:00:00Z".
type Rule struct {
	Freq  Frequency
	Count int        // 0 = без ограничения по количеству
	Until *time.Time // nil = без ограничения по дате
}

// ParseRule разбирает строку правила. Пустая строка — валидное отсутствие
// правила (разовое занятие), возвращается nil.
func ParseRule(s string) (*Rule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	rule := &Rule{}
	seen := map[string]bool{}

	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%w: recurrence rule: malformed pair %q", model.ErrValidation, part)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if seen[key] {
			return nil, fmt.Errorf("%w: recurrence rule: duplicate key %q", model.ErrValidation, key)
		}
		seen[key] = true

		switch key {
		case "FREQ":
			switch Frequency(strings.ToUpper(value)) {
			case FreqDaily, FreqWeekly, FreqMonthly:
				rule.Freq = Frequency(strings.ToUpper(value))
			default:
				return nil, fmt.Errorf("%w: recurrence rule: unsupported FREQ %q", model.ErrValidation, value)
			}
		case "COUNT":
			count, err := strconv.Atoi(value)
			if err != nil || count <= 0 {
				return nil, fmt.Errorf("%w: recurrence rule: COUNT must be a positive integer, got %q", model.ErrValidation, value)
			}
			rule.Count = count
		case "UNTIL":
			until, err := time.Parse(time.RFC3339, value)
			if err != nil {
				return nil, fmt.Errorf("%w: recurrence rule: UNTIL must be an RFC3339 instant, got %q", model.ErrValidation, value)
			}
			rule.Until = &until
		default:
			return nil, fmt.Errorf("%w: recurrence rule: unknown key %q", model.ErrValidation, key)
		}
	}

	if rule.Freq == "" {
		return nil, fmt.Errorf("%w: recurrence rule: FREQ is required", model.ErrValidation)
	}

	return rule, nil
}

// String возвращает wire-представление правила.
func (r *Rule) String() string {
	var b strings.Builder
	b.WriteString("FREQ=")
	b.WriteString(string(r.Freq))
	if r.Count > 0 {
		b.WriteString(";COUNT=")
		b.WriteString(strconv.Itoa(r.Count))
	}
	if r.Until != nil {
		b.WriteString(";UNTIL=")
		b.WriteString(r.Until.UTC().Format(time.RFC3339))
	}
	return b.String()
}

// Step возвращает i-е вхождение от базовой даты. Для MONTHLY шаг считается
// от базы (не кумулятивно), чтобы день месяца не "уплывал" после короткого
// месяца: 31 янв -> 28 фев -> 31 мар.
func (r *Rule) Step(base time.Time, i int) time.Time {
	switch r.Freq {
	case FreqDaily:
		return base.AddDate(0, 0, i)
	case FreqWeekly:
		return base.AddDate(0, 0, 7*i)
	case FreqMonthly:
		return addMonthsClamped(base, i)
	default:
		return base.AddDate(0, 0, 7*i)
	}
}

// addMonthsClamped добавляет календарные месяцы, ограничивая день месяца
// длиной целевого месяца (31 янв + 1 мес = 28/29 фев).
func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())

	day := t.Day()
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}

	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	// Нулевой день следующего месяца = последний день текущего
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
