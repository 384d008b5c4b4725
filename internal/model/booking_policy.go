package model

import "time"

// WeekWindowMode определяет привязку окна недельного лимита бронирований.
type WeekWindowMode string

const (
	// WeekWindowRolling — скользящее окно [start-6d, start] (по умолчанию)
	WeekWindowRolling WeekWindowMode = "rolling"
	// WeekWindowCalendar — календарная неделя (понедельник-воскресенье), содержащая start
	WeekWindowCalendar WeekWindowMode = "calendar"
)

// CancellationTier — ступень штрафа за отмену: применяется, если до начала занятия
// осталось меньше MinNoticeHours часов. Ступени хранятся по возрастанию порога.
type CancellationTier struct {
	MinNoticeHours int    `json:"min_notice_hours"`
	PenaltyPercent int    `json:"penalty_percent"`
	Label          string `json:"label"`
}

// BookingPolicy — настройки студии, ограничивающие приём бронирований.
type BookingPolicy struct {
	ID                    int64              `json:"id"`
	StudioID              int64              `json:"studio_id"`
	MinLeadMinutes        int                `json:"min_lead_minutes"`
	MaxBookingsPerWeek    int                `json:"max_bookings_per_week"`
	BufferMinutes         int                `json:"buffer_minutes"`
	AutoConfirm           bool               `json:"auto_confirm"`
	RescheduleWindowHours int                `json:"reschedule_window_hours"` // advisory, см. ExpiresAt переговоров
	WeekWindowMode        WeekWindowMode     `json:"week_window_mode"`
	CancellationPolicy    []CancellationTier `json:"cancellation_policy"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// MinLead возвращает минимальный интервал до начала занятия.
func (p *BookingPolicy) MinLead() time.Duration {
	return time.Duration(p.MinLeadMinutes) * time.Minute
}

// Buffer возвращает минимальный зазор между занятиями студента.
func (p *BookingPolicy) Buffer() time.Duration {
	return time.Duration(p.BufferMinutes) * time.Minute
}

// RescheduleWindow возвращает срок жизни открытого предложения переноса.
func (p *BookingPolicy) RescheduleWindow() time.Duration {
	return time.Duration(p.RescheduleWindowHours) * time.Hour
}

// DefaultBookingPolicy возвращает политику по умолчанию для студии без настроек.
func DefaultBookingPolicy(studioID int64) *BookingPolicy {
	return &BookingPolicy{
		StudioID:              studioID,
		MinLeadMinutes:        60,
		MaxBookingsPerWeek:    7,
		BufferMinutes:         0,
		AutoConfirm:           false,
		RescheduleWindowHours: 48,
		WeekWindowMode:        WeekWindowRolling,
	}
}
