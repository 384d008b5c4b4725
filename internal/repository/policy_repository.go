package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonathanjackson-1/studio-scheduler/internal/model"
	"github.com/jonathanjackson-1/studio-scheduler/internal/repository/base"
)

type PolicyRepository struct {
	db base.Querier
}

func NewPolicyRepository(db base.Querier) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// GetByStudio получает политику бронирования студии.
// Отсутствие настроек — не ошибка: сервис подставит значения по умолчанию.
func (r *PolicyRepository) GetByStudio(ctx context.Context, studioID int64) (*model.BookingPolicy, error) {
	query := `
		SELECT id, studio_id, min_lead_minutes, max_bookings_per_week, buffer_minutes,
		       auto_confirm, reschedule_window_hours, week_window_mode, cancellation_policy,
		       created_at, updated_at
		FROM booking_policies
		WHERE studio_id = $1
	`

	var pol model.BookingPolicy
	var tiers []byte

	err := r.db.QueryRow(ctx, query, studioID).Scan(
		&pol.ID,
		&pol.StudioID,
		&pol.MinLeadMinutes,
		&pol.MaxBookingsPerWeek,
		&pol.BufferMinutes,
		&pol.AutoConfirm,
		&pol.RescheduleWindowHours,
		&pol.WeekWindowMode,
		&tiers,
		&pol.CreatedAt,
		&pol.UpdatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking policy: %w", err)
	}

	if len(tiers) > 0 {
		if err := json.Unmarshal(tiers, &pol.CancellationPolicy); err != nil {
			return nil, fmt.Errorf("unmarshal cancellation policy: %w", err)
		}
	}

	return &pol, nil
}

// Upsert создаёт или обновляет политику студии
func (r *PolicyRepository) Upsert(ctx context.Context, pol *model.BookingPolicy) error {
	tiers, err := json.Marshal(pol.CancellationPolicy)
	if err != nil {
		return fmt.Errorf("marshal cancellation policy: %w", err)
	}

	query := `
		INSERT INTO booking_policies (studio_id, min_lead_minutes, max_bookings_per_week, buffer_minutes,
		                              auto_confirm, reschedule_window_hours, week_window_mode, cancellation_policy)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (studio_id)
		DO UPDATE SET min_lead_minutes = EXCLUDED.min_lead_minutes,
		              max_bookings_per_week = EXCLUDED.max_bookings_per_week,
		              buffer_minutes = EXCLUDED.buffer_minutes,
		              auto_confirm = EXCLUDED.auto_confirm,
		              reschedule_window_hours = EXCLUDED.reschedule_window_hours,
		              week_window_mode = EXCLUDED.week_window_mode,
		              cancellation_policy = EXCLUDED.cancellation_policy,
		              updated_at = now()
		RETURNING id, created_at, updated_at
	`

	err = r.db.QueryRow(
		ctx, query,
		pol.StudioID,
		pol.MinLeadMinutes,
		pol.MaxBookingsPerWeek,
		pol.BufferMinutes,
		pol.AutoConfirm,
		pol.RescheduleWindowHours,
		pol.WeekWindowMode,
		tiers,
	).Scan(&pol.ID, &pol.CreatedAt, &pol.UpdatedAt)

	if err != nil {
		return fmt.Errorf("upsert booking policy: %w", err)
	}

	return nil
}
