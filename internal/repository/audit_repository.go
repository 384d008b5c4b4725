package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonathanjackson-1/studio-scheduler/internal/model"
	"github.com/jonathanjackson-1/studio-scheduler/internal/repository/base"
)

// AuditRepository пишет журнал аудита. Запись best-effort:
// ошибку логирует вызывающая сторона, операция планирования не прерывается.
type AuditRepository struct {
	db base.Querier
}

func NewAuditRepository(db base.Querier) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record добавляет запись в журнал
func (r *AuditRepository) Record(ctx context.Context, entry *model.AuditEntry) error {
	delta, err := json.Marshal(entry.Delta)
	if err != nil {
		return fmt.Errorf("marshal audit delta: %w", err)
	}

	query := `
		INSERT INTO audit_log (studio_id, actor_id, entity, entity_id, action, delta)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err = r.db.QueryRow(
		ctx, query,
		entry.StudioID,
		entry.ActorID,
		entry.Entity,
		entry.EntityID,
		entry.Action,
		delta,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}

	return nil
}
