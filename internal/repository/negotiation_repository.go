package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathanjackson-1/studio-scheduler/internal/model"
	"github.com/jonathanjackson-1/studio-scheduler/internal/repository/base"
)

// NegotiationRepository управляет раундами переговоров о переносе.
// Частичный уникальный индекс (lesson_id, original_start) WHERE status='pending'
// гарантирует максимум один открытый раунд на вхождение.
type NegotiationRepository struct {
	db base.Querier
}

func NewNegotiationRepository(db base.Querier) *NegotiationRepository {
	return &NegotiationRepository{db: db}
}

// CreatePending создаёт открытый раунд. Если по этому вхождению раунд уже
// открыт, уникальный индекс вернёт конфликт — конкурирующий propose проиграл.
func (r *NegotiationRepository) CreatePending(ctx context.Context, n *model.RescheduleNegotiation) error {
	proposals, err := json.Marshal(n.Proposals)
	if err != nil {
		return fmt.Errorf("marshal proposals: %w", err)
	}

	query := `
		INSERT INTO reschedule_negotiations (id, studio_id, lesson_id, original_start, proposals, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRow(
		ctx, query,
		n.ID,
		n.StudioID,
		n.LessonID,
		n.OriginalStart,
		proposals,
		n.Status,
		n.ExpiresAt,
	).Scan(&n.CreatedAt, &n.UpdatedAt)

	if err != nil {
		if base.IsUniqueViolation(err) {
			return fmt.Errorf("create negotiation: %w", model.ErrConflict)
		}
		return fmt.Errorf("create negotiation: %w", err)
	}

	return nil
}

// GetPending получает открытый раунд по вхождению
func (r *NegotiationRepository) GetPending(ctx context.Context, lessonID int64, originalStart time.Time) (*model.RescheduleNegotiation, error) {
	query := `
		SELECT id, studio_id, lesson_id, original_start, proposals, status, expires_at, created_at, updated_at
		FROM reschedule_negotiations
		WHERE lesson_id = $1 AND original_start = $2 AND status = 'pending'
	`

	return r.scanOne(r.db.QueryRow(ctx, query, lessonID, originalStart))
}

// Finalize переводит открытый раунд в конечный статус. Условное обновление:
// раунд, уже закрытый конкурирующим вызовом, не перезаписывается.
func (r *NegotiationRepository) Finalize(ctx context.Context, id uuid.UUID, status model.NegotiationStatus) error {
	query := `
		UPDATE reschedule_negotiations
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`

	tag, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("finalize negotiation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finalize negotiation: %w", model.ErrConflict)
	}

	return nil
}

// ListExpired получает открытые раунды с истёкшим сроком
func (r *NegotiationRepository) ListExpired(ctx context.Context, now time.Time) ([]*model.RescheduleNegotiation, error) {
	query := `
		SELECT id, studio_id, lesson_id, original_start, proposals, status, expires_at, created_at, updated_at
		FROM reschedule_negotiations
		WHERE status = 'pending' AND expires_at < $1
		ORDER BY expires_at
	`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list expired negotiations: %w", err)
	}
	defer rows.Close()

	var negotiations []*model.RescheduleNegotiation
	for rows.Next() {
		n, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		negotiations = append(negotiations, n)
	}

	return negotiations, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *NegotiationRepository) scanOne(row rowScanner) (*model.RescheduleNegotiation, error) {
	var n model.RescheduleNegotiation
	var proposals []byte

	err := row.Scan(
		&n.ID,
		&n.StudioID,
		&n.LessonID,
		&n.OriginalStart,
		&proposals,
		&n.Status,
		&n.ExpiresAt,
		&n.CreatedAt,
		&n.UpdatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan negotiation: %w", err)
	}

	if err := json.Unmarshal(proposals, &n.Proposals); err != nil {
		return nil, fmt.Errorf("unmarshal proposals: %w", err)
	}

	return &n, nil
}
