package repository

import (
	"context"
	"fmt"

	"github.com/jonathanjackson-1/studio-scheduler/internal/model"
	"github.com/jonathanjackson-1/studio-scheduler/internal/repository/base"
)

type ExceptionRepository struct {
	db base.Querier
}

func NewExceptionRepository(db base.Querier) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Upsert создаёт или обновляет исключение по ключу (lesson_id, original_start).
// Повторный upsert той же отмены идемпотентен. Исключения не удаляются.
func (r *ExceptionRepository) Upsert(ctx context.Context, exc *model.LessonException) error {
	query := `
		INSERT INTO lesson_exceptions (lesson_id, original_start, type, new_start, new_end, note)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (lesson_id, original_start)
		DO UPDATE SET type = EXCLUDED.type,
		              new_start = EXCLUDED.new_start,
		              new_end = EXCLUDED.new_end,
		              note = EXCLUDED.note,
		              updated_at = now()
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		exc.LessonID,
		exc.OriginalStart,
		exc.Type,
		exc.NewStart,
		exc.NewEnd,
		exc.Note,
	).Scan(&exc.ID, &exc.CreatedAt, &exc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("upsert exception: %w", err)
	}

	return nil
}

// ListByLesson получает все исключения серии в порядке исходных дат
func (r *ExceptionRepository) ListByLesson(ctx context.Context, lessonID int64) ([]*model.LessonException, error) {
	query := `
		SELECT id, lesson_id, original_start, type, new_start, new_end, note, created_at, updated_at
		FROM lesson_exceptions
		WHERE lesson_id = $1
		ORDER BY original_start
	`

	rows, err := r.db.Query(ctx, query, lessonID)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	defer rows.Close()

	var exceptions []*model.LessonException
	for rows.Next() {
		var exc model.LessonException
		err := rows.Scan(
			&exc.ID,
			&exc.LessonID,
			&exc.OriginalStart,
			&exc.Type,
			&exc.NewStart,
			&exc.NewEnd,
			&exc.Note,
			&exc.CreatedAt,
			&exc.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan exception: %w", err)
		}
		exceptions = append(exceptions, &exc)
	}

	return exceptions, nil
}
