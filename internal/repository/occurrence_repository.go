package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathanjackson-1/studio-scheduler/internal/model"
	"github.com/jonathanjackson-1/studio-scheduler/internal/repository/base"
)

type OccurrenceRepository struct {
	db base.Querier
}

func NewOccurrenceRepository(db base.Querier) *OccurrenceRepository {
	return &OccurrenceRepository{db: db}
}

// Create создаёт материализованное вхождение
func (r *OccurrenceRepository) Create(ctx context.Context, occ *model.LessonOccurrence) error {
	query := `
		INSERT INTO lesson_occurrences (lesson_id, start_time, end_time, is_cancelled)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(
		ctx, query,
		occ.LessonID,
		occ.StartTime,
		occ.EndTime,
		occ.IsCancelled,
	).Scan(&occ.ID, &occ.CreatedAt)

	if err != nil {
		if base.IsUniqueViolation(err) {
			return fmt.Errorf("create occurrence: %w", model.ErrConflict)
		}
		return fmt.Errorf("create occurrence: %w", err)
	}

	return nil
}

// Exists проверяет, есть ли вхождение серии на указанное начало
func (r *OccurrenceRepository) Exists(ctx context.Context, lessonID int64, start time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM lesson_occurrences
			WHERE lesson_id = $1 AND start_time = $2
		)
	`

	var exists bool
	err := r.db.QueryRow(ctx, query, lessonID, start).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check occurrence exists: %w", err)
	}

	return exists, nil
}

// GetByLessonAndStart получает вхождение серии по времени начала.
// Неотменённая строка имеет приоритет; её отсутствие — признак того, что
// вхождение удерживается переговорами или отменено.
func (r *OccurrenceRepository) GetByLessonAndStart(ctx context.Context, lessonID int64, start time.Time) (*model.LessonOccurrence, error) {
	query := `
		SELECT id, lesson_id, start_time, end_time, is_cancelled, created_at
		FROM lesson_occurrences
		WHERE lesson_id = $1 AND start_time = $2
		ORDER BY is_cancelled, id DESC
		LIMIT 1
	`

	var occ model.LessonOccurrence
	err := r.db.QueryRow(ctx, query, lessonID, start).Scan(
		&occ.ID,
		&occ.LessonID,
		&occ.StartTime,
		&occ.EndTime,
		&occ.IsCancelled,
		&occ.CreatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get occurrence: %w", err)
	}

	return &occ, nil
}

// ListByStudent получает вхождения студента в диапазоне времени (по всем его сериям студии)
func (r *OccurrenceRepository) ListByStudent(ctx context.Context, studioID, studentID int64, from, to time.Time) ([]*model.LessonOccurrence, error) {
	query := `
		SELECT o.id, o.lesson_id, o.start_time, o.end_time, o.is_cancelled, o.created_at
		FROM lesson_occurrences o
		JOIN lessons l ON l.id = o.lesson_id
		WHERE l.studio_id = $1
		  AND l.student_id = $2
		  AND o.start_time >= $3
		  AND o.start_time < $4
		ORDER BY o.start_time
	`

	rows, err := r.db.Query(ctx, query, studioID, studentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list occurrences by student: %w", err)
	}
	defer rows.Close()

	var occurrences []*model.LessonOccurrence
	for rows.Next() {
		var occ model.LessonOccurrence
		err := rows.Scan(
			&occ.ID,
			&occ.LessonID,
			&occ.StartTime,
			&occ.EndTime,
			&occ.IsCancelled,
			&occ.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		occurrences = append(occurrences, &occ)
	}

	return occurrences, nil
}

// MarkCancelled помечает вхождение отменённым. Условное обновление:
// уже отменённая строка не трогается — конкурирующая операция проиграла.
func (r *OccurrenceRepository) MarkCancelled(ctx context.Context, id int64) error {
	query := `
		UPDATE lesson_occurrences
		SET is_cancelled = true
		WHERE id = $1 AND NOT is_cancelled
	`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark occurrence cancelled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark occurrence cancelled: %w", model.ErrConflict)
	}

	return nil
}

// Release снимает отметку отмены, возвращая вхождение в расписание
// на прежнее время (decline / истечение переговоров)
func (r *OccurrenceRepository) Release(ctx context.Context, id int64) error {
	query := `
		UPDATE lesson_occurrences
		SET is_cancelled = false
		WHERE id = $1 AND is_cancelled
	`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("release occurrence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("release occurrence: %w", model.ErrConflict)
	}

	return nil
}

// Reinstate возвращает удержанное вхождение в расписание на новое время (accept)
func (r *OccurrenceRepository) Reinstate(ctx context.Context, id int64, start, end time.Time) error {
	query := `
		UPDATE lesson_occurrences
		SET start_time = $2, end_time = $3, is_cancelled = false
		WHERE id = $1 AND is_cancelled
	`

	tag, err := r.db.Exec(ctx, query, id, start, end)
	if err != nil {
		return fmt.Errorf("reinstate occurrence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reinstate occurrence: %w", model.ErrConflict)
	}

	return nil
}
