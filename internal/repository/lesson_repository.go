package repository

import (
	"context"
	"fmt"

	"github.com/jonathanjackson-1/studio-scheduler/internal/model"
	"github.com/jonathanjackson-1/studio-scheduler/internal/repository/base"
)

type LessonRepository struct {
	db base.Querier
}

func NewLessonRepository(db base.Querier) *LessonRepository {
	return &LessonRepository{db: db}
}

// Create создаёт новую серию занятий
func (r *LessonRepository) Create(ctx context.Context, lesson *model.Lesson) error {
	query := `
		INSERT INTO lessons (studio_id, title, educator_id, student_id, start_at, end_at, recurrence_rule, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx, query,
		lesson.StudioID,
		lesson.Title,
		lesson.EducatorID,
		lesson.StudentID,
		lesson.Start,
		lesson.End,
		lesson.RecurrenceRule,
		lesson.IsActive,
	).Scan(&lesson.ID, &lesson.CreatedAt, &lesson.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}

	return nil
}

// GetByID получает серию по ID в рамках студии.
// Чужая студия выглядит как "не найдено" — никаких cross-tenant утечек.
func (r *LessonRepository) GetByID(ctx context.Context, studioID, lessonID int64) (*model.Lesson, error) {
	query := `
		SELECT id, studio_id, title, educator_id, student_id, start_at, end_at, recurrence_rule, is_active, created_at, updated_at
		FROM lessons
		WHERE id = $1 AND studio_id = $2
	`

	var lesson model.Lesson
	err := r.db.QueryRow(ctx, query, lessonID, studioID).Scan(
		&lesson.ID,
		&lesson.StudioID,
		&lesson.Title,
		&lesson.EducatorID,
		&lesson.StudentID,
		&lesson.Start,
		&lesson.End,
		&lesson.RecurrenceRule,
		&lesson.IsActive,
		&lesson.CreatedAt,
		&lesson.UpdatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lesson by id: %w", err)
	}

	return &lesson, nil
}

// ListActive получает все активные серии (для фоновой материализации)
func (r *LessonRepository) ListActive(ctx context.Context) ([]*model.Lesson, error) {
	query := `
		SELECT id, studio_id, title, educator_id, student_id, start_at, end_at, recurrence_rule, is_active, created_at, updated_at
		FROM lessons
		WHERE is_active
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active lessons: %w", err)
	}
	defer rows.Close()

	var lessons []*model.Lesson
	for rows.Next() {
		var lesson model.Lesson
		err := rows.Scan(
			&lesson.ID,
			&lesson.StudioID,
			&lesson.Title,
			&lesson.EducatorID,
			&lesson.StudentID,
			&lesson.Start,
			&lesson.End,
			&lesson.RecurrenceRule,
			&lesson.IsActive,
			&lesson.CreatedAt,
			&lesson.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, &lesson)
	}

	return lessons, nil
}

// Deactivate выключает серию (материализация её больше не трогает)
func (r *LessonRepository) Deactivate(ctx context.Context, studioID, lessonID int64) error {
	query := `
		UPDATE lessons
		SET is_active = false, updated_at = now()
		WHERE id = $1 AND studio_id = $2
	`

	tag, err := r.db.Exec(ctx, query, lessonID, studioID)
	if err != nil {
		return fmt.Errorf("deactivate lesson: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deactivate lesson: %w", model.ErrNotFound)
	}

	return nil
}
