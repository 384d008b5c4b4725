package model

import "errors"

// Базовые ошибки ядра планирования. Проверяются через errors.Is,
// конкретика добавляется обёртками fmt.Errorf("...: %w", ...).
var (
	// ErrNotFound — сущность не найдена (или принадлежит другой студии)
	ErrNotFound = errors.New("not found")
	// ErrValidation — нарушение политики или некорректные входные данные
	ErrValidation = errors.New("validation failed")
	// ErrConflict — конкурирующая операция уже изменила состояние
	ErrConflict = errors.New("conflict")
	// ErrInvalidState — операция неприменима к текущему состоянию сущности
	ErrInvalidState = errors.New("invalid state")
)
