// Package negotiation реализует протокол переноса занятия:
// propose -> accept/decline. Здесь только чистые переходы состояния,
// персистентность и side effects — забота сервисного слоя.
package negotiation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathanjackson-1/studio-scheduler/internal/model"
)

// Slot — кандидатное окно переноса.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Propose собирает новый раунд переговоров по вхождению occ.
// Валидирует кандидатные слоты и состояние вхождения; сам раунд ещё
// не персистирован и эксклюзивность не гарантирует.
func Propose(
	occ *model.LessonOccurrence,
	slots []Slot,
	now time.Time,
	window time.Duration,
) (*model.RescheduleNegotiation, error) {
	if occ.IsCancelled {
		return nil, fmt.Errorf("%w: occurrence is cancelled or already held", model.ErrInvalidState)
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: at least one candidate slot is required", model.ErrValidation)
	}

	proposals := make([]model.RescheduleProposal, 0, len(slots))
	for _, slot := range slots {
		if !slot.End.After(slot.Start) {
			return nil, fmt.Errorf("%w: candidate slot end must be after start", model.ErrValidation)
		}
		if !slot.Start.After(now) {
			return nil, fmt.Errorf("%w: candidate slot %s is in the past",
				model.ErrValidation, slot.Start.Format(time.RFC3339))
		}
		proposals = append(proposals, model.RescheduleProposal{
			ID:        uuid.New(),
			StartTime: slot.Start,
			EndTime:   slot.End,
		})
	}

	return &model.RescheduleNegotiation{
		ID:            uuid.New(),
		LessonID:      occ.LessonID,
		OriginalStart: occ.StartTime,
		Proposals:     proposals,
		Status:        model.NegotiationPending,
		ExpiresAt:     now.Add(window),
	}, nil
}

// Accept выбирает предложение из открытого раунда. Возвращает выбранный
// слот; применение его к вхождению делает вызывающая сторона.
func Accept(n *model.RescheduleNegotiation, proposalID uuid.UUID) (*model.RescheduleProposal, error) {
	if !n.IsPending() {
		return nil, fmt.Errorf("%w: negotiation is %s, not pending", model.ErrInvalidState, n.Status)
	}
	proposal := n.FindProposal(proposalID)
	if proposal == nil {
		return nil, fmt.Errorf("%w: proposal %s", model.ErrNotFound, proposalID)
	}
	return proposal, nil
}

// Decline закрывает открытый раунд без выбора предложения.
func Decline(n *model.RescheduleNegotiation) error {
	if !n.IsPending() {
		return fmt.Errorf("%w: negotiation is %s, not pending", model.ErrInvalidState, n.Status)
	}
	return nil
}
