package model

import (
	"time"

	"github.com/google/uuid"
)

type NegotiationStatus string

const (
	NegotiationPending  NegotiationStatus = "pending"
	NegotiationAccepted NegotiationStatus = "accepted"
	NegotiationDeclined NegotiationStatus = "declined"
	NegotiationExpired  NegotiationStatus = "expired"
)

// RescheduleProposal — один кандидатный слот в рамках раунда переговоров.
// Отдельно не персистится, сериализуется в JSONB переговоров.
type RescheduleProposal struct {
	ID        uuid.UUID `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// RescheduleNegotiation — раунд переговоров о переносе одного вхождения.
// Ключ — (LessonID, OriginalStart); одновременно открыт максимум один раунд.
// Записи никогда не удаляются (audit trail).
type RescheduleNegotiation struct {
	ID            uuid.UUID            `json:"id"`
	StudioID      int64                `json:"studio_id"` // денормализовано с серии: аудит истечения не должен терять студию
	LessonID      int64                `json:"lesson_id"`
	OriginalStart time.Time            `json:"original_start"`
	Proposals     []RescheduleProposal `json:"proposals"`
	Status        NegotiationStatus    `json:"status"`
	ExpiresAt     time.Time            `json:"expires_at"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// IsPending проверяет, что раунд ещё открыт.
func (n *RescheduleNegotiation) IsPending() bool {
	return n.Status == NegotiationPending
}

// FindProposal ищет предложение по идентификатору.
func (n *RescheduleNegotiation) FindProposal(id uuid.UUID) *RescheduleProposal {
	for i := range n.Proposals {
		if n.Proposals[i].ID == id {
			return &n.Proposals[i]
		}
	}
	return nil
}
