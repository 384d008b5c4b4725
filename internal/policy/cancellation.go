package policy

import (
	"sort"
	"time"

	"github.com/jonathanjackson-1/studio-scheduler/internal/model"
)

// CancellationOutcome — результат оценки отмены.
type CancellationOutcome struct {
	PenaltyPercent int     `json:"penalty_percent"`
	TierLabel      string  `json:"tier_label,omitempty"`
	Waived         bool    `json:"waived"`
	NoticeHours    float64 `json:"notice_hours"`
}

// EvaluateCancellation подбирает ступень штрафа по времени, оставшемуся до
// начала занятия. Действует первая (по возрастанию порога) ступень, чей порог
// не выполнен: notice < tier.MinNoticeHours. Если уведомление
// укладывается во все пороги — штрафа нет. waive принудительно обнуляет штраф
// (решение об авторизации принимает вызывающая сторона).
func EvaluateCancellation(
	now time.Time,
	occurrenceStart time.Time,
	tiers []model.CancellationTier,
	waive bool,
) *CancellationOutcome {
	notice := occurrenceStart.Sub(now)
	if notice < 0 {
		notice = 0
	}

	outcome := &CancellationOutcome{
		NoticeHours: notice.Hours(),
		Waived:      waive,
	}
	if waive {
		return outcome
	}

	// Ступени по возрастанию порога: первая с невыполненным порогом — самая строгая из применимых
	sorted := make([]model.CancellationTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinNoticeHours < sorted[j].MinNoticeHours
	})

	for _, tier := range sorted {
		if notice < time.Duration(tier.MinNoticeHours)*time.Hour {
			outcome.PenaltyPercent = tier.PenaltyPercent
			outcome.TierLabel = tier.Label
			return outcome
		}
	}

	return outcome
}
