package usecase

import (
	"math"
	"sort"

	"github.com/kirillkom/cottonlog/internal/core/domain"
)

// Summarize derives the workbench totals from a session snapshot.
func Summarize(session *domain.Session) domain.SessionSummary {
	lot, number := domain.PeekNext(session.Config)
	summary := domain.SessionSummary{
		SessionID:  session.ID,
		Mode:       session.Mode,
		Total:      len(session.Bales),
		Duplicates: DuplicateCount(session.Bales),
		NextLot:    lot,
		NextNumber: number,
	}

	var last *domain.Bale
	for i := range session.Bales {
		b := session.Bales[i]
		if b.Weight != nil {
			summary.TotalWeight += *b.Weight
		}
		if b.Status != domain.BaleStatusCompleted {
			summary.Pending++
			continue
		}
		summary.Completed++
		if b.ScannedAt != nil && (last == nil || b.ScannedAt.After(*last.ScannedAt)) {
			last = &session.Bales[i]
		}
	}

	// Manual sessions only hold completed bales, so they are either empty or done.
	denominator := summary.Total
	if session.Mode == domain.SessionModeManual {
		denominator = summary.Completed
	}
	if denominator > 0 {
		summary.Progress = int(math.Round(float64(summary.Completed) * 100 / float64(denominator)))
	}
	if last != nil {
		clone := last.Clone()
		summary.LastScanned = &clone
	}
	return summary
}

// CompletedBales lists completed bales, most recently scanned first.
func CompletedBales(session *domain.Session) []domain.Bale {
	out := make([]domain.Bale, 0, len(session.Bales))
	for _, b := range session.Bales {
		if b.Status == domain.BaleStatusCompleted {
			out = append(out, b.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return scannedAtUnix(out[i]) > scannedAtUnix(out[j])
	})
	return out
}

func scannedAtUnix(b domain.Bale) int64 {
	if b.ScannedAt == nil {
		return 0
	}
	return b.ScannedAt.UnixNano()
}
