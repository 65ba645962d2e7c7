package aggregate

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-scout/internal/model"
)

// nearThreshold is the total score above which a rejected idea counts as
// close to passing.
const nearThreshold = 50

// DateRange is an inclusive pair of calendar dates.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// RejectionStats breaks down the rejected candidates of a period.
type RejectionStats struct {
	Total           int                         `json:"total_low_score"`
	AvgScore        float64                     `json:"avg_score"`
	ByReason        map[model.FailureReason]int `json:"failure_distribution"`
	ByCategory      []model.CategoryCount       `json:"category_failures"`
	ImprovementRate float64                     `json:"improvement_rate"` // % of rejections scoring >= 50
}

// HistoryStats summarises the evaluation history of the last days.
type HistoryStats struct {
	Days          int            `json:"days"`
	TotalAnalyzed int            `json:"total_analyzed"`
	TotalPromoted int            `json:"total_saved"`
	AvgScore      float64        `json:"avg_score"`
	Categories    int            `json:"categories"`
	DateRange     DateRange      `json:"date_range"`
	Rejections    RejectionStats `json:"rejections"`
}

// HistoryStats computes statistics over the last days of history.
func (s *Service) HistoryStats(ctx context.Context, days int) (*HistoryStats, error) {
	if days <= 0 {
		return nil, eris.Errorf("aggregate: days must be positive, got %d", days)
	}
	now := s.now().UTC()
	start := now.AddDate(0, 0, -days)

	records, err := s.store.ListEvaluationsSince(ctx, start)
	if err != nil {
		return nil, eris.Wrap(err, "aggregate: load history")
	}
	rejected, err := s.store.ListRejectedSince(ctx, start)
	if err != nil {
		return nil, eris.Wrap(err, "aggregate: load rejected candidates")
	}

	st := &HistoryStats{
		Days:          days,
		TotalAnalyzed: len(records),
		DateRange:     DateRange{Start: start.Format(time.DateOnly), End: now.Format(time.DateOnly)},
	}
	var score mean
	categories := map[string]struct{}{}
	for _, r := range records {
		if r.SavedToPromoted {
			st.TotalPromoted++
		}
		score.add(r.TotalScore)
		if r.Category != "" {
			categories[r.Category] = struct{}{}
		}
	}
	st.AvgScore = score.value()
	st.Categories = len(categories)
	st.Rejections = rejectionStats(rejected)
	return st, nil
}

func rejectionStats(rejected []model.RejectedCandidate) RejectionStats {
	rs := RejectionStats{Total: len(rejected), ByReason: map[model.FailureReason]int{}}
	if len(rejected) == 0 {
		return rs
	}

	var score mean
	near := 0
	byCategory := map[string]int{}
	for _, r := range rejected {
		score.add(r.TotalScore)
		if r.TotalScore >= nearThreshold {
			near++
		}
		reason := r.FailureReason
		if reason == "" {
			reason = "unknown"
		}
		rs.ByReason[reason]++
		cat := r.Category
		if cat == "" {
			cat = unknownCategory
		}
		byCategory[cat]++
	}
	rs.AvgScore = score.value()
	rs.ImprovementRate = math.Round(float64(near)/float64(len(rejected))*1000) / 10
	for _, kc := range ranked(byCategory, topCategories) {
		rs.ByCategory = append(rs.ByCategory, model.CategoryCount{Category: kc.key, Count: kc.count})
	}
	return rs
}
