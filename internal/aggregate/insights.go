package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/idea-scout/internal/model"
)

// GenerateInsights applies the insight rules to the last Window of history
// and persists every insight that fires. Each rule yields at most one
// insight per call.
func (s *Service) GenerateInsights(ctx context.Context) ([]model.Insight, error) {
	now := s.now().UTC()
	records, err := s.store.ListEvaluationsSince(ctx, now.Add(-s.cfg.Window))
	if err != nil {
		return nil, eris.Wrap(err, "aggregate: load insight history")
	}

	insights := Derive(s.cfg, records, now)
	for i := range insights {
		if err := s.store.InsertInsight(ctx, &insights[i]); err != nil {
			return insights[:i], eris.Wrapf(err, "aggregate: save %s insight", insights[i].Type)
		}
	}
	if len(insights) > 0 {
		zap.L().Info("aggregate: insights generated", zap.Int("count", len(insights)))
	}
	return insights, nil
}

// Derive evaluates the three independent rules over records:
//   - trend: a category with at least MinHigh records scoring >= HighScore
//   - warning: a category with at least MinLow records scoring < LowScore
//   - opportunity: at least MinPromoted records saved to the promoted store
//
// When several categories qualify, the one with the most matching records
// wins, ties broken by name.
func Derive(cfg Config, records []model.EvaluationRecord, now time.Time) []model.Insight {
	cfg = cfg.withDefaults()

	high := map[string]int{}
	low := map[string]int{}
	promoted := 0
	for _, r := range records {
		switch {
		case r.TotalScore >= cfg.HighScore:
			high[categoryOf(r)]++
		case r.TotalScore > 0 && r.TotalScore < cfg.LowScore:
			low[categoryOf(r)]++
		}
		if r.SavedToPromoted {
			promoted++
		}
	}

	var out []model.Insight
	if top := ranked(high, 1); len(top) == 1 && top[0].count >= cfg.MinHigh {
		cat, n := top[0].key, top[0].count
		out = append(out, model.Insight{
			Type:        model.InsightTrend,
			Category:    cat,
			Title:       fmt.Sprintf("Rising category: %s", cat),
			Description: fmt.Sprintf("%d ideas in %s scored %.0f or higher in the last %s.", n, cat, cfg.HighScore, cfg.Window),
			Evidence: map[string]any{
				"high_score_count": n,
				"category":         cat,
				"threshold":        cfg.HighScore,
			},
			ConfidenceScore: 0.9,
			ImpactLevel:     model.ImpactHigh,
			SuggestedActions: []string{
				fmt.Sprintf("Explore more ideas in %s", cat),
				"Compare the top scorers for shared traits",
				"Fast-track an MVP for the best candidate",
			},
		})
	}

	if top := ranked(low, 1); len(top) == 1 && top[0].count >= cfg.MinLow {
		cat, n := top[0].key, top[0].count
		out = append(out, model.Insight{
			Type:        model.InsightWarning,
			Category:    cat,
			Title:       fmt.Sprintf("Weak category: %s", cat),
			Description: fmt.Sprintf("%d ideas in %s scored below %.0f in the last %s.", n, cat, cfg.LowScore, cfg.Window),
			Evidence: map[string]any{
				"low_score_count": n,
				"category":        cat,
				"threshold":       cfg.LowScore,
			},
			ConfidenceScore: 0.8,
			ImpactLevel:     model.ImpactMedium,
			SuggestedActions: []string{
				fmt.Sprintf("Deprioritise %s in idea generation", cat),
				"Review the rejection reasons for this category",
			},
		})
	}

	if promoted >= cfg.MinPromoted {
		out = append(out, model.Insight{
			Type:        model.InsightOpportunity,
			Title:       "Strong discovery period",
			Description: fmt.Sprintf("%d ideas were promoted in the last %s.", promoted, cfg.Window),
			Evidence: map[string]any{
				"saved_count": promoted,
			},
			ConfidenceScore: 0.95,
			ImpactLevel:     model.ImpactHigh,
			SuggestedActions: []string{
				"Review the promoted plans",
				"Pick the top candidates for validation",
				"Allocate budget to the highest priority plan",
			},
		})
	}

	for i := range out {
		out[i].Actionable = true
		out[i].Status = model.InsightNew
		out[i].CreatedAt = now
	}
	return out
}
