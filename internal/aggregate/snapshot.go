package aggregate

import (
	"cmp"
	"context"
	"math"
	"slices"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/idea-scout/internal/model"
)

const (
	topCandidates   = 10
	topKeywords     = 10
	topCategories   = 5
	unknownCategory = "Unknown"
)

// Snapshot aggregates the records of the window ending now and persists the
// result. It returns nil without writing when the window is empty.
func (s *Service) Snapshot(ctx context.Context, window model.WindowType) (*model.Snapshot, error) {
	d, err := window.Duration()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	start := now.Add(-d)

	records, err := s.store.ListEvaluationsSince(ctx, start)
	if err != nil {
		return nil, eris.Wrapf(err, "aggregate: load %s history", window)
	}
	snap := BuildSnapshot(window, start, records)
	if snap == nil {
		zap.L().Debug("aggregate: empty snapshot window", zap.String("window", string(window)))
		return nil, nil
	}
	snap.CreatedAt = now
	if err := s.store.InsertSnapshot(ctx, snap); err != nil {
		return nil, eris.Wrapf(err, "aggregate: save %s snapshot", window)
	}
	zap.L().Info("aggregate: snapshot created",
		zap.String("window", string(window)),
		zap.Int("total_analyzed", snap.TotalAnalyzed),
		zap.Float64("avg_total_score", snap.AvgTotalScore),
	)
	return snap, nil
}

// BuildSnapshot computes a snapshot over records. It returns nil for no
// records. Averages skip zero scores and the band counts always sum to the
// record count.
func BuildSnapshot(window model.WindowType, start time.Time, records []model.EvaluationRecord) *model.Snapshot {
	if len(records) == 0 {
		return nil
	}

	snap := &model.Snapshot{
		WindowType:           window,
		WindowStart:          start,
		TotalAnalyzed:        len(records),
		CategoryDistribution: map[string]int{},
		ScoreDistribution:    map[model.ScoreBand]int{},
	}
	for _, b := range model.ScoreBands {
		snap.ScoreDistribution[b] = 0
	}

	var total, market, revenue mean
	keywords := map[string]int{}
	for _, r := range records {
		if r.SavedToPromoted {
			snap.TotalSaved++
		}
		total.add(r.TotalScore)
		market.add(float64(r.MarketScore))
		revenue.add(float64(r.RevenueScore))

		snap.CategoryDistribution[categoryOf(r)]++
		snap.ScoreDistribution[model.BandFor(r.TotalScore)]++
		if r.Keyword != "" {
			keywords[r.Keyword]++
		}
	}
	snap.AvgTotalScore = total.value()
	snap.AvgMarketScore = market.value()
	snap.AvgRevenueScore = revenue.value()

	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b model.EvaluationRecord) int {
		return cmp.Compare(b.TotalScore, a.TotalScore)
	})
	for _, r := range sorted[:min(topCandidates, len(sorted))] {
		snap.TopCandidates = append(snap.TopCandidates, model.TopEntry{
			Name:         r.Name,
			Category:     r.Category,
			Score:        r.TotalScore,
			MarketScore:  r.MarketScore,
			RevenueScore: r.RevenueScore,
		})
	}

	for _, kc := range ranked(keywords, topKeywords) {
		snap.TrendingKeywords = append(snap.TrendingKeywords, model.KeywordCount{Keyword: kc.key, Count: kc.count})
	}
	for _, kc := range ranked(snap.CategoryDistribution, topCategories) {
		snap.TrendingCategories = append(snap.TrendingCategories, model.CategoryCount{Category: kc.key, Count: kc.count})
	}
	return snap
}

func categoryOf(r model.EvaluationRecord) string {
	if r.Category == "" {
		return unknownCategory
	}
	return r.Category
}

// mean averages non-zero values.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	if v == 0 {
		return
	}
	m.sum += v
	m.n++
}

func (m mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return round2(m.sum / float64(m.n))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type keyCount struct {
	key   string
	count int
}

// ranked returns the n most frequent keys, ties broken by key.
func ranked(counts map[string]int, n int) []keyCount {
	out := make([]keyCount, 0, len(counts))
	for k, c := range counts {
		out = append(out, keyCount{key: k, count: c})
	}
	slices.SortFunc(out, func(a, b keyCount) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})
	return out[:min(n, len(out))]
}
