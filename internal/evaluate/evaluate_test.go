package evaluate

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/idea-scout/internal/finance"
	"github.com/sells-group/idea-scout/internal/model"
	"github.com/sells-group/idea-scout/internal/scoring"
)

func newTestEvaluator(t *testing.T, rng scoring.Rand) *Evaluator {
	t.Helper()
	tables, err := scoring.DefaultTables()
	require.NoError(t, err)
	e, err := New(scoring.NewEngine(tables, rng), finance.NewSimulator(), DefaultThresholds())
	require.NoError(t, err)
	return e
}

func TestNew_Validation(t *testing.T) {
	tables, err := scoring.DefaultTables()
	require.NoError(t, err)
	engine := scoring.NewEngine(tables, nil)

	_, err = New(nil, finance.NewSimulator(), DefaultThresholds())
	assert.Error(t, err)

	_, err = New(engine, finance.NewSimulator(), Thresholds{RejectBelow: 80, PromoteAtOrAbove: 70})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid thresholds")

	_, err = New(engine, finance.NewSimulator(), Thresholds{RejectBelow: 65, PromoteAtOrAbove: 65})
	assert.NoError(t, err)
}

func TestTotalScore(t *testing.T) {
	assert.InDelta(t, 92.4, TotalScore(94, 90), 1e-9)
	assert.InDelta(t, 66.4, TotalScore(64, 70), 1e-9)
	assert.InDelta(t, 70.0, TotalScore(70, 70), 1e-9)
	assert.InDelta(t, 50.0, TotalScore(50, 30), 1e-9)
	assert.InDelta(t, 93.0, TotalScore(95, 90), 1e-9)
}

func TestThresholds_TierAndRoute(t *testing.T) {
	th := DefaultThresholds()

	tests := []struct {
		total float64
		tier  model.Recommendation
		route model.Route
	}{
		{total: 50, tier: model.RecommendNotRecommended, route: model.RouteRejected},
		{total: 59.99, tier: model.RecommendNotRecommended, route: model.RouteRejected},
		{total: 60, tier: model.RecommendFurther, route: model.RoutePromoted},
		{total: 69.99, tier: model.RecommendFurther, route: model.RoutePromoted},
		{total: 70, tier: model.RecommendImmediate, route: model.RoutePromoted},
		{total: 95, tier: model.RecommendImmediate, route: model.RoutePromoted},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.tier, th.Tier(tt.total), "tier for %v", tt.total)
		assert.Equal(t, tt.route, th.Route(tt.total), "route for %v", tt.total)
	}
}

func TestEvaluate_Promising(t *testing.T) {
	e := newTestEvaluator(t, nil)

	o, err := e.Evaluate(model.Candidate{
		Name:             "AI 회의록 자동화",
		ITType:           model.ITTypeSaaS,
		Domain:           "AI",
		TargetAudience:   "직장인",
		RevenueModels:    []string{"월정액 구독"},
		Pricing:          model.Pricing{Monthly: 29_000},
		TargetMarketSize: 10_000,
	})
	require.NoError(t, err)

	assert.Equal(t, 94, o.MarketScore)
	assert.Equal(t, 90, o.RevenueScore)
	assert.InDelta(t, 92.4, o.TotalScore, 1e-9)
	assert.Equal(t, model.RecommendImmediate, o.Recommendation)
	assert.Equal(t, "IT/Tech", o.Candidate.Category)

	raw, err := o.AnalysisJSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"market_score":94`)
	assert.Contains(t, string(raw), `"revenue_analysis"`)
}

func TestEvaluate_Weak(t *testing.T) {
	e := newTestEvaluator(t, nil)

	o, err := e.Evaluate(model.Candidate{
		Name:           "NFT 메타버스 갤러리",
		ITType:         model.ITTypeAgency,
		Domain:         "NFT",
		TargetAudience: "대학생",
		BusinessType:   model.BusinessAgency,
		RevenueModels:  []string{"광고 수익"},
	})
	require.NoError(t, err)

	assert.Equal(t, 50, o.MarketScore)
	assert.Equal(t, 30, o.RevenueScore)
	assert.InDelta(t, 50.0, o.TotalScore, 1e-9)
	assert.Equal(t, model.RecommendNotRecommended, o.Recommendation)
}

func TestEvaluate_InvalidCandidate(t *testing.T) {
	e := newTestEvaluator(t, nil)
	_, err := e.Evaluate(model.Candidate{Name: ""})
	assert.Error(t, err)
}

func TestEvaluate_TotalAlwaysInRange(t *testing.T) {
	e := newTestEvaluator(t, rand.New(rand.NewPCG(3, 4)))
	tables := e.engine.Tables()

	for _, it := range model.ITTypes {
		for _, d := range tables.Domains {
			for _, price := range []int64{0, 9_900, 99_000} {
				o, err := e.Evaluate(model.Candidate{
					Name:             d.Name + " " + string(it),
					ITType:           it,
					Domain:           d.Name,
					Pricing:          model.Pricing{Monthly: price},
					TargetMarketSize: 20_000,
				})
				require.NoError(t, err)
				require.GreaterOrEqual(t, o.TotalScore, 50.0)
				require.LessOrEqual(t, o.TotalScore, 95.0)
			}
		}
	}
}
