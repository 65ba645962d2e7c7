package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/idea-scout/internal/db"
	"github.com/sells-group/idea-scout/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS evaluation_history (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	category             TEXT NOT NULL DEFAULT '',
	keyword              TEXT NOT NULL DEFAULT '',
	business_type        TEXT NOT NULL DEFAULT '',
	candidate            JSONB NOT NULL,
	market_score         INTEGER NOT NULL,
	revenue_score        INTEGER NOT NULL,
	total_score          DOUBLE PRECISION NOT NULL,
	recommendation       TEXT NOT NULL,
	discovery_batch      TEXT NOT NULL,
	saved_to_promoted    BOOLEAN NOT NULL DEFAULT false,
	analysis_duration_ms BIGINT NOT NULL DEFAULT 0,
	analysis             JSONB,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_evaluation_history_created_at ON evaluation_history(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_evaluation_history_batch ON evaluation_history(discovery_batch);

CREATE TABLE IF NOT EXISTS rejected_candidates (
	id              TEXT PRIMARY KEY,
	evaluation_id   TEXT NOT NULL UNIQUE REFERENCES evaluation_history(id),
	name            TEXT NOT NULL,
	category        TEXT NOT NULL DEFAULT '',
	keyword         TEXT NOT NULL DEFAULT '',
	total_score     DOUBLE PRECISION NOT NULL,
	market_score    INTEGER NOT NULL,
	revenue_score   INTEGER NOT NULL,
	failure_reason  TEXT NOT NULL,
	suggestions     JSONB NOT NULL DEFAULT '[]',
	discovery_batch TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_rejected_candidates_created_at ON rejected_candidates(created_at DESC);

CREATE TABLE IF NOT EXISTS promoted_plans (
	id                    TEXT PRIMARY KEY,
	name                  TEXT NOT NULL UNIQUE,
	category              TEXT NOT NULL DEFAULT '',
	description           TEXT NOT NULL DEFAULT '',
	revenue_model         TEXT NOT NULL DEFAULT '',
	projected_revenue_12m BIGINT NOT NULL DEFAULT 0,
	investment_required   BIGINT NOT NULL DEFAULT 0,
	risk_level            TEXT NOT NULL,
	priority              TEXT NOT NULL,
	status                TEXT NOT NULL,
	feasibility_score     DOUBLE PRECISION NOT NULL,
	total_score           DOUBLE PRECISION NOT NULL,
	market_score          INTEGER NOT NULL,
	revenue_score         INTEGER NOT NULL,
	keyword               TEXT NOT NULL DEFAULT '',
	discovery_batch       TEXT NOT NULL,
	details               JSONB,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_promoted_plans_created_at ON promoted_plans(created_at DESC);

CREATE TABLE IF NOT EXISTS snapshots (
	id           TEXT PRIMARY KEY,
	window_type  TEXT NOT NULL,
	window_start TIMESTAMPTZ NOT NULL,
	data         JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS insights (
	id                TEXT PRIMARY KEY,
	type              TEXT NOT NULL,
	category          TEXT NOT NULL DEFAULT '',
	title             TEXT NOT NULL,
	description       TEXT NOT NULL,
	evidence          JSONB NOT NULL DEFAULT '{}',
	confidence_score  DOUBLE PRECISION NOT NULL,
	impact_level      TEXT NOT NULL,
	actionable        BOOLEAN NOT NULL DEFAULT true,
	suggested_actions JSONB NOT NULL DEFAULT '[]',
	status            TEXT NOT NULL DEFAULT 'new',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_insights_status ON insights(status, created_at DESC);

CREATE TABLE IF NOT EXISTS job_state (
	job         TEXT PRIMARY KEY,
	last_run_at TIMESTAMPTZ NOT NULL
);
`

var (
	planColumns = []string{
		"id", "name", "category", "description", "revenue_model",
		"projected_revenue_12m", "investment_required", "risk_level", "priority",
		"status", "feasibility_score", "total_score", "market_score", "revenue_score",
		"keyword", "discovery_batch", "details", "created_at", "updated_at",
	}

	// Only scores and the tiers derived from them change on conflict; the
	// original plan content and creation time are kept.
	upsertPlanSQL = mustBuildUpsert(db.UpsertConfig{
		Table:        "promoted_plans",
		Columns:      planColumns,
		ConflictKeys: []string{"name"},
		UpdateCols: []string{
			"total_score", "market_score", "revenue_score", "feasibility_score",
			"priority", "risk_level", "status", "updated_at",
		},
		Returning: "id, created_at, (xmax = 0)",
	})

	setLastRunSQL = mustBuildUpsert(db.UpsertConfig{
		Table:        "job_state",
		Columns:      []string{"job", "last_run_at"},
		ConflictKeys: []string{"job"},
	})
)

func mustBuildUpsert(cfg db.UpsertConfig) string {
	sql, err := db.BuildUpsert(cfg)
	if err != nil {
		panic(err)
	}
	return sql
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Reconnect closes every idle pooled connection and marks checked-out ones
// for destruction, then verifies a fresh connection can be acquired.
func (s *PostgresStore) Reconnect(ctx context.Context) error {
	s.pool.Reset()
	return eris.Wrap(s.pool.Ping(ctx), "postgres: reconnect")
}

func (s *PostgresStore) InsertEvaluation(ctx context.Context, rec *model.EvaluationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	candidateJSON, err := json.Marshal(rec.Candidate)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal candidate")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO evaluation_history (id, name, category, keyword, business_type, candidate, market_score, revenue_score, total_score, recommendation, discovery_batch, saved_to_promoted, analysis_duration_ms, analysis, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rec.ID, rec.Name, rec.Category, rec.Keyword, string(rec.BusinessType), candidateJSON,
		rec.MarketScore, rec.RevenueScore, rec.TotalScore, string(rec.Recommendation),
		rec.DiscoveryBatch, rec.SavedToPromoted, rec.AnalysisDurationMs, nullJSON(rec.Analysis), rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrDuplicateKey, "postgres: insert evaluation %s", rec.ID)
		}
		return eris.Wrap(err, "postgres: insert evaluation")
	}
	return nil
}

func (s *PostgresStore) SetSavedToPromoted(ctx context.Context, id string, saved bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE evaluation_history SET saved_to_promoted = $2 WHERE id = $1`, id, saved)
	if err != nil {
		return eris.Wrap(err, "postgres: set saved to promoted")
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: evaluation %s", id)
	}
	return nil
}

func (s *PostgresStore) ListEvaluationsSince(ctx context.Context, since time.Time) ([]model.EvaluationRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, category, keyword, business_type, candidate, market_score, revenue_score, total_score, recommendation, discovery_batch, saved_to_promoted, analysis_duration_ms, analysis, created_at
		FROM evaluation_history WHERE created_at >= $1 ORDER BY created_at DESC`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list evaluations")
	}
	defer rows.Close()

	var recs []model.EvaluationRecord
	for rows.Next() {
		var r model.EvaluationRecord
		var candidateJSON, analysisJSON []byte
		if err := rows.Scan(&r.ID, &r.Name, &r.Category, &r.Keyword, &r.BusinessType, &candidateJSON,
			&r.MarketScore, &r.RevenueScore, &r.TotalScore, &r.Recommendation, &r.DiscoveryBatch,
			&r.SavedToPromoted, &r.AnalysisDurationMs, &analysisJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan evaluation")
		}
		if err := json.Unmarshal(candidateJSON, &r.Candidate); err != nil {
			skipMalformed("evaluation_history", r.ID, err)
			continue
		}
		r.Analysis = analysisJSON
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list evaluations iterate")
}

func (s *PostgresStore) RecentNames(ctx context.Context, filter NameFilter) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name FROM (SELECT name FROM evaluation_history WHERE created_at >= $1 ORDER BY created_at DESC LIMIT $2) h
		UNION
		SELECT name FROM (SELECT name FROM promoted_plans ORDER BY created_at DESC LIMIT $3) p`,
		filter.Since, filter.HistoryLimit, filter.PlanLimit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent names")
	}
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan name")
		}
		names[name] = struct{}{}
	}
	return names, eris.Wrap(rows.Err(), "postgres: recent names iterate")
}

func (s *PostgresStore) InsertRejected(ctx context.Context, rc *model.RejectedCandidate) error {
	if rc.ID == "" {
		rc.ID = uuid.New().String()
	}
	if rc.CreatedAt.IsZero() {
		rc.CreatedAt = time.Now().UTC()
	}

	suggestionsJSON, err := json.Marshal(rc.Suggestions)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal suggestions")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO rejected_candidates (id, evaluation_id, name, category, keyword, total_score, market_score, revenue_score, failure_reason, suggestions, discovery_batch, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rc.ID, rc.EvaluationID, rc.Name, rc.Category, rc.Keyword, rc.TotalScore,
		rc.MarketScore, rc.RevenueScore, string(rc.FailureReason), suggestionsJSON,
		rc.DiscoveryBatch, rc.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrDuplicateKey, "postgres: insert rejected for evaluation %s", rc.EvaluationID)
		}
		return eris.Wrap(err, "postgres: insert rejected")
	}
	return nil
}

func (s *PostgresStore) ListRejectedSince(ctx context.Context, since time.Time) ([]model.RejectedCandidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, evaluation_id, name, category, keyword, total_score, market_score, revenue_score, failure_reason, suggestions, discovery_batch, created_at
		FROM rejected_candidates WHERE created_at >= $1 ORDER BY created_at DESC`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rejected")
	}
	defer rows.Close()

	var out []model.RejectedCandidate
	for rows.Next() {
		var rc model.RejectedCandidate
		var suggestionsJSON []byte
		if err := rows.Scan(&rc.ID, &rc.EvaluationID, &rc.Name, &rc.Category, &rc.Keyword, &rc.TotalScore,
			&rc.MarketScore, &rc.RevenueScore, &rc.FailureReason, &suggestionsJSON,
			&rc.DiscoveryBatch, &rc.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rejected")
		}
		if err := json.Unmarshal(suggestionsJSON, &rc.Suggestions); err != nil {
			skipMalformed("rejected_candidates", rc.ID, err)
			continue
		}
		out = append(out, rc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list rejected iterate")
}

func (s *PostgresStore) UpsertPromotedPlan(ctx context.Context, plan *model.PromotedPlan) (bool, error) {
	now := time.Now().UTC()
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now

	var created bool
	err := s.pool.QueryRow(ctx, upsertPlanSQL,
		plan.ID, plan.Name, plan.Category, plan.Description, string(plan.RevenueModel),
		plan.ProjectedRevenue12M, plan.InvestmentRequired, string(plan.RiskLevel), string(plan.Priority),
		string(plan.Status), plan.FeasibilityScore, plan.TotalScore, plan.MarketScore, plan.RevenueScore,
		plan.Keyword, plan.DiscoveryBatch, nullJSON(plan.Details), plan.CreatedAt, plan.UpdatedAt,
	).Scan(&plan.ID, &plan.CreatedAt, &created)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: upsert promoted plan %s", plan.Name)
	}
	return created, nil
}

func (s *PostgresStore) GetPromotedPlan(ctx context.Context, name string) (*model.PromotedPlan, error) {
	var p model.PromotedPlan
	var details []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, category, description, revenue_model, projected_revenue_12m, investment_required, risk_level, priority, status, feasibility_score, total_score, market_score, revenue_score, keyword, discovery_batch, details, created_at, updated_at
		FROM promoted_plans WHERE name = $1`,
		name,
	).Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.RevenueModel, &p.ProjectedRevenue12M,
		&p.InvestmentRequired, &p.RiskLevel, &p.Priority, &p.Status, &p.FeasibilityScore,
		&p.TotalScore, &p.MarketScore, &p.RevenueScore, &p.Keyword, &p.DiscoveryBatch,
		&details, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: promoted plan %s", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get promoted plan %s", name)
	}
	p.Details = details
	return &p, nil
}

func (s *PostgresStore) InsertSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal snapshot")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO snapshots (id, window_type, window_start, data, created_at) VALUES ($1, $2, $3, $4, $5)`,
		snap.ID, string(snap.WindowType), snap.WindowStart, data, snap.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert snapshot")
}

func (s *PostgresStore) InsertInsight(ctx context.Context, in *model.Insight) error {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	evidenceJSON, err := json.Marshal(in.Evidence)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evidence")
	}
	actionsJSON, err := json.Marshal(in.SuggestedActions)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal suggested actions")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO insights (id, type, category, title, description, evidence, confidence_score, impact_level, actionable, suggested_actions, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		in.ID, string(in.Type), in.Category, in.Title, in.Description, evidenceJSON,
		in.ConfidenceScore, string(in.ImpactLevel), in.Actionable, actionsJSON,
		string(in.Status), in.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert insight")
}

func (s *PostgresStore) ListInsights(ctx context.Context, filter InsightFilter) ([]model.Insight, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultInsightLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, type, category, title, description, evidence, confidence_score, impact_level, actionable, suggested_actions, status, created_at
		FROM insights WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC LIMIT $2`,
		string(filter.Status), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list insights")
	}
	defer rows.Close()

	var out []model.Insight
	for rows.Next() {
		var in model.Insight
		var evidenceJSON, actionsJSON []byte
		if err := rows.Scan(&in.ID, &in.Type, &in.Category, &in.Title, &in.Description, &evidenceJSON,
			&in.ConfidenceScore, &in.ImpactLevel, &in.Actionable, &actionsJSON,
			&in.Status, &in.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan insight")
		}
		if err := unmarshalInsight(&in, evidenceJSON, actionsJSON); err != nil {
			skipMalformed("insights", in.ID, err)
			continue
		}
		out = append(out, in)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list insights iterate")
}

func (s *PostgresStore) GetLastRun(ctx context.Context, job string) (time.Time, error) {
	var at time.Time
	err := s.pool.QueryRow(ctx, `SELECT last_run_at FROM job_state WHERE job = $1`, job).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "postgres: get last run %s", job)
	}
	return at, nil
}

func (s *PostgresStore) SetLastRun(ctx context.Context, job string, at time.Time) error {
	_, err := s.pool.Exec(ctx, setLastRunSQL, job, at.UTC())
	return eris.Wrapf(err, "postgres: set last run %s", job)
}

// helpers

// nullJSON stores an empty payload as SQL NULL rather than invalid JSON.
func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func unmarshalInsight(in *model.Insight, evidence, actions []byte) error {
	if len(evidence) > 0 {
		if err := json.Unmarshal(evidence, &in.Evidence); err != nil {
			return eris.Wrap(err, "unmarshal evidence")
		}
	}
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &in.SuggestedActions); err != nil {
			return eris.Wrap(err, "unmarshal suggested actions")
		}
	}
	return nil
}

// skipMalformed logs a history row that cannot be decoded. Listing carries
// on without it.
func skipMalformed(table, id string, err error) {
	zap.L().Warn("store: skipping malformed row",
		zap.String("table", table),
		zap.String("id", id),
		zap.Error(err),
	)
}
