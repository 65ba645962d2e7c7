package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/idea-scout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. All timestamps are
// written in UTC so that text comparison orders them correctly.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS evaluation_history (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	category             TEXT NOT NULL DEFAULT '',
	keyword              TEXT NOT NULL DEFAULT '',
	business_type        TEXT NOT NULL DEFAULT '',
	candidate            TEXT NOT NULL,
	market_score         INTEGER NOT NULL,
	revenue_score        INTEGER NOT NULL,
	total_score          REAL NOT NULL,
	recommendation       TEXT NOT NULL,
	discovery_batch      TEXT NOT NULL,
	saved_to_promoted    BOOLEAN NOT NULL DEFAULT 0,
	analysis_duration_ms INTEGER NOT NULL DEFAULT 0,
	analysis             TEXT,
	created_at           DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluation_history_created_at ON evaluation_history(created_at);

CREATE TABLE IF NOT EXISTS rejected_candidates (
	id              TEXT PRIMARY KEY,
	evaluation_id   TEXT NOT NULL UNIQUE REFERENCES evaluation_history(id),
	name            TEXT NOT NULL,
	category        TEXT NOT NULL DEFAULT '',
	keyword         TEXT NOT NULL DEFAULT '',
	total_score     REAL NOT NULL,
	market_score    INTEGER NOT NULL,
	revenue_score   INTEGER NOT NULL,
	failure_reason  TEXT NOT NULL,
	suggestions     TEXT NOT NULL DEFAULT '[]',
	discovery_batch TEXT NOT NULL,
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS promoted_plans (
	id                    TEXT PRIMARY KEY,
	name                  TEXT NOT NULL UNIQUE,
	category              TEXT NOT NULL DEFAULT '',
	description           TEXT NOT NULL DEFAULT '',
	revenue_model         TEXT NOT NULL DEFAULT '',
	projected_revenue_12m INTEGER NOT NULL DEFAULT 0,
	investment_required   INTEGER NOT NULL DEFAULT 0,
	risk_level            TEXT NOT NULL,
	priority              TEXT NOT NULL,
	status                TEXT NOT NULL,
	feasibility_score     REAL NOT NULL,
	total_score           REAL NOT NULL,
	market_score          INTEGER NOT NULL,
	revenue_score         INTEGER NOT NULL,
	keyword               TEXT NOT NULL DEFAULT '',
	discovery_batch       TEXT NOT NULL,
	details               TEXT,
	created_at            DATETIME NOT NULL,
	updated_at            DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	id           TEXT PRIMARY KEY,
	window_type  TEXT NOT NULL,
	window_start DATETIME NOT NULL,
	data         TEXT NOT NULL,
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS insights (
	id                TEXT PRIMARY KEY,
	type              TEXT NOT NULL,
	category          TEXT NOT NULL DEFAULT '',
	title             TEXT NOT NULL,
	description       TEXT NOT NULL,
	evidence          TEXT NOT NULL DEFAULT '{}',
	confidence_score  REAL NOT NULL,
	impact_level      TEXT NOT NULL,
	actionable        BOOLEAN NOT NULL DEFAULT 1,
	suggested_actions TEXT NOT NULL DEFAULT '[]',
	status            TEXT NOT NULL DEFAULT 'new',
	created_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_insights_status ON insights(status, created_at);

CREATE TABLE IF NOT EXISTS job_state (
	job         TEXT PRIMARY KEY,
	last_run_at DATETIME NOT NULL
);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertEvaluation(ctx context.Context, rec *model.EvaluationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	candidateJSON, err := json.Marshal(rec.Candidate)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal candidate")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO evaluation_history (id, name, category, keyword, business_type, candidate, market_score, revenue_score, total_score, recommendation, discovery_batch, saved_to_promoted, analysis_duration_ms, analysis, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Category, rec.Keyword, string(rec.BusinessType), string(candidateJSON),
		rec.MarketScore, rec.RevenueScore, rec.TotalScore, string(rec.Recommendation),
		rec.DiscoveryBatch, rec.SavedToPromoted, rec.AnalysisDurationMs, nullString(rec.Analysis), rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrDuplicateKey, "sqlite: insert evaluation %s", rec.ID)
		}
		return eris.Wrap(err, "sqlite: insert evaluation")
	}
	return nil
}

func (s *SQLiteStore) SetSavedToPromoted(ctx context.Context, id string, saved bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE evaluation_history SET saved_to_promoted = ? WHERE id = ?`, saved, id)
	if err != nil {
		return eris.Wrap(err, "sqlite: set saved to promoted")
	}
	return checkRowsAffected(res, "sqlite: evaluation", id)
}

func (s *SQLiteStore) ListEvaluationsSince(ctx context.Context, since time.Time) ([]model.EvaluationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, category, keyword, business_type, candidate, market_score, revenue_score, total_score, recommendation, discovery_batch, saved_to_promoted, analysis_duration_ms, analysis, created_at
		FROM evaluation_history WHERE created_at >= ? ORDER BY created_at DESC`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list evaluations")
	}
	defer rows.Close() //nolint:errcheck

	var recs []model.EvaluationRecord
	for rows.Next() {
		var r model.EvaluationRecord
		var candidateJSON string
		var analysisJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &r.Category, &r.Keyword, &r.BusinessType, &candidateJSON,
			&r.MarketScore, &r.RevenueScore, &r.TotalScore, &r.Recommendation, &r.DiscoveryBatch,
			&r.SavedToPromoted, &r.AnalysisDurationMs, &analysisJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan evaluation")
		}
		if err := json.Unmarshal([]byte(candidateJSON), &r.Candidate); err != nil {
			skipMalformed("evaluation_history", r.ID, err)
			continue
		}
		if analysisJSON.Valid {
			r.Analysis = json.RawMessage(analysisJSON.String)
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list evaluations iterate")
}

func (s *SQLiteStore) RecentNames(ctx context.Context, filter NameFilter) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM (SELECT name FROM evaluation_history WHERE created_at >= ? ORDER BY created_at DESC LIMIT ?)
		UNION
		SELECT name FROM (SELECT name FROM promoted_plans ORDER BY created_at DESC LIMIT ?)`,
		filter.Since.UTC(), filter.HistoryLimit, filter.PlanLimit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recent names")
	}
	defer rows.Close() //nolint:errcheck

	names := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan name")
		}
		names[name] = struct{}{}
	}
	return names, eris.Wrap(rows.Err(), "sqlite: recent names iterate")
}

func (s *SQLiteStore) InsertRejected(ctx context.Context, rc *model.RejectedCandidate) error {
	if rc.ID == "" {
		rc.ID = uuid.New().String()
	}
	if rc.CreatedAt.IsZero() {
		rc.CreatedAt = time.Now()
	}
	rc.CreatedAt = rc.CreatedAt.UTC()

	suggestionsJSON, err := json.Marshal(rc.Suggestions)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal suggestions")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rejected_candidates (id, evaluation_id, name, category, keyword, total_score, market_score, revenue_score, failure_reason, suggestions, discovery_batch, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rc.ID, rc.EvaluationID, rc.Name, rc.Category, rc.Keyword, rc.TotalScore,
		rc.MarketScore, rc.RevenueScore, string(rc.FailureReason), string(suggestionsJSON),
		rc.DiscoveryBatch, rc.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrDuplicateKey, "sqlite: insert rejected for evaluation %s", rc.EvaluationID)
		}
		return eris.Wrap(err, "sqlite: insert rejected")
	}
	return nil
}

func (s *SQLiteStore) ListRejectedSince(ctx context.Context, since time.Time) ([]model.RejectedCandidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, evaluation_id, name, category, keyword, total_score, market_score, revenue_score, failure_reason, suggestions, discovery_batch, created_at
		FROM rejected_candidates WHERE created_at >= ? ORDER BY created_at DESC`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rejected")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RejectedCandidate
	for rows.Next() {
		var rc model.RejectedCandidate
		var suggestionsJSON string
		if err := rows.Scan(&rc.ID, &rc.EvaluationID, &rc.Name, &rc.Category, &rc.Keyword, &rc.TotalScore,
			&rc.MarketScore, &rc.RevenueScore, &rc.FailureReason, &suggestionsJSON,
			&rc.DiscoveryBatch, &rc.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rejected")
		}
		if err := json.Unmarshal([]byte(suggestionsJSON), &rc.Suggestions); err != nil {
			skipMalformed("rejected_candidates", rc.ID, err)
			continue
		}
		out = append(out, rc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list rejected iterate")
}

// UpsertPromotedPlan looks the name up and then inserts or updates inside
// one transaction.
func (s *SQLiteStore) UpsertPromotedPlan(ctx context.Context, plan *model.PromotedPlan) (bool, error) {
	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	var existingID string
	var createdAt time.Time
	err = tx.QueryRowContext(ctx, `SELECT id, created_at FROM promoted_plans WHERE name = ?`, plan.Name).
		Scan(&existingID, &createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if plan.ID == "" {
			plan.ID = uuid.New().String()
		}
		if plan.CreatedAt.IsZero() {
			plan.CreatedAt = now
		}
		plan.CreatedAt = plan.CreatedAt.UTC()
		plan.UpdatedAt = now
		_, err = tx.ExecContext(ctx,
			`INSERT INTO promoted_plans (id, name, category, description, revenue_model, projected_revenue_12m, investment_required, risk_level, priority, status, feasibility_score, total_score, market_score, revenue_score, keyword, discovery_batch, details, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			plan.ID, plan.Name, plan.Category, plan.Description, string(plan.RevenueModel),
			plan.ProjectedRevenue12M, plan.InvestmentRequired, string(plan.RiskLevel), string(plan.Priority),
			string(plan.Status), plan.FeasibilityScore, plan.TotalScore, plan.MarketScore, plan.RevenueScore,
			plan.Keyword, plan.DiscoveryBatch, nullString(plan.Details), plan.CreatedAt, plan.UpdatedAt,
		)
		if err != nil {
			return false, eris.Wrapf(err, "sqlite: insert promoted plan %s", plan.Name)
		}
		return true, eris.Wrap(tx.Commit(), "sqlite: commit upsert")
	case err != nil:
		return false, eris.Wrapf(err, "sqlite: lookup promoted plan %s", plan.Name)
	}

	plan.ID = existingID
	plan.CreatedAt = createdAt
	plan.UpdatedAt = now
	res, err := tx.ExecContext(ctx,
		`UPDATE promoted_plans SET total_score = ?, market_score = ?, revenue_score = ?, feasibility_score = ?, priority = ?, risk_level = ?, status = ?, updated_at = ? WHERE id = ?`,
		plan.TotalScore, plan.MarketScore, plan.RevenueScore, plan.FeasibilityScore,
		string(plan.Priority), string(plan.RiskLevel), string(plan.Status), plan.UpdatedAt, existingID,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: update promoted plan %s", plan.Name)
	}
	if err := checkRowsAffected(res, "promoted plan", plan.Name); err != nil {
		return false, err
	}
	return false, eris.Wrap(tx.Commit(), "sqlite: commit upsert")
}

func (s *SQLiteStore) GetPromotedPlan(ctx context.Context, name string) (*model.PromotedPlan, error) {
	var p model.PromotedPlan
	var details sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, category, description, revenue_model, projected_revenue_12m, investment_required, risk_level, priority, status, feasibility_score, total_score, market_score, revenue_score, keyword, discovery_batch, details, created_at, updated_at
		FROM promoted_plans WHERE name = ?`,
		name,
	).Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.RevenueModel, &p.ProjectedRevenue12M,
		&p.InvestmentRequired, &p.RiskLevel, &p.Priority, &p.Status, &p.FeasibilityScore,
		&p.TotalScore, &p.MarketScore, &p.RevenueScore, &p.Keyword, &p.DiscoveryBatch,
		&details, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: promoted plan %s", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get promoted plan %s", name)
	}
	if details.Valid {
		p.Details = json.RawMessage(details.String)
	}
	return &p, nil
}

func (s *SQLiteStore) InsertSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}
	snap.CreatedAt = snap.CreatedAt.UTC()
	data, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, window_type, window_start, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		snap.ID, string(snap.WindowType), snap.WindowStart.UTC(), string(data), snap.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert snapshot")
}

func (s *SQLiteStore) InsertInsight(ctx context.Context, in *model.Insight) error {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	in.CreatedAt = in.CreatedAt.UTC()
	evidenceJSON, err := json.Marshal(in.Evidence)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evidence")
	}
	actionsJSON, err := json.Marshal(in.SuggestedActions)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal suggested actions")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO insights (id, type, category, title, description, evidence, confidence_score, impact_level, actionable, suggested_actions, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, string(in.Type), in.Category, in.Title, in.Description, string(evidenceJSON),
		in.ConfidenceScore, string(in.ImpactLevel), in.Actionable, string(actionsJSON),
		string(in.Status), in.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert insight")
}

func (s *SQLiteStore) ListInsights(ctx context.Context, filter InsightFilter) ([]model.Insight, error) {
	query := `SELECT id, type, category, title, description, evidence, confidence_score, impact_level, actionable, suggested_actions, status, created_at FROM insights WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultInsightLimit
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list insights")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Insight
	for rows.Next() {
		var in model.Insight
		var evidenceJSON, actionsJSON string
		if err := rows.Scan(&in.ID, &in.Type, &in.Category, &in.Title, &in.Description, &evidenceJSON,
			&in.ConfidenceScore, &in.ImpactLevel, &in.Actionable, &actionsJSON,
			&in.Status, &in.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan insight")
		}
		if err := unmarshalInsight(&in, []byte(evidenceJSON), []byte(actionsJSON)); err != nil {
			skipMalformed("insights", in.ID, err)
			continue
		}
		out = append(out, in)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list insights iterate")
}

func (s *SQLiteStore) GetLastRun(ctx context.Context, job string) (time.Time, error) {
	var at time.Time
	err := s.db.QueryRowContext(ctx, `SELECT last_run_at FROM job_state WHERE job = ?`, job).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "sqlite: get last run %s", job)
	}
	return at, nil
}

func (s *SQLiteStore) SetLastRun(ctx context.Context, job string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_state (job, last_run_at) VALUES (?, ?) ON CONFLICT (job) DO UPDATE SET last_run_at = excluded.last_run_at`,
		job, at.UTC(),
	)
	return eris.Wrapf(err, "sqlite: set last run %s", job)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func nullString(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}
