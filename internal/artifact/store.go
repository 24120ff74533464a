// Package artifact persists run results to SQLite so sweeps and single
// runs leave a durable, inspectable record.
package artifact

// #region imports
import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"trialmatch/internal/evaluation"
	"trialmatch/internal/model"
)

// #endregion

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS run_artifacts (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	config_id    TEXT NOT NULL,
	case_id      TEXT NOT NULL,
	created_at   TEXT NOT NULL,
	metrics      TEXT NOT NULL,
	ranked_list  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_run_artifacts_run    ON run_artifacts(run_id);
CREATE INDEX IF NOT EXISTS idx_run_artifacts_config ON run_artifacts(config_id, created_at);
`

// #endregion schema

// #region records

// RankedEntry is one row of the persisted ranking.
type RankedEntry struct {
	Rank          int     `json:"rank"`
	ID            string  `json:"id"`
	Score         float64 `json:"score"`
	IsGroundTruth bool    `json:"is_ground_truth"`
}

// Record is one persisted run artifact.
type Record struct {
	RunID     string
	ConfigID  string
	CaseID    string
	CreatedAt time.Time
	Metrics   evaluation.MetricSet
	Ranking   []RankedEntry
}

// #endregion records

// #region store

// Store writes and reads run artifacts.
type Store struct {
	db *sql.DB
}

// Open opens the artifact database and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion store

// #region write

// BuildRanking converts a ranked list into its persisted form, tagging
// each entry against the ground truth.
func BuildRanking(ranking *model.RankedList, truth model.GroundTruthSet) []RankedEntry {
	items := ranking.Items()
	out := make([]RankedEntry, len(items))
	for i, it := range items {
		out[i] = RankedEntry{
			Rank:          i + 1,
			ID:            it.ID,
			Score:         it.Score,
			IsGroundTruth: truth.Contains(it.ID),
		}
	}
	return out
}

// WriteRun persists one artifact record.
func (s *Store) WriteRun(rec Record) error {
	if rec.RunID == "" || rec.ConfigID == "" || rec.CaseID == "" {
		return fmt.Errorf("artifact record needs run_id, config_id and case_id")
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	metricsJSON, err := json.Marshal(rec.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	rankingJSON, err := json.Marshal(rec.Ranking)
	if err != nil {
		return fmt.Errorf("marshal ranking: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO run_artifacts (run_id, config_id, case_id, created_at, metrics, ranked_list)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.ConfigID, rec.CaseID,
		created.Format(time.RFC3339Nano), string(metricsJSON), string(rankingJSON),
	)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

// #endregion write

// #region read

// ListRuns returns the newest artifacts first, up to limit (0 = all).
func (s *Store) ListRuns(limit int) ([]Record, error) {
	query := `SELECT run_id, config_id, case_id, created_at, metrics, ranked_list
	          FROM run_artifacts ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryRecords(query, args...)
}

// ConfigHistory returns every artifact for one configuration, oldest
// first, so metric drift over time reads top to bottom.
func (s *Store) ConfigHistory(configID string) ([]Record, error) {
	return s.queryRecords(
		`SELECT run_id, config_id, case_id, created_at, metrics, ranked_list
		 FROM run_artifacts WHERE config_id = ? ORDER BY created_at ASC, id ASC`,
		configID,
	)
}

// RunRecords returns all artifacts written under one run ID.
func (s *Store) RunRecords(runID string) ([]Record, error) {
	return s.queryRecords(
		`SELECT run_id, config_id, case_id, created_at, metrics, ranked_list
		 FROM run_artifacts WHERE run_id = ? ORDER BY id ASC`,
		runID,
	)
}

func (s *Store) queryRecords(query string, args ...any) ([]Record, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var createdAt, metricsJSON, rankingJSON string
		if err := rows.Scan(&rec.RunID, &rec.ConfigID, &rec.CaseID, &createdAt, &metricsJSON, &rankingJSON); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if err := json.Unmarshal([]byte(metricsJSON), &rec.Metrics); err != nil {
			return nil, fmt.Errorf("unmarshal metrics: %w", err)
		}
		if err := json.Unmarshal([]byte(rankingJSON), &rec.Ranking); err != nil {
			return nil, fmt.Errorf("unmarshal ranking: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion read
