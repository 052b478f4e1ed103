package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Index mirrors audit records into a modernc.org/sqlite table so
// state.get_stats and operator queries can filter by actor, action, or
// outcome without scanning the JSONL files. The JSONL log remains the
// durable source of truth; the index is a rebuildable accelerator.
type Index struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	action TEXT NOT NULL,
	actor TEXT NOT NULL,
	armed_mode INTEGER NOT NULL,
	params_hash TEXT NOT NULL,
	before_snapshot_id TEXT,
	result_artifact_id TEXT,
	outcome TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_records(action);
CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_records(actor);
CREATE INDEX IF NOT EXISTS idx_audit_outcome ON audit_records(outcome);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_records(timestamp);
`

// OpenIndex opens (creating if needed) the sqlite index file at path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open index: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: create schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Insert mirrors one record into the index.
func (idx *Index) Insert(rec Record) error {
	_, err := idx.db.Exec(
		`INSERT INTO audit_records
			(timestamp, action, actor, armed_mode, params_hash, before_snapshot_id, result_artifact_id, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.Action,
		rec.Actor,
		boolToInt(rec.ArmedMode),
		rec.ParamsHash,
		rec.BeforeSnapshotID,
		rec.ResultArtifactID,
		string(rec.Outcome),
	)
	if err != nil {
		return fmt.Errorf("audit: insert record: %w", err)
	}
	return nil
}

// Query filters Recent below.
type Query struct {
	Action  string
	Actor   string
	Outcome Outcome
	Since   time.Time
	Limit   int
}

// Recent returns the most recent records matching q, newest first.
func (idx *Index) Recent(q Query) ([]Record, error) {
	where := "1=1"
	args := []interface{}{}
	if q.Action != "" {
		where += " AND action = ?"
		args = append(args, q.Action)
	}
	if q.Actor != "" {
		where += " AND actor = ?"
		args = append(args, q.Actor)
	}
	if q.Outcome != "" {
		where += " AND outcome = ?"
		args = append(args, string(q.Outcome))
	}
	if !q.Since.IsZero() {
		where += " AND timestamp >= ?"
		args = append(args, q.Since.UTC().Format(time.RFC3339Nano))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := idx.db.Query(
		fmt.Sprintf(`SELECT timestamp, action, actor, armed_mode, params_hash, before_snapshot_id, result_artifact_id, outcome
		             FROM audit_records WHERE %s ORDER BY id DESC LIMIT ?`, where),
		append(args, limit)...,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var ts string
		var armed int
		var before, resultArtifact sql.NullString
		if err := rows.Scan(&ts, &rec.Action, &rec.Actor, &armed, &rec.ParamsHash, &before, &resultArtifact, &rec.Outcome); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("audit: parse timestamp: %w", err)
		}
		rec.Timestamp = parsed
		rec.ArmedMode = armed != 0
		rec.BeforeSnapshotID = before.String
		rec.ResultArtifactID = resultArtifact.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountByOutcome returns how many records at or after since have each outcome,
// the aggregate state.get_stats needs.
func (idx *Index) CountByOutcome(since time.Time) (map[Outcome]int, error) {
	rows, err := idx.db.Query(
		`SELECT outcome, COUNT(*) FROM audit_records WHERE timestamp >= ? GROUP BY outcome`,
		since.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("audit: count by outcome: %w", err)
	}
	defer rows.Close()

	counts := make(map[Outcome]int)
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("audit: scan count: %w", err)
		}
		counts[Outcome(outcome)] = count
	}
	return counts, rows.Err()
}

// Close releases the underlying database handle.
func (idx *Index) Close() error {
	return idx.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
