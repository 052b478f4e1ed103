// Package audit is Mission Control's append-only audit trail: one JSONL
// file per UTC day, plus a modernc.org/sqlite index for the query paths
// (state.get_stats and friends) that want to filter by actor, action, or
// outcome without scanning every line. The teacher's events package has
// no audit log at all; this package follows its sqlite-store idiom
// (internal/events/store.go) applied to a new purpose.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Outcome is the result of a gated action, recorded on every audit line.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeBlocked Outcome = "blocked"
)

// Record is one append-only audit line (spec.md §4.A).
type Record struct {
	Timestamp         time.Time `json:"timestamp"`
	Action            string    `json:"action"`
	Actor             string    `json:"actor"`
	ArmedMode         bool      `json:"armedMode"`
	ParamsHash        string    `json:"paramsHash"`
	BeforeSnapshotID  string    `json:"beforeSnapshotId,omitempty"`
	ResultArtifactID  string    `json:"resultArtifactId,omitempty"`
	Outcome           Outcome   `json:"outcome"`
}

// HashParams canonicalizes params to JSON and returns its sha256 hex
// digest, so two calls with equivalent arguments hash identically.
func HashParams(params map[string]interface{}) (string, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("audit: marshal params: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Log is the append-only writer: one file per UTC day, rotated
// automatically as the day rolls over.
type Log struct {
	mu      sync.Mutex
	dir     string
	day     string
	file    *os.File
	indexer *Index // optional; nil disables the sqlite mirror
}

// NewLog opens (creating if needed) the audit directory. If index is
// non-nil, every appended record is also mirrored into it.
func NewLog(dir string, index *Index) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}
	return &Log{dir: dir, indexer: index}, nil
}

// Append writes one record as a JSON line, rotating to a new day's file
// if the UTC date has changed since the last append.
func (l *Log) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	day := rec.Timestamp.UTC().Format("2006-01-02")
	if l.file == nil || day != l.day {
		if l.file != nil {
			l.file.Close()
		}
		path := filepath.Join(l.dir, fmt.Sprintf("audit_%s.jsonl", day))
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("audit: open %s: %w", path, err)
		}
		l.file = f
		l.day = day
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("audit: marshal record: %w", err)
	}
	line = append(line, '\n')
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("audit: write record: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("audit: sync: %w", err)
	}

	if l.indexer != nil {
		if err := l.indexer.Insert(rec); err != nil {
			return fmt.Errorf("audit: index record: %w", err)
		}
	}
	return nil
}

// Close releases the currently open day file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
