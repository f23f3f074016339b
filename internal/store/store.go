package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"exam-quiz/internal/models"
)

// SnapshotKey is the key the quiz session snapshot is stored under. It
// mirrors the localStorage key used by the browser client.
const SnapshotKey = "exam_questions"

// SnapshotStore persists the full session snapshot. Save failures are
// non-fatal to callers: the in-memory session state always wins.
type SnapshotStore interface {
	// Load returns the stored snapshot, or ok=false when none exists.
	Load() (*models.Snapshot, bool, error)
	Save(snap *models.Snapshot) error
}

// SQLiteStore keeps snapshots as JSON blobs in the snapshots table.
type SQLiteStore struct {
	db  *sql.DB
	key string
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, key: SnapshotKey}
}

func (s *SQLiteStore) Load() (*models.Snapshot, bool, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM snapshots WHERE key = ?;`, s.key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, true, nil
}

func (s *SQLiteStore) Save(snap *models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if _, err := s.db.Exec(`
		INSERT INTO snapshots (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at;
	`, s.key, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
