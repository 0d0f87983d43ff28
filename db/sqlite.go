package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY,
        model_name VARCHAR(50),
        model_path TEXT,
        accuracy REAL,
        precision REAL,
        recall REAL,
        trained_at DATETIME,
        data_points INTEGER
    );
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY,
        request_id TEXT NOT NULL,
        source VARCHAR(20),
        row_index INTEGER,
        predicted_label INTEGER,
        probability REAL,
        timestamp DATETIME
    );
    CREATE TABLE IF NOT EXISTS batches (
        id TEXT PRIMARY KEY,
        filename TEXT,
        row_count INTEGER,
        healthy INTEGER,
        failures INTEGER,
        filled_columns TEXT,
        fallbacks INTEGER,
        scored_at DATETIME
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_request ON predictions(request_id);
`

// ErrNotInitialized is returned by the methods of a nil Store.
var ErrNotInitialized = errors.New("database not initialized")

// Store is the SQLite audit log of training runs and scoring requests.
type Store struct {
	db *sql.DB
}

// Open creates the database file and its tables if needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	database, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: database}, nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

type TrainingLog struct {
	ModelName  string    `json:"model_name"`
	ModelPath  string    `json:"model_path"`
	Accuracy   float64   `json:"accuracy"`
	Precision  float64   `json:"precision"`
	Recall     float64   `json:"recall"`
	TrainedAt  time.Time `json:"trained_at"`
	DataPoints int       `json:"data_points"`
}

func (s *Store) SaveTrainingLog(log TrainingLog) error {
	if s == nil {
		return ErrNotInitialized
	}
	_, err := s.db.Exec(`
        INSERT INTO training_log (model_name, model_path, accuracy, precision, recall, trained_at, data_points)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `, log.ModelName, log.ModelPath, log.Accuracy, log.Precision, log.Recall, log.TrainedAt.UTC(), log.DataPoints)
	return err
}

// LoadTrainingLog returns the most recent runs first.
func (s *Store) LoadTrainingLog(limit int) ([]TrainingLog, error) {
	if s == nil {
		return nil, ErrNotInitialized
	}
	rows, err := s.db.Query(`
        SELECT model_name, model_path, accuracy, precision, recall, trained_at, data_points
        FROM training_log
        ORDER BY trained_at DESC, id DESC
        LIMIT ?
    `, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		if err := rows.Scan(&log.ModelName, &log.ModelPath, &log.Accuracy, &log.Precision, &log.Recall, &log.TrainedAt, &log.DataPoints); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

// Prediction is one scored record of a request.
type Prediction struct {
	Label       int
	Probability *float64
}

// SavePredictions records the outcome of one request in a single transaction.
func (s *Store) SavePredictions(requestID, source string, predictions []Prediction) error {
	if s == nil {
		return ErrNotInitialized
	}
	if requestID == "" {
		return errors.New("request id required")
	}
	if len(predictions) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
        INSERT INTO predictions (request_id, source, row_index, predicted_label, probability, timestamp)
        VALUES (?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, p := range predictions {
		var probability sql.NullFloat64
		if p.Probability != nil {
			probability = sql.NullFloat64{Float64: *p.Probability, Valid: true}
		}
		if _, err := stmt.Exec(requestID, source, i, p.Label, probability, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CountPredictions returns the number of rows recorded for a request.
func (s *Store) CountPredictions(requestID string) (int, error) {
	if s == nil {
		return 0, ErrNotInitialized
	}
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM predictions WHERE request_id = ?`, requestID).Scan(&n)
	return n, err
}

// Batch summarizes one scored upload.
type Batch struct {
	ID            string    `json:"id"`
	Filename      string    `json:"filename"`
	Rows          int       `json:"rows"`
	Healthy       int       `json:"healthy"`
	Failures      int       `json:"failures"`
	FilledColumns []string  `json:"filled_columns"`
	Fallbacks     int       `json:"fallbacks"`
	ScoredAt      time.Time `json:"scored_at"`
}

func (s *Store) SaveBatch(b Batch) error {
	if s == nil {
		return ErrNotInitialized
	}
	_, err := s.db.Exec(`
        INSERT OR REPLACE INTO batches (id, filename, row_count, healthy, failures, filled_columns, fallbacks, scored_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `, b.ID, b.Filename, b.Rows, b.Healthy, b.Failures, strings.Join(b.FilledColumns, "\n"), b.Fallbacks, b.ScoredAt.UTC())
	return err
}

// RecentBatches returns the latest uploads first.
func (s *Store) RecentBatches(limit int) ([]Batch, error) {
	if s == nil {
		return nil, ErrNotInitialized
	}
	rows, err := s.db.Query(`
        SELECT id, filename, row_count, healthy, failures, filled_columns, fallbacks, scored_at
        FROM batches
        ORDER BY scored_at DESC
        LIMIT ?
    `, limitOrAll(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := make([]Batch, 0)
	for rows.Next() {
		var b Batch
		var filled string
		if err := rows.Scan(&b.ID, &b.Filename, &b.Rows, &b.Healthy, &b.Failures, &filled, &b.Fallbacks, &b.ScoredAt); err != nil {
			return nil, err
		}
		if filled != "" {
			b.FilledColumns = strings.Split(filled, "\n")
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
