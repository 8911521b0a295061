package jobs

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists job records in a SQLite database under the data dir, so
// finished scans survive a restart even though live tracking state does not.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger
	dbPath string
}

// OpenStore opens or creates the job database at <dataDir>/jobs.db.
func OpenStore(dataDir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "jobs.db")

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open job database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	store := &Store{conn: conn, logger: logger, dbPath: dbPath}
	if err := store.initializeSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize job schema: %w", err)
	}

	return store, nil
}

func (s *Store) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS scans (
			id TEXT PRIMARY KEY,
			locator TEXT NOT NULL,
			stage TEXT NOT NULL,
			created_at TEXT NOT NULL,
			completed_at TEXT,
			error TEXT,
			winner TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_scans_stage ON scans(stage);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// CreateRecord inserts a record for a freshly submitted job.
func (s *Store) CreateRecord(id, locator string) error {
	_, err := s.conn.Exec(`
		INSERT INTO scans (id, locator, stage, created_at)
		VALUES (?, ?, ?, ?)
	`, id, locator, string(StageInit), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to create job record: %w", err)
	}

	s.logger.Debug("recorded job", "jobId", id, "locator", locator)
	return nil
}

// FinishRecord marks a job terminal with its outcome. winnerJSON may be
// empty when the job failed or found nothing.
func (s *Store) FinishRecord(id string, stage Stage, winnerJSON, errMsg string) error {
	result, err := s.conn.Exec(`
		UPDATE scans SET stage = ?, completed_at = ?, error = ?, winner = ?
		WHERE id = ?
	`, string(stage), time.Now().UTC().Format(time.RFC3339),
		nullString(errMsg), nullString(winnerJSON), id)
	if err != nil {
		return fmt.Errorf("failed to finish job record: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("job record not found: %s", id)
	}
	return nil
}

// GetRecord retrieves one job record; nil means not found.
func (s *Store) GetRecord(id string) (*Record, error) {
	row := s.conn.QueryRow(`
		SELECT id, locator, stage, created_at, completed_at, error, winner
		FROM scans WHERE id = ?
	`, id)

	var rec Record
	var stage, createdAt string
	var completedAt, errMsg, winner sql.NullString

	err := row.Scan(&rec.ID, &rec.Locator, &stage, &createdAt, &completedAt, &errMsg, &winner)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job record: %w", err)
	}

	rec.Stage = Stage(stage)
	rec.Error = errMsg.String
	rec.WinnerJSON = winner.String
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = t
	}
	if completedAt.Valid {
		if t, err := time.Parse(time.RFC3339, completedAt.String); err == nil {
			rec.CompletedAt = &t
		}
	}

	return &rec, nil
}

// ListRecords returns the most recent records, newest first.
func (s *Store) ListRecords(limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.conn.Query(`
		SELECT id, locator, stage, created_at, completed_at, error, winner
		FROM scans ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list job records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var rec Record
		var stage, createdAt string
		var completedAt, errMsg, winner sql.NullString

		if err := rows.Scan(&rec.ID, &rec.Locator, &stage, &createdAt, &completedAt, &errMsg, &winner); err != nil {
			return nil, fmt.Errorf("failed to scan job record row: %w", err)
		}

		rec.Stage = Stage(stage)
		rec.Error = errMsg.String
		rec.WinnerJSON = winner.String
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			rec.CreatedAt = t
		}
		if completedAt.Valid {
			if t, err := time.Parse(time.RFC3339, completedAt.String); err == nil {
				rec.CompletedAt = &t
			}
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// CleanupOld removes terminal records completed before the retention window.
func (s *Store) CleanupOld(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339)

	result, err := s.conn.Exec(`
		DELETE FROM scans
		WHERE stage IN (?, ?) AND completed_at < ?
	`, string(StageComplete), string(StageError), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up job records: %w", err)
	}

	return result.RowsAffected()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
