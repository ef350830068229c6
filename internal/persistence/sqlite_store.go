package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bpwhelan/ASB-Auto-Subs/internal/jobs"
	"github.com/bpwhelan/ASB-Auto-Subs/internal/stitch"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.TranscriptionJob, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, source, dedupe_key, media_file, source_url, output_file, status, error,
		        units_total, units_done, units_failed, created_at, updated_at
		 FROM jobs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.TranscriptionJob, 0)
	for rows.Next() {
		var item jobs.TranscriptionJob
		var status, createdRaw, updatedRaw string
		if err := rows.Scan(
			&item.ID,
			&item.Source,
			&item.DedupeKey,
			&item.Payload.MediaFile,
			&item.Payload.SourceURL,
			&item.Payload.OutputFile,
			&status,
			&item.Error,
			&item.Progress.Total,
			&item.Progress.Done,
			&item.Progress.Failed,
			&createdRaw,
			&updatedRaw,
		); err != nil {
			return nil, err
		}
		item.Status = jobs.Status(status)
		if created, err := parseTimeString(createdRaw); err == nil {
			item.CreatedAt = created
		}
		if updated, err := parseTimeString(updatedRaw); err == nil {
			item.UpdatedAt = updated
		}
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}

func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.TranscriptionJob) error {
	if job == nil {
		return fmt.Errorf("job is nil")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (
			id, source, dedupe_key, media_file, source_url, output_file, status, error,
			units_total, units_done, units_failed, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source=excluded.source,
			dedupe_key=excluded.dedupe_key,
			media_file=excluded.media_file,
			source_url=excluded.source_url,
			output_file=excluded.output_file,
			status=excluded.status,
			error=excluded.error,
			units_total=excluded.units_total,
			units_done=excluded.units_done,
			units_failed=excluded.units_failed,
			updated_at=excluded.updated_at`,
		job.ID,
		job.Source,
		job.DedupeKey,
		job.Payload.MediaFile,
		job.Payload.SourceURL,
		job.Payload.OutputFile,
		string(job.Status),
		job.Error,
		job.Progress.Total,
		job.Progress.Done,
		job.Progress.Failed,
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
	)
	return err
}

func (s *SQLiteStore) SaveUnitCheckpoint(ctx context.Context, cp UnitCheckpoint) error {
	entriesJSON, err := json.Marshal(cp.Entries)
	if err != nil {
		return err
	}
	cursorJSON, err := json.Marshal(cp.Cursor)
	if err != nil {
		return err
	}
	updatedAt := cp.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO unit_checkpoints (job_id, unit_index, entries_json, cursor_json, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(job_id, unit_index) DO UPDATE SET
			entries_json=excluded.entries_json,
			cursor_json=excluded.cursor_json,
			updated_at=excluded.updated_at`,
		cp.JobID,
		cp.UnitIndex,
		string(entriesJSON),
		string(cursorJSON),
		formatTime(updatedAt),
	)
	return err
}

func (s *SQLiteStore) LoadUnitCheckpoints(ctx context.Context, jobID string) ([]UnitCheckpoint, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT job_id, unit_index, entries_json, cursor_json, updated_at
		 FROM unit_checkpoints
		 WHERE job_id = ?
		 ORDER BY unit_index ASC`,
		jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]UnitCheckpoint, 0)
	for rows.Next() {
		var item UnitCheckpoint
		var entriesJSON, cursorJSON, updatedRaw string
		if err := rows.Scan(&item.JobID, &item.UnitIndex, &entriesJSON, &cursorJSON, &updatedRaw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(entriesJSON), &item.Entries); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(cursorJSON), &item.Cursor); err != nil {
			return nil, err
		}
		if updated, err := parseTimeString(updatedRaw); err == nil {
			item.UpdatedAt = updated
		}
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// ResumePoint folds the stored checkpoints for a job into the combined
// entries so far, the cursor to continue from, and the index of the
// next unprocessed unit.
func (s *SQLiteStore) ResumePoint(ctx context.Context, jobID string) ([]stitch.Entry, stitch.Cursor, int, error) {
	cps, err := s.LoadUnitCheckpoints(ctx, jobID)
	if err != nil {
		return nil, stitch.Cursor{}, 0, err
	}
	if len(cps) == 0 {
		return nil, stitch.Cursor{}, 0, nil
	}

	var entries []stitch.Entry
	for _, cp := range cps {
		entries = append(entries, cp.Entries...)
	}
	last := cps[len(cps)-1]
	return entries, last.Cursor, last.UnitIndex + 1, nil
}

// DeleteJobData removes all data associated with a job (unit checkpoints).
func (s *SQLiteStore) DeleteJobData(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM unit_checkpoints WHERE job_id = ?`, jobID)
	return err
}

// Timestamps are stored as RFC3339Nano text so the rows stay readable with
// plain sqlite tooling.
func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
