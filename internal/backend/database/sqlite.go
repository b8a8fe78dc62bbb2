package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// migrations are applied in order on startup. Only additive changes are
// allowed; the schema_info row records the version the store was created at.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		original BLOB NOT NULL,
		processed BLOB,
		last_preset TEXT NOT NULL DEFAULT '',
		last_format TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_assets_updated_at ON assets (updated_at)`,
	`CREATE TABLE IF NOT EXISTS schema_info (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', '1')`,
}

type SQLiteStore struct {
	db *sql.DB
	// now is swapped out in tests that need deterministic timestamps.
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the SQLite database at the given
// connection string and applies the migrations.
func NewSQLiteStore(connectionString string) (AssetStore, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite handles one writer at a time; a single pooled connection also
	// keeps in-memory databases on the same underlying store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	for i, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, req SaveRequest) (string, error) {
	if req.Name == "" {
		return "", fmt.Errorf("asset name must not be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin save transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UnixMilli()

	existing := &AssetRecord{}
	var createdAt int64
	row := tx.QueryRowContext(ctx,
		`SELECT id, original, processed, last_preset, last_format, created_at
		 FROM assets WHERE name = ?`, req.Name)
	err = row.Scan(&existing.ID, &existing.Original, &existing.Processed,
		&existing.LastPreset, &existing.LastFormat, &createdAt)

	switch {
	case err == sql.ErrNoRows:
		if len(req.Original) == 0 {
			return "", fmt.Errorf("cannot create asset %q without original bytes", req.Name)
		}
		id := uuid.NewString()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO assets (id, name, original, processed, last_preset, last_format, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, req.Name, req.Original, nullableBlob(req.Processed),
			req.LastPreset, req.LastFormat, now, now)
		if err != nil {
			return "", fmt.Errorf("failed to insert asset %q: %w", req.Name, err)
		}
		if err := tx.Commit(); err != nil {
			return "", fmt.Errorf("failed to commit asset insert: %w", err)
		}
		return id, nil
	case err != nil:
		return "", fmt.Errorf("failed to look up asset %q: %w", req.Name, err)
	}

	// Monotonic merge: supplied fields win, everything else keeps its
	// previous value. CreatedAt never changes after the first save.
	merged := mergeRecord(existing, req)
	_, err = tx.ExecContext(ctx,
		`UPDATE assets
		 SET original = ?, processed = ?, last_preset = ?, last_format = ?, updated_at = ?
		 WHERE id = ?`,
		merged.Original, nullableBlob(merged.Processed),
		merged.LastPreset, merged.LastFormat, now, existing.ID)
	if err != nil {
		return "", fmt.Errorf("failed to update asset %q: %w", req.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit asset update: %w", err)
	}
	return existing.ID, nil
}

func mergeRecord(existing *AssetRecord, req SaveRequest) *AssetRecord {
	merged := &AssetRecord{
		Original:   existing.Original,
		Processed:  existing.Processed,
		LastPreset: existing.LastPreset,
		LastFormat: existing.LastFormat,
	}
	if len(req.Original) > 0 {
		merged.Original = req.Original
	}
	if len(req.Processed) > 0 {
		merged.Processed = req.Processed
	}
	if req.LastPreset != "" {
		merged.LastPreset = req.LastPreset
	}
	if req.LastFormat != "" {
		merged.LastFormat = req.LastFormat
	}
	return merged
}

// nullableBlob keeps absent derivatives as NULL rather than empty blobs so
// that "not yet processed" stays distinguishable in the schema.
func nullableBlob(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func (s *SQLiteStore) List(ctx context.Context) ([]*AssetRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, original, processed, last_preset, last_format, created_at, updated_at
		 FROM assets`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var records []*AssetRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assets: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*AssetRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, original, processed, last_preset, last_format, created_at, updated_at
		 FROM assets WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get asset %q: %w", id, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	if !rows.Next() {
		// Absent is a regular outcome, not an error.
		return nil, rows.Err()
	}
	return scanRecord(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*AssetRecord, error) {
	record := &AssetRecord{}
	var createdAt, updatedAt int64
	err := row.Scan(&record.ID, &record.Name, &record.Original, &record.Processed,
		&record.LastPreset, &record.LastFormat, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan asset row: %w", err)
	}
	record.CreatedAt = time.UnixMilli(createdAt)
	record.UpdatedAt = time.UnixMilli(updatedAt)
	return record, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete asset %q: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM assets`); err != nil {
		return fmt.Errorf("failed to clear assets: %w", err)
	}
	return nil
}

func (s *SQLiteStore) TotalBytes(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(LENGTH(original) + LENGTH(COALESCE(processed, x''))), 0) FROM assets`,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum asset sizes: %w", err)
	}
	return total, nil
}

func (s *SQLiteStore) SweepOlderThan(ctx context.Context, days int) (int, error) {
	cutoff := s.now().AddDate(0, 0, -days).UnixMilli()
	result, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep assets older than %d days: %w", days, err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count swept assets: %w", err)
	}
	return int(deleted), nil
}

func (s *SQLiteStore) Summary(ctx context.Context) (StorageSummary, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM assets`).Scan(&count); err != nil {
		return StorageSummary{}, fmt.Errorf("failed to count assets: %w", err)
	}
	total, err := s.TotalBytes(ctx)
	if err != nil {
		return StorageSummary{}, err
	}
	return StorageSummary{
		Count:         count,
		TotalBytes:    total,
		HumanReadable: humanReadableSize(total),
	}, nil
}
