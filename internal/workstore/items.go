package workstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateBatch records a new batch. Creating an existing batch is a no-op.
func (s *Store) CreateBatch(ctx context.Context, name, mode, cacheID string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("batch name required")
	}
	if mode == "" {
		mode = ModeMain
	}
	_, err := s.execWithRetry(ctx,
		`INSERT OR IGNORE INTO batches (name, mode, cache_id, created_at) VALUES (?, ?, ?, ?)`,
		name, mode, nullableString(cacheID), timestamp(),
	)
	if err != nil {
		return fmt.Errorf("create batch %s: %w", name, err)
	}
	return nil
}

// LatestBatch returns the most recent batch by name (names are ISO dates).
func (s *Store) LatestBatch(ctx context.Context) (*Batch, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT name, mode, cache_id, created_at FROM batches ORDER BY name DESC LIMIT 1`)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest batch: %w", err)
	}
	return batch, nil
}

// BatchExists reports whether name has been recorded.
func (s *Store) BatchExists(ctx context.Context, name string) (bool, error) {
	ctx = ensureContext(ctx)
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM batches WHERE name = ?`, name).Scan(&count); err != nil {
		return false, fmt.Errorf("batch exists: %w", err)
	}
	return count > 0, nil
}

// ListBatches returns all batches, newest first.
func (s *Store) ListBatches(ctx context.Context) ([]*Batch, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, mode, cache_id, created_at FROM batches ORDER BY name DESC`)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

func scanBatch(scanner interface{ Scan(dest ...any) error }) (*Batch, error) {
	var (
		batch   Batch
		cacheID sql.NullString
		created string
	)
	if err := scanner.Scan(&batch.Name, &batch.Mode, &cacheID, &created); err != nil {
		return nil, err
	}
	batch.CacheID = cacheID.String
	if ts, err := parseTimeString(created); err == nil {
		batch.CreatedAt = ts
	}
	return &batch, nil
}

// AddItem appends an item to batch and returns its dense 1-based id.
func (s *Store) AddItem(ctx context.Context, batch string, item NewItem) (int64, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var maxID sql.NullInt64
		if err := tx.QueryRowContext(ctx, `SELECT MAX(id) FROM work_items WHERE batch = ?`, batch).Scan(&maxID); err != nil {
			return err
		}
		id = maxID.Int64 + 1
		_, err := tx.ExecContext(ctx,
			`INSERT INTO work_items (batch, id, payload, duration_seconds, orig_size_bytes, source_path, captured_at, clip_id, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			batch, id, item.Payload, item.DurationSeconds, item.OrigSizeBytes,
			item.SourcePath, item.CapturedAt, item.ClipID, timestamp(),
		)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("add item to %s: %w", batch, err)
	}
	return id, nil
}

// UpdateSource rewrites the stored record and source path after the item's
// file was found at a different location. Only untranscoded items change.
func (s *Store) UpdateSource(ctx context.Context, batch string, id int64, payload, sourcePath string) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE work_items SET payload = ?, source_path = ?, updated_at = ?
         WHERE batch = ? AND id = ? AND transcoded = 0`,
		payload, sourcePath, timestamp(), batch, id,
	)
	if err != nil {
		return fmt.Errorf("update source %s/%d: %w", batch, id, err)
	}
	return nil
}

// Get fetches a single item, returning (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, batch string, id int64) (*WorkItem, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM work_items WHERE batch = ? AND id = ?`, batch, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s/%d: %w", batch, id, err)
	}
	return item, nil
}

// Count returns the number of items in batch.
func (s *Store) Count(ctx context.Context, batch string) (int64, error) {
	ctx = ensureContext(ctx)
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM work_items WHERE batch = ?`, batch).Scan(&count); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return count, nil
}

// MaxID returns the highest item id in batch, or zero when empty.
func (s *Store) MaxID(ctx context.Context, batch string) (int64, error) {
	ctx = ensureContext(ctx)
	var maxID sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM work_items WHERE batch = ?`, batch).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("max item id: %w", err)
	}
	return maxID.Int64, nil
}

// List returns every item in batch ordered by id.
func (s *Store) List(ctx context.Context, batch string) ([]*WorkItem, error) {
	return s.queryItems(ctx, `SELECT `+itemColumns+` FROM work_items WHERE batch = ? ORDER BY id`, batch)
}

// ListIncomplete returns the items of batch that still miss a stage flag.
func (s *Store) ListIncomplete(ctx context.Context, batch string) ([]*WorkItem, error) {
	return s.queryItems(ctx,
		`SELECT `+itemColumns+` FROM work_items
         WHERE batch = ? AND (transcoded = 0 OR catalog_entry_deleted = 0 OR file_copied = 0 OR file_removed = 0 OR scanned = 0)
         ORDER BY id`, batch)
}

// ListInWork returns the items of batch currently claimed by a worker.
func (s *Store) ListInWork(ctx context.Context, batch string) ([]*WorkItem, error) {
	return s.queryItems(ctx, `SELECT `+itemColumns+` FROM work_items WHERE batch = ? AND in_work = 1 ORDER BY id`, batch)
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]*WorkItem, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []*WorkItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
