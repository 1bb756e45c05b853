package workstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AddQuarantine records a clip that cannot progress. An existing record for
// the same clip is left untouched; the return value reports whether a row
// was inserted.
func (s *Store) AddQuarantine(ctx context.Context, item QuarantineItem) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`INSERT OR IGNORE INTO quarantine (clip_id, payload, source_path, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		item.ClipID, item.Payload, item.SourcePath, item.Reason, timestamp(),
	)
	if err != nil {
		return false, fmt.Errorf("quarantine clip %d: %w", item.ClipID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// IsQuarantined reports whether clipID has a quarantine record.
func (s *Store) IsQuarantined(ctx context.Context, clipID int64) (bool, error) {
	ctx = ensureContext(ctx)
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM quarantine WHERE clip_id = ?`, clipID).Scan(&count); err != nil {
		return false, fmt.Errorf("check quarantine: %w", err)
	}
	return count > 0, nil
}

// GetQuarantine returns the quarantine record for clipID, or nil.
func (s *Store) GetQuarantine(ctx context.Context, clipID int64) (*QuarantineItem, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT clip_id, payload, source_path, reason, created_at FROM quarantine WHERE clip_id = ?`, clipID)
	item, err := scanQuarantine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get quarantine %d: %w", clipID, err)
	}
	return item, nil
}

// ListQuarantine returns all quarantine records in insertion order.
func (s *Store) ListQuarantine(ctx context.Context) ([]*QuarantineItem, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT clip_id, payload, source_path, reason, created_at FROM quarantine ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list quarantine: %w", err)
	}
	defer rows.Close()

	var items []*QuarantineItem
	for rows.Next() {
		item, err := scanQuarantine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quarantine: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// RemoveQuarantine deletes the record for clipID.
func (s *Store) RemoveQuarantine(ctx context.Context, clipID int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM quarantine WHERE clip_id = ?`, clipID)
	if err != nil {
		return false, fmt.Errorf("remove quarantine %d: %w", clipID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ClearQuarantine deletes every quarantine record.
func (s *Store) ClearQuarantine(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM quarantine`)
	if err != nil {
		return 0, fmt.Errorf("clear quarantine: %w", err)
	}
	return res.RowsAffected()
}

// ReconcileQuarantine removes quarantine records for clips that are fully
// complete in batch. It returns the number of records removed.
func (s *Store) ReconcileQuarantine(ctx context.Context, batch string) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM quarantine WHERE clip_id IN (
             SELECT clip_id FROM work_items
             WHERE batch = ? AND transcoded = 1 AND catalog_entry_deleted = 1
               AND file_copied = 1 AND file_removed = 1 AND scanned = 1)`,
		batch,
	)
	if err != nil {
		return 0, fmt.Errorf("reconcile quarantine: %w", err)
	}
	return res.RowsAffected()
}

func scanQuarantine(scanner interface{ Scan(dest ...any) error }) (*QuarantineItem, error) {
	var (
		item    QuarantineItem
		created string
	)
	if err := scanner.Scan(&item.ClipID, &item.Payload, &item.SourcePath, &item.Reason, &created); err != nil {
		return nil, err
	}
	if ts, err := parseTimeString(created); err == nil {
		item.CreatedAt = ts
	}
	return &item, nil
}
