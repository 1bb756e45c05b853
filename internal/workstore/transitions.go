package workstore

import (
	"context"
	"database/sql"
	"fmt"
)

// Claim atomically marks an item in-work. It returns false when another
// worker already holds it.
func (s *Store) Claim(ctx context.Context, batch string, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE work_items SET in_work = 1, updated_at = ? WHERE batch = ? AND id = ? AND in_work = 0`,
		timestamp(), batch, id,
	)
	if err != nil {
		return false, fmt.Errorf("claim %s/%d: %w", batch, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim rows affected: %w", err)
	}
	return affected == 1, nil
}

// Release clears the in-work marker.
func (s *Store) Release(ctx context.Context, batch string, id int64) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE work_items SET in_work = 0, updated_at = ? WHERE batch = ? AND id = ?`,
		timestamp(), batch, id,
	)
	if err != nil {
		return fmt.Errorf("release %s/%d: %w", batch, id, err)
	}
	return nil
}

// ReleaseInWork clears every in-work marker in batch and returns how many
// were cleared. Used by operators after a crash left items claimed.
func (s *Store) ReleaseInWork(ctx context.Context, batch string) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE work_items SET in_work = 0, updated_at = ? WHERE batch = ? AND in_work = 1`,
		timestamp(), batch,
	)
	if err != nil {
		return 0, fmt.Errorf("release in-work items: %w", err)
	}
	return res.RowsAffected()
}

// MarkTranscoded sets the transcoded flag.
func (s *Store) MarkTranscoded(ctx context.Context, batch string, id int64) error {
	return s.setFlag(ctx, batch, id, FlagTranscoded)
}

// MarkCatalogEntryDeleted sets the catalog_entry_deleted flag.
func (s *Store) MarkCatalogEntryDeleted(ctx context.Context, batch string, id int64) error {
	return s.setFlag(ctx, batch, id, FlagCatalogEntryDeleted)
}

// MarkFileCopied sets the file_copied flag and records the placed size.
func (s *Store) MarkFileCopied(ctx context.Context, batch string, id int64, dstSize int64) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE work_items SET file_copied = 1, dst_size_bytes = ?, updated_at = ? WHERE batch = ? AND id = ?`,
		dstSize, timestamp(), batch, id,
	)
	if err != nil {
		return fmt.Errorf("mark file_copied %s/%d: %w", batch, id, err)
	}
	return requireRow(res, batch, id)
}

// MarkFileRemoved sets the file_removed flag.
func (s *Store) MarkFileRemoved(ctx context.Context, batch string, id int64) error {
	return s.setFlag(ctx, batch, id, FlagFileRemoved)
}

// MarkScanned sets the scanned flag.
func (s *Store) MarkScanned(ctx context.Context, batch string, id int64) error {
	return s.setFlag(ctx, batch, id, FlagScanned)
}

// setFlag only ever writes 1; the schema trigger rejects any 1 -> 0 change.
// A missing item yields ErrNotFound.
func (s *Store) setFlag(ctx context.Context, batch string, id int64, flag Flag) error {
	column, ok := flagColumn(flag)
	if !ok {
		return fmt.Errorf("unknown flag %q", flag)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE work_items SET `+column+` = 1, updated_at = ? WHERE batch = ? AND id = ?`,
		timestamp(), batch, id,
	)
	if err != nil {
		return fmt.Errorf("mark %s %s/%d: %w", flag, batch, id, err)
	}
	return requireRow(res, batch, id)
}

func requireRow(res sql.Result, batch string, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %s/%d: %w", batch, id, ErrNotFound)
	}
	return nil
}

func flagColumn(flag Flag) (string, bool) {
	for _, known := range StageFlags {
		if known == flag {
			return string(flag), true
		}
	}
	return "", false
}
