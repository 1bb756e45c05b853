package workstore

import (
	"context"
	"database/sql"
	"fmt"
)

// Stats aggregates flag counts and byte totals for batch.
func (s *Store) Stats(ctx context.Context, batch string) (Stats, error) {
	ctx = ensureContext(ctx)
	var (
		stats               Stats
		inWork, transcoded  sql.NullInt64
		deleted, copied     sql.NullInt64
		removed, scanned    sql.NullInt64
		origBytes, dstBytes sql.NullInt64
	)
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1),
                SUM(in_work), SUM(transcoded), SUM(catalog_entry_deleted),
                SUM(file_copied), SUM(file_removed), SUM(scanned),
                SUM(CASE WHEN file_copied = 1 THEN orig_size_bytes ELSE 0 END),
                SUM(CASE WHEN file_copied = 1 THEN dst_size_bytes ELSE 0 END)
         FROM work_items WHERE batch = ?`, batch)
	if err := row.Scan(&stats.Total, &inWork, &transcoded, &deleted, &copied, &removed, &scanned, &origBytes, &dstBytes); err != nil {
		return Stats{}, fmt.Errorf("batch stats: %w", err)
	}
	stats.InWork = int(inWork.Int64)
	stats.Transcoded = int(transcoded.Int64)
	stats.CatalogEntryDeleted = int(deleted.Int64)
	stats.FileCopied = int(copied.Int64)
	stats.FileRemoved = int(removed.Int64)
	stats.Scanned = int(scanned.Int64)
	stats.OrigBytes = origBytes.Int64
	stats.DstBytes = dstBytes.Int64
	return stats, nil
}
