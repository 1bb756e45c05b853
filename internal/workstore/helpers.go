package workstore

import (
	"database/sql"
	"errors"
	"time"
)

const itemColumns = "batch, id, in_work, transcoded, catalog_entry_deleted, file_copied, file_removed, scanned, payload, duration_seconds, orig_size_bytes, dst_size_bytes, source_path, captured_at, clip_id, updated_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*WorkItem, error) {
	var (
		item                                      WorkItem
		inWork, transcoded, deleted, copied       int64
		removed, scanned                          int64
		duration                                  sql.NullFloat64
		origSize, dstSize                         sql.NullInt64
		sourcePath, capturedAt, updatedRaw, batch sql.NullString
	)
	if err := scanner.Scan(
		&batch,
		&item.ID,
		&inWork,
		&transcoded,
		&deleted,
		&copied,
		&removed,
		&scanned,
		&item.Payload,
		&duration,
		&origSize,
		&dstSize,
		&sourcePath,
		&capturedAt,
		&item.ClipID,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	item.Batch = batch.String
	item.InWork = inWork != 0
	item.Transcoded = transcoded != 0
	item.CatalogEntryDeleted = deleted != 0
	item.FileCopied = copied != 0
	item.FileRemoved = removed != 0
	item.Scanned = scanned != 0
	item.DurationSeconds = duration.Float64
	item.OrigSizeBytes = origSize.Int64
	item.DstSizeBytes = dstSize.Int64
	item.SourcePath = sourcePath.String
	item.CapturedAt = capturedAt.String
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return &item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
