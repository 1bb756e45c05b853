package workstore

import (
	"time"

	"arcmigrate/internal/payload"
)

// Flag names a monotonic stage flag.
type Flag string

const (
	FlagTranscoded          Flag = "transcoded"
	FlagCatalogEntryDeleted Flag = "catalog_entry_deleted"
	FlagFileCopied          Flag = "file_copied"
	FlagFileRemoved         Flag = "file_removed"
	FlagScanned             Flag = "scanned"
)

// StageFlags lists the stage flags in their required order.
var StageFlags = []Flag{
	FlagTranscoded,
	FlagCatalogEntryDeleted,
	FlagFileCopied,
	FlagFileRemoved,
	FlagScanned,
}

// Batch modes.
const (
	ModeMain   = "main"
	ModeHelper = "helper"
)

// Batch is one migration run's candidate set, named by its cut-off date.
type Batch struct {
	Name      string
	Mode      string
	CacheID   string
	CreatedAt time.Time
}

// WorkItem is one migration candidate.
type WorkItem struct {
	Batch               string
	ID                  int64
	InWork              bool
	Transcoded          bool
	CatalogEntryDeleted bool
	FileCopied          bool
	FileRemoved         bool
	Scanned             bool
	Payload             string
	DurationSeconds     float64
	OrigSizeBytes       int64
	DstSizeBytes        int64
	SourcePath          string
	CapturedAt          string
	ClipID              int64
	UpdatedAt           time.Time
}

// Has reports whether the given flag is set.
func (w *WorkItem) Has(flag Flag) bool {
	switch flag {
	case FlagTranscoded:
		return w.Transcoded
	case FlagCatalogEntryDeleted:
		return w.CatalogEntryDeleted
	case FlagFileCopied:
		return w.FileCopied
	case FlagFileRemoved:
		return w.FileRemoved
	case FlagScanned:
		return w.Scanned
	default:
		return false
	}
}

// Complete reports whether every stage flag is set.
func (w *WorkItem) Complete() bool {
	for _, flag := range StageFlags {
		if !w.Has(flag) {
			return false
		}
	}
	return true
}

// FirstUnmet returns the earliest stage flag still false.
func (w *WorkItem) FirstUnmet() (Flag, bool) {
	for _, flag := range StageFlags {
		if !w.Has(flag) {
			return flag, true
		}
	}
	return "", false
}

// Envelope decodes the stored catalog record.
func (w *WorkItem) Envelope() (*payload.Envelope, error) {
	return payload.Parse([]byte(w.Payload))
}

// NewItem carries the fields recorded when an item joins a batch.
type NewItem struct {
	Payload         string
	DurationSeconds float64
	OrigSizeBytes   int64
	SourcePath      string
	CapturedAt      string
	ClipID          int64
}

// QuarantineItem records an item that cannot currently progress.
type QuarantineItem struct {
	ClipID     int64
	Payload    string
	SourcePath string
	Reason     string
	CreatedAt  time.Time
}

// PathAlias maps a stale logical directory to its recovered location.
type PathAlias struct {
	OriginalDirectory  string
	PhysicalDirectory  string
	SanitizedDirectory string
	CreatedAt          time.Time
}

// Stats summarizes one batch.
type Stats struct {
	Total               int
	InWork              int
	Transcoded          int
	CatalogEntryDeleted int
	FileCopied          int
	FileRemoved         int
	Scanned             int
	OrigBytes           int64
	DstBytes            int64
}

// Count returns the number of items with flag set.
func (s Stats) Count(flag Flag) int {
	switch flag {
	case FlagTranscoded:
		return s.Transcoded
	case FlagCatalogEntryDeleted:
		return s.CatalogEntryDeleted
	case FlagFileCopied:
		return s.FileCopied
	case FlagFileRemoved:
		return s.FileRemoved
	case FlagScanned:
		return s.Scanned
	default:
		return 0
	}
}

// NotDone returns the number of items with flag unset.
func (s Stats) NotDone(flag Flag) int {
	return s.Total - s.Count(flag)
}

// SavedBytes is the space reclaimed by the batch so far.
func (s Stats) SavedBytes() int64 {
	return s.OrigBytes - s.DstBytes
}

// Succeeded reports batch success: every item scanned.
func (s Stats) Succeeded() bool {
	return s.Scanned == s.Total
}
