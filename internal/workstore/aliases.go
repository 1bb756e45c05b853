package workstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// LookupAlias returns the alias recorded for originalDir, or nil.
func (s *Store) LookupAlias(ctx context.Context, originalDir string) (*PathAlias, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT original_directory, physical_directory, sanitized_directory, created_at
         FROM path_aliases WHERE original_directory = ?`, originalDir)
	alias, err := scanAlias(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup alias %q: %w", originalDir, err)
	}
	return alias, nil
}

// SaveAlias records alias unless one already exists for its original
// directory, and returns the stored record. Aliases are never overwritten.
func (s *Store) SaveAlias(ctx context.Context, alias PathAlias) (*PathAlias, error) {
	_, err := s.execWithRetry(ctx,
		`INSERT OR IGNORE INTO path_aliases (original_directory, physical_directory, sanitized_directory, created_at)
         VALUES (?, ?, ?, ?)`,
		alias.OriginalDirectory, alias.PhysicalDirectory, alias.SanitizedDirectory, timestamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("save alias %q: %w", alias.OriginalDirectory, err)
	}
	return s.LookupAlias(ctx, alias.OriginalDirectory)
}

// ListAliases returns every alias ordered by original directory.
func (s *Store) ListAliases(ctx context.Context) ([]*PathAlias, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT original_directory, physical_directory, sanitized_directory, created_at
         FROM path_aliases ORDER BY original_directory`)
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	var aliases []*PathAlias
	for rows.Next() {
		alias, err := scanAlias(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		aliases = append(aliases, alias)
	}
	return aliases, rows.Err()
}

func scanAlias(scanner interface{ Scan(dest ...any) error }) (*PathAlias, error) {
	var (
		alias   PathAlias
		created string
	)
	if err := scanner.Scan(&alias.OriginalDirectory, &alias.PhysicalDirectory, &alias.SanitizedDirectory, &created); err != nil {
		return nil, err
	}
	if ts, err := parseTimeString(created); err == nil {
		alias.CreatedAt = ts
	}
	return &alias, nil
}
