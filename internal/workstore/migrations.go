package workstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var schemaFS embed.FS

// schemaStep is one numbered file under migrations/, e.g. 0001_initial.sql.
type schemaStep struct {
	version int
	name    string
	sql     string
}

func schemaSteps() ([]schemaStep, error) {
	names, err := fs.Glob(schemaFS, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	steps := make([]schemaStep, 0, len(names))
	for _, name := range names {
		base := strings.TrimPrefix(name, "migrations/")
		prefix, _, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("schema file %s: missing version prefix", base)
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("schema file %s: %w", base, err)
		}
		data, err := schemaFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		steps = append(steps, schemaStep{version: version, name: base, sql: string(data)})
	}
	// fs.Glob returns names in lexical order; zero-padded prefixes keep that numeric.
	for i := 1; i < len(steps); i++ {
		if steps[i].version <= steps[i-1].version {
			return nil, fmt.Errorf("schema file %s: version %d out of order", steps[i].name, steps[i].version)
		}
	}
	return steps, nil
}

// applyMigrations brings the database up to the newest schema version,
// tracked in SQLite's user_version pragma.
func (s *Store) applyMigrations(ctx context.Context) error {
	steps, err := schemaSteps()
	if err != nil {
		return err
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, step := range steps {
		if step.version <= current {
			continue
		}
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, step.sql); err != nil {
				return fmt.Errorf("apply %s: %w", step.name, err)
			}
			// PRAGMA does not accept bound parameters.
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", step.version)); err != nil {
				return fmt.Errorf("record schema version %d: %w", step.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		current = step.version
	}
	return nil
}
