package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
)

//go:embed schema/*.sql
var schema embed.FS

// Migrate applies embedded schema files that are not yet recorded in schema_migrations.
// Each file runs in its own transaction.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	files, err := schemaFiles()
	if err != nil {
		return err
	}

	for _, name := range files {
		applied, err := db.apply(ctx, name)
		if err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}

		if applied {
			db.l.LogInfo("Schema migration %s has been applied", name)
		}
	}

	return nil
}

func schemaFiles() ([]string, error) {
	files, err := fs.Glob(schema, "schema/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list schema files: %w", err)
	}

	sort.Strings(files)

	return files, nil
}

func (db *DB) apply(ctx context.Context, name string) (applied bool, err error) {
	body, err := schema.ReadFile(name)
	if err != nil {
		return false, fmt.Errorf("read: %w", err)
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)

			panic(p)
		}

		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				db.l.LogErrorf("Could not rollback migration %s: %v", name, rbErr)
			}

			return
		}

		if err = tx.Commit(ctx); err != nil {
			err = fmt.Errorf("commit: %w", err)
		}
	}()

	var exists bool
	if err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)`, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check version: %w", err)
	}

	if exists {
		return false, nil
	}

	if _, err = tx.Exec(ctx, string(body), pgx.QueryExecModeSimpleProtocol); err != nil {
		return false, fmt.Errorf("exec: %w", err)
	}

	if _, err = tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name); err != nil {
		return false, fmt.Errorf("record version: %w", err)
	}

	return true, nil
}
