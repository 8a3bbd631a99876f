package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"
)

func MustConnect(ctx context.Context, dsn string) *pgxpool.Pool {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		panic(err)
	}
	if err := pool.Ping(ctx); err != nil {
		panic(err)
	}
	return pool
}

// OpenSQLite opens (creating if needed) a sqlite database file. A single
// connection keeps writes serialized, which is all sqlite offers anyway.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return conn, nil
}

type migration struct {
	name string
	sql  string
}

// loadMigrations returns every *.sql file at the root of fsys in name order.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := make([]migration, 0, len(names))
	for _, name := range names {
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		text := strings.TrimSpace(string(b))
		if text == "" {
			return nil, errors.New("empty migration: " + name)
		}
		out = append(out, migration{name: name, sql: text})
	}
	return out, nil
}

// ApplyMigrations runs every migration from fsys that is not yet recorded
// in schema_migrations, each in its own transaction.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return err
	}

	migs, err := loadMigrations(fsys)
	if err != nil {
		return err
	}

	for _, m := range migs {
		var exists bool
		if e := pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename=$1)`, m.name).Scan(&exists); e != nil {
			return e
		}
		if exists {
			continue
		}

		tx, e := pool.Begin(ctx)
		if e != nil {
			return e
		}
		if _, e = tx.Exec(ctx, m.sql); e != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("migration %s failed: %w", m.name, e)
		}
		if _, e = tx.Exec(ctx, `INSERT INTO schema_migrations(filename) VALUES($1)`, m.name); e != nil {
			_ = tx.Rollback(ctx)
			return e
		}
		if e := tx.Commit(ctx); e != nil {
			return e
		}
	}
	return nil
}

// ApplySQLiteMigrations is ApplyMigrations for a database/sql sqlite handle.
func ApplySQLiteMigrations(ctx context.Context, conn *sql.DB, fsys fs.FS) error {
	_, err := conn.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return err
	}

	migs, err := loadMigrations(fsys)
	if err != nil {
		return err
	}

	for _, m := range migs {
		var exists bool
		if e := conn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename=?)`, m.name).Scan(&exists); e != nil {
			return e
		}
		if exists {
			continue
		}

		tx, e := conn.BeginTx(ctx, nil)
		if e != nil {
			return e
		}
		if _, e = tx.ExecContext(ctx, m.sql); e != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s failed: %w", m.name, e)
		}
		if _, e = tx.ExecContext(ctx, `INSERT INTO schema_migrations(filename) VALUES(?)`, m.name); e != nil {
			_ = tx.Rollback()
			return e
		}
		if e := tx.Commit(); e != nil {
			return e
		}
	}
	return nil
}
