package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"ioc-registry/pkg/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

type DB struct {
	*bun.DB
}

// NewDB opens the threat store described by url. A postgres:// or
// postgresql:// URL selects the Postgres driver; anything else is treated
// as a SQLite path, with an optional sqlite:// prefix stripped.
func NewDB(url string) (*DB, error) {
	var db *bun.DB

	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(url)))
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		path := strings.TrimPrefix(url, "sqlite://")
		sqldb, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %v", err)
		}

		// Configure SQLite for concurrent access
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
		} {
			if _, err := sqldb.Exec(pragma); err != nil {
				sqldb.Close()
				return nil, fmt.Errorf("failed to set pragma: %v", err)
			}
		}

		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %v", err)
	}

	return &DB{db}, nil
}

// sqliteSchema spells the table out for SQLite: without AUTOINCREMENT a
// rowid alias reassigns the ids of deleted rows.
const sqliteSchema = `CREATE TABLE IF NOT EXISTS threats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type VARCHAR NOT NULL,
	value VARCHAR NOT NULL UNIQUE,
	severity VARCHAR NOT NULL,
	source VARCHAR,
	date_detected TIMESTAMP NOT NULL
)`

// InitSchema creates the threats table and its indexes if they don't exist
func (db *DB) InitSchema(ctx context.Context) error {
	var err error
	if db.Dialect().Name() == dialect.SQLite {
		_, err = db.ExecContext(ctx, sqliteSchema)
	} else {
		_, err = db.NewCreateTable().
			Model((*models.Threat)(nil)).
			IfNotExists().
			Exec(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS threats_type_idx ON threats (type)",
		"CREATE INDEX IF NOT EXISTS threats_severity_idx ON threats (severity)",
		"CREATE INDEX IF NOT EXISTS threats_date_detected_idx ON threats (date_detected)",
		"CREATE INDEX IF NOT EXISTS threats_type_severity_idx ON threats (type, severity)",
	}
	for _, ddl := range indexes {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create index: %v", err)
		}
	}

	return nil
}
