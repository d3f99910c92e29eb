// Package postgres opens the task store on PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/odvcencio/taskmate/pkg/storage"
)

//go:embed schema.sql
var schema string

// Open connects to dsn, verifies connectivity and migrates the schema.
func Open(ctx context.Context, dsn string) (*storage.Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store, err := storage.Attach(db, storage.DialectPostgres, schema)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}
