// Package db keeps an append-only log of received tally packets in SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// pragmas applied to every pooled connection.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
}

type DB struct {
	*sql.DB
	path      string
	captureID string
}

// NewDB opens the database at path and brings its schema up to date. Each
// DB gets a fresh capture id that tags every packet it records.
func NewDB(path string) (*DB, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Open opens the database without running migrations.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	if err := sqlDB.PingContext(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return &DB{DB: sqlDB, path: path, captureID: uuid.NewString()}, nil
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + q.Encode()
}

// CaptureID identifies the packets recorded through this handle.
func (db *DB) CaptureID() string {
	return db.captureID
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}
