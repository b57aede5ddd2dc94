package database

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/noah-isme/timetable-api/pkg/config"
)

const sqliteDriver = "sqlite"

func init() {
	sqlx.BindDriver(sqliteDriver, sqlx.QUESTION)
}

// NewSQLite opens a file-backed SQLite database for single-node deployments.
func NewSQLite(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	path := strings.TrimSpace(cfg.SQLitePath)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	pragmas := url.Values{}
	pragmas.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.SQLiteTimeout.Milliseconds()))
	pragmas.Add("_pragma", "journal_mode(WAL)")
	pragmas.Add("_pragma", "synchronous(NORMAL)")
	dsn := "file:" + path + "?" + pragmas.Encode()

	db, err := sqlx.Open(sqliteDriver, dsn)
	if err != nil {
		return nil, err
	}

	// SQLite prefers a small number of concurrent writers.
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 || maxOpen > 4 {
		maxOpen = 4
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
