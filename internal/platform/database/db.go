package database

import (
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"crmhooks/internal/platform/config"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// DB pairs the pool with the driver name so repositories can write
// queries with ? placeholders and rebind them for Postgres.
type DB struct {
	*sql.DB
	Driver string
}

func New(db *sql.DB, driver string) *DB {
	return &DB{DB: db, Driver: driver}
}

func Open(cfg config.DatabaseConfig) (*DB, error) {
	driver, dsn := resolve(cfg.URL)

	if driver == DriverSQLite && dsn != ":memory:" {
		path := dsn
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_busy_timeout=5000&_journal_mode=WAL"
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 10
	}
	if dsn == ":memory:" {
		// every connection would otherwise get its own empty database
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(min(5, maxConns))
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return New(db, driver), nil
}

func resolve(url string) (driver, dsn string) {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return DriverPostgres, url
	}
	return DriverSQLite, strings.TrimPrefix(url, "file:")
}

// Rebind converts ? placeholders to $1..$n when running on Postgres.
func (db *DB) Rebind(query string) string {
	if db.Driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
