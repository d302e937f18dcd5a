// Package storage opens and initializes the MySQL pool backing the
// statement compiler. Schema setup is idempotent; opening retries
// transient connection errors so a briefly unavailable server doesn't
// fail startup.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"

	"github.com/solidqa/partboard/internal/debug"
)

// Config holds MySQL connection settings.
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	ConnectionLimit int // max open connections (default 10)
}

// DSN renders the go-sql-driver DSN. parseTime gives time.Time scans for
// DATETIME columns; loc=UTC because the rows store UTC timestamps.
func (c Config) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

const openMaxElapsed = 30 * time.Second

func newOpenBackoff() backoff.BackOff {
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = openMaxElapsed
	return bo
}

// isRetryableError reports whether the error is a transient connection
// error worth retrying during open.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "driver: bad connection") {
		return true
	}
	if strings.Contains(errStr, "invalid connection") {
		return true
	}
	if strings.Contains(errStr, "broken pipe") {
		return true
	}
	if strings.Contains(errStr, "connection reset") {
		return true
	}
	// Server restart: refused connections may clear within the backoff
	// window, so a brief outage doesn't fail startup.
	if strings.Contains(errStr, "connection refused") {
		return true
	}
	if strings.Contains(errStr, "i/o timeout") {
		return true
	}
	return false
}

// Open connects to MySQL, verifies the connection with a retried ping,
// and applies the schema. The returned pool is ready to serve.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	limit := cfg.ConnectionLimit
	if limit <= 0 {
		limit = 10
	}
	db.SetMaxOpenConns(limit)
	db.SetMaxIdleConns(limit)
	db.SetConnMaxLifetime(5 * time.Minute)

	bo := newOpenBackoff()
	err = backoff.Retry(func() error {
		pingErr := db.PingContext(ctx)
		if pingErr != nil && isRetryableError(pingErr) {
			debug.Logf("storage: ping failed, retrying: %v", pingErr)
			return pingErr
		}
		if pingErr != nil {
			return backoff.Permanent(pingErr)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Schema statements. CREATE TABLE IF NOT EXISTS keeps this idempotent
// across restarts; indexes cover the hot filters (correction state,
// part lookups, per-report queries).
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS reports (
		id VARCHAR(64) PRIMARY KEY,
		file_name VARCHAR(512) NOT NULL,
		uploaded_at DATETIME NOT NULL,
		total_issues INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS issues (
		id VARCHAR(64) PRIMARY KEY,
		part_number VARCHAR(255) NOT NULL,
		owner VARCHAR(255) NULL,
		issue_type VARCHAR(255) NOT NULL,
		report_id VARCHAR(64) NOT NULL,
		created_at DATETIME NOT NULL,
		is_corrected TINYINT(1) NOT NULL DEFAULT 0,
		corrected_at DATETIME NULL,
		INDEX idx_issues_part (part_number),
		INDEX idx_issues_corrected (is_corrected),
		INDEX idx_issues_report (report_id)
	)`,
}

// InitSchema creates the tables when missing.
func InitSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema init failed: %w", err)
		}
	}
	return nil
}
