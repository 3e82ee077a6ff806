// Package audit persists a metadata-only record of each processed post —
// URL, platform, outcome, sizes, timestamp — never media bytes, so it does
// not reintroduce the "no persistent cross-run caching" non-goal through
// the back door. Connection/init pattern grounded on the teacher's
// internal/db/db.go: open, ping, then CREATE TABLE IF NOT EXISTS.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/vontrex/mediaingest/internal/models"
	"github.com/vontrex/mediaingest/pkg/logger"
)

const component = "audit"

const createTableSQL = `
CREATE TABLE IF NOT EXISTS ingest_audit (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	source_url VARCHAR(2048) NOT NULL,
	parser_name VARCHAR(64) NOT NULL,
	video_count INT NOT NULL DEFAULT 0,
	image_count INT NOT NULL DEFAULT 0,
	failed_video_count INT NOT NULL DEFAULT 0,
	failed_image_count INT NOT NULL DEFAULT 0,
	total_video_size_mb DOUBLE NOT NULL DEFAULT 0,
	has_valid_media BOOLEAN NOT NULL DEFAULT FALSE,
	exceeds_max_size BOOLEAN NOT NULL DEFAULT FALSE,
	has_access_denied BOOLEAN NOT NULL DEFAULT FALSE,
	error_message VARCHAR(1024) NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`

// Trail records the outcome of each processed post. A Trail with no
// database (returned by Disabled) makes Record a silent no-op, so callers never need to branch
// on whether auditing is configured.
type Trail struct {
	db *sql.DB
}

// Disabled returns a Trail with auditing turned off.
func Disabled() *Trail { return &Trail{} }

// Connect opens the audit database and ensures its table exists. Mirrors
// db.Connect's DSN-parse-then-ping-then-migrate sequence.
func Connect(ctx context.Context, dsn string) (*Trail, error) {
	if dsn == "" {
		return Disabled(), nil
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: opening connection: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("audit: pinging database: %w", err)
	}

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("audit: creating table: %w", err)
	}

	logger.Infof(component, "audit trail connected")
	return &Trail{db: db}, nil
}

// Close releases the underlying connection pool, if any.
func (t *Trail) Close() error {
	if t.db == nil {
		return nil
	}
	return t.db.Close()
}

// Record inserts one row for a processed post. Failures are logged, never
// propagated — the audit trail is observability, not part of the request's
// success path.
func (t *Trail) Record(ctx context.Context, parserName string, post models.ProcessedPost) {
	if t.db == nil {
		return
	}
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO ingest_audit
			(source_url, parser_name, video_count, image_count, failed_video_count,
			 failed_image_count, total_video_size_mb, has_valid_media, exceeds_max_size,
			 has_access_denied, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.SourceURL, parserName, post.VideoCount, post.ImageCount, post.FailedVideoCount,
		post.FailedImageCount, post.TotalVideoSizeMB, post.HasValidMedia, post.ExceedsMaxSize,
		post.HasAccessDenied, post.Error,
	)
	if err != nil {
		logger.Warnf(component, "failed to record audit row for %s: %v", post.SourceURL, err)
	}
}
