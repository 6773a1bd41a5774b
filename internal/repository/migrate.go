package repository

import (
	"context"
	"fmt"
	"time"
)

// Columns are kept portable between SQLite and Postgres: ids are UUID text,
// dates are YYYY-MM-DD text and timestamps fixed-width UTC text, so string
// ordering matches chronological ordering on both.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS apartments (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		number TEXT NOT NULL,
		UNIQUE (project_id, number)
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		file_name TEXT NOT NULL,
		file_path TEXT NOT NULL,
		content_hash TEXT NOT NULL DEFAULT '',
		report_date TEXT NOT NULL,
		inspector TEXT,
		raw_extraction TEXT,
		page_count INTEGER NOT NULL DEFAULT 0,
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		has_errors BOOLEAN NOT NULL DEFAULT FALSE,
		error_details TEXT,
		has_warnings BOOLEAN NOT NULL DEFAULT FALSE,
		warning_details TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS reports_project_date ON reports (project_id, report_date)`,
	`CREATE INDEX IF NOT EXISTS reports_content_hash ON reports (content_hash)`,
	`CREATE TABLE IF NOT EXISTS work_items (
		id TEXT PRIMARY KEY,
		report_id TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
		apartment_id TEXT REFERENCES apartments(id),
		category TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		has_photo BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS work_items_report ON work_items (report_id)`,
	`CREATE TABLE IF NOT EXISTS inspections (
		id TEXT PRIMARY KEY,
		report_id TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
		apartment_id TEXT NOT NULL REFERENCES apartments(id),
		category TEXT NOT NULL,
		inspection_date TEXT NOT NULL,
		status TEXT,
		UNIQUE (report_id, apartment_id, category)
	)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		id TEXT PRIMARY KEY,
		reason TEXT NOT NULL,
		created_at TEXT NOT NULL,
		report_count INTEGER NOT NULL,
		work_item_count INTEGER NOT NULL,
		inspection_count INTEGER NOT NULL,
		data TEXT NOT NULL
	)`,
}

// Migrate creates the schema if it does not exist yet.
func (c *Client) Migrate(ctx context.Context) error {
	start := time.Now()
	for i, stmt := range schema {
		if _, err := c.exec(ctx, stmt, nil); err != nil {
			c.logger.Error("db.migrate.failed", "statement", i, "error", err)
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	c.logger.Info("db.migrate.ok", "statements", len(schema), "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}
