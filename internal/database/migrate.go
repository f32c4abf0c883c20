package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema holds the idempotent DDL for every core table.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sources (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		priority INTEGER NOT NULL DEFAULT 5,
		strategy TEXT NOT NULL,
		retry_max INTEGER NOT NULL DEFAULT 3,
		backoff_base_seconds INTEGER NOT NULL DEFAULT 5,
		request_timeout_ms INTEGER NOT NULL DEFAULT 15000,
		min_interval_seconds INTEGER NOT NULL DEFAULT 86400,
		strategy_config JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS bindings (
		id UUID PRIMARY KEY,
		event_id TEXT NOT NULL,
		source_id UUID NOT NULL REFERENCES sources(id),
		url TEXT NOT NULL,
		is_primary BOOLEAN NOT NULL DEFAULT FALSE,
		last_hash TEXT,
		last_http_status INTEGER,
		last_error TEXT,
		last_checked_at TIMESTAMPTZ,
		next_check_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (event_id, source_id, url)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bindings_next_check
		ON bindings (next_check_at)`,
	`CREATE TABLE IF NOT EXISTS sync_runs (
		id UUID PRIMARY KEY,
		binding_id UUID NOT NULL REFERENCES bindings(id),
		status TEXT NOT NULL,
		strategy TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		new_count INTEGER NOT NULL DEFAULT 0,
		updated_count INTEGER NOT NULL DEFAULT 0,
		unchanged_count INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		finished_at TIMESTAMPTZ,
		error_message TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_runs_binding
		ON sync_runs (binding_id, started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS raw_crawl_entries (
		id UUID PRIMARY KEY,
		binding_id UUID NOT NULL REFERENCES bindings(id),
		source_id UUID NOT NULL REFERENCES sources(id),
		url TEXT NOT NULL,
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		http_status INTEGER NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		extraction JSONB NOT NULL DEFAULT '{}',
		status TEXT NOT NULL DEFAULT 'pending',
		fetched_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_raw_crawl_entries_status
		ON raw_crawl_entries (status, fetched_at DESC)`,
	`CREATE TABLE IF NOT EXISTS editions (
		id UUID PRIMARY KEY,
		event_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		race_date TEXT,
		registration_status TEXT,
		registration_url TEXT,
		registration_opens TEXT,
		registration_closes TEXT,
		provenance JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (event_id, year)
	)`,
}

// Migrate applies the schema. Safe to run on every startup.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
