package database

import (
	"context"
	"fmt"
)

// schemaStatements creates the per-environment tables. Statements are
// idempotent; environment activation runs them on every boot.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS contents (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		project_id TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS content_versions (
		id TEXT PRIMARY KEY,
		content_id TEXT NOT NULL,
		sequence INTEGER NOT NULL DEFAULT 0,
		config TEXT,
		auto_start_rules TEXT,
		hide_rules TEXT,
		steps TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS content_on_environments (
		content_id TEXT NOT NULL,
		environment_id TEXT NOT NULL,
		published_version_id TEXT NOT NULL,
		published INTEGER NOT NULL DEFAULT 0,
		published_at TEXT,
		PRIMARY KEY (content_id, environment_id)
	)`,
	`CREATE TABLE IF NOT EXISTS biz_users (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		biz_company_id TEXT,
		data TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS biz_companies (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		data TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS biz_sessions (
		id TEXT PRIMARY KEY,
		content_id TEXT NOT NULL,
		version_id TEXT NOT NULL,
		biz_user_id TEXT NOT NULL,
		state INTEGER NOT NULL DEFAULT 0,
		progress INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS biz_events (
		id TEXT PRIMARY KEY,
		biz_user_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		biz_session_id TEXT NOT NULL,
		data TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS biz_answers (
		id TEXT PRIMARY KEY,
		biz_event_id TEXT NOT NULL,
		content_id TEXT NOT NULL,
		version_id TEXT NOT NULL,
		question_id TEXT,
		number_answer REAL,
		text_answer TEXT,
		list_answer TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		code_name TEXT NOT NULL UNIQUE,
		project_id TEXT NOT NULL,
		attribute_codes TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS attributes (
		id TEXT PRIMARY KEY,
		code_name TEXT NOT NULL,
		data_type TEXT NOT NULL,
		project_id TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS segments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		project_id TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS segment_memberships (
		segment_id TEXT NOT NULL,
		biz_user_id TEXT NOT NULL,
		PRIMARY KEY (segment_id, biz_user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_biz_sessions_user_content
		ON biz_sessions (biz_user_id, content_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_biz_events_session
		ON biz_events (biz_session_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_content_versions_content
		ON content_versions (content_id, sequence)`,
}

// EnsureSchema creates any missing tables and indexes.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
