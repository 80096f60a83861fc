package store

import (
	"fmt"

	"go.uber.org/zap"
)

// Schema versions:
// v1: trip_sessions, api_cache, users
// v2: shared_trips with expiry
// v3: agent_decisions audit table
// v4: conversation_history with optional compressed_summary
const currentSchemaVersion = 4

var schemaStatements = []struct {
	version int
	ddl     []string
}{
	{1, []string{
		`CREATE TABLE IF NOT EXISTS trip_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			state_json TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			current_stage TEXT NOT NULL DEFAULT 'created',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS api_cache (
			cache_key TEXT PRIMARY KEY,
			response_json TEXT NOT NULL,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_api_cache_expires ON api_cache(expires_at)`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			session_id TEXT UNIQUE,
			display_name TEXT,
			created_at TEXT NOT NULL,
			last_active TEXT NOT NULL
		)`,
	}},
	{2, []string{
		`CREATE TABLE IF NOT EXISTS shared_trips (
			trip_id TEXT PRIMARY KEY,
			state_json TEXT NOT NULL,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		)`,
	}},
	{3, []string{
		`CREATE TABLE IF NOT EXISTS agent_decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			agent_name TEXT NOT NULL,
			action TEXT NOT NULL,
			reasoning TEXT,
			result_summary TEXT,
			tokens_used INTEGER DEFAULT 0,
			latency_ms INTEGER DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_decisions_session ON agent_decisions(session_id)`,
	}},
	{4, []string{
		`CREATE TABLE IF NOT EXISTS conversation_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			compressed_summary TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_session ON conversation_history(session_id)`,
	}},
}

// migrate applies pending schema versions. Each version's DDL is idempotent,
// so re-running on an up-to-date database is a no-op.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	var version int
	row := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, step := range schemaStatements {
		if step.version <= version {
			continue
		}
		for _, ddl := range step.ddl {
			if _, err := s.db.Exec(ddl); err != nil {
				return fmt.Errorf("migration v%d failed: %w", step.version, err)
			}
		}
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, step.version); err != nil {
			return fmt.Errorf("failed to record schema version %d: %w", step.version, err)
		}
		s.logger.Debug("applied schema migration", zap.Int("version", step.version))
	}
	return nil
}
