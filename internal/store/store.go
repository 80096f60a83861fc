// Package store provides SQLite persistence for the trip planning engine:
// session checkpoints, the durable tier of the response cache, shared trips,
// users, agent decision audit rows, and conversation history.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/state"
)

// ErrNotFound is returned when a requested row does not exist or has expired.
var ErrNotFound = errors.New("store: not found")

// Store wraps the SQLite database. Writes are serialized behind a mutex;
// SQLite in WAL mode handles concurrent readers.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
	now    func() time.Time
}

// Open initializes the database at path, creating the directory and running
// schema migrations.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Debug("pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	s := &Store{db: db, logger: logger.Named("store"), now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func isoTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

// --- session checkpoints -------------------------------------------------

// SaveCheckpoint persists the full state snapshot under its session id.
// Called after every node merge; a failure here is fatal for the run because
// resume can no longer be guaranteed.
func (s *Store) SaveCheckpoint(ctx context.Context, st *state.PlannerState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}
	status := "active"
	if st.RequiresApproval {
		status = "awaiting_approval"
	}
	if st.CurrentStage == state.StageComplete {
		status = "completed"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trip_sessions (id, user_id, state_json, status, current_stage, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state_json = excluded.state_json,
			status = excluded.status,
			current_stage = excluded.current_stage,
			updated_at = excluded.updated_at`,
		st.SessionID, st.UserID, string(data), status, string(st.CurrentStage),
		isoTime(st.CreatedAt), isoTime(s.now()))
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads the last snapshot for a session.
func (s *Store) LoadCheckpoint(ctx context.Context, sessionID string) (*state.PlannerState, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM trip_sessions WHERE id = ?`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	var st state.PlannerState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("failed to parse checkpoint: %w", err)
	}
	return &st, nil
}

// DeleteSession removes a session row on explicit close.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM trip_sessions WHERE id = ?`, sessionID)
	return err
}

// PurgeExpiredSessions drops sessions not updated within ttl.
func (s *Store) PurgeExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := isoTime(s.now().Add(-ttl))
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM trip_sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- api_cache (durable cache tier) --------------------------------------

// CacheGet returns the cached document for key if present and unexpired.
func (s *Store) CacheGet(ctx context.Context, key string) ([]byte, error) {
	var raw, expires string
	err := s.db.QueryRowContext(ctx,
		`SELECT response_json, expires_at FROM api_cache WHERE cache_key = ?`, key).Scan(&raw, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	exp, err := time.Parse(time.RFC3339, expires)
	if err != nil || s.now().After(exp) {
		// Lazy eviction on read miss.
		s.mu.Lock()
		s.db.ExecContext(ctx, `DELETE FROM api_cache WHERE cache_key = ?`, key)
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	return []byte(raw), nil
}

// CacheSet writes a document with an absolute expiry. Last writer wins;
// duplicate writes of identical content are harmless.
func (s *Store) CacheSet(ctx context.Context, key string, doc []byte, ttl time.Duration) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_cache (cache_key, response_json, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			response_json = excluded.response_json,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		key, string(doc), isoTime(now), isoTime(now.Add(ttl)))
	return err
}

// --- shared trips --------------------------------------------------------

// ShareTrip persists a read-only snapshot under a new trip id with an expiry.
func (s *Store) ShareTrip(ctx context.Context, tripID string, st *state.PlannerState, ttl time.Duration) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to serialize shared trip: %w", err)
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO shared_trips (trip_id, state_json, created_at, expires_at)
		VALUES (?, ?, ?, ?)`,
		tripID, string(data), isoTime(now), isoTime(now.Add(ttl)))
	return err
}

// LoadSharedTrip reads a shared snapshot; expired rows read as missing.
func (s *Store) LoadSharedTrip(ctx context.Context, tripID string) (*state.PlannerState, error) {
	var raw, expires string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json, expires_at FROM shared_trips WHERE trip_id = ?`, tripID).Scan(&raw, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if exp, perr := time.Parse(time.RFC3339, expires); perr == nil && s.now().After(exp) {
		return nil, ErrNotFound
	}
	var st state.PlannerState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("failed to parse shared trip: %w", err)
	}
	return &st, nil
}

// --- users ---------------------------------------------------------------

// EnsureUser upserts the user row for a session and touches last_active.
func (s *Store) EnsureUser(ctx context.Context, userID, sessionID, displayName string) error {
	now := isoTime(s.now())
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, session_id, display_name, created_at, last_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			session_id = excluded.session_id,
			last_active = excluded.last_active`,
		userID, sessionID, displayName, now, now)
	return err
}

// --- agent decisions -----------------------------------------------------

// AppendAgentDecisions writes audit rows for a session.
func (s *Store) AppendAgentDecisions(ctx context.Context, sessionID string, decisions []state.AgentDecision) error {
	if len(decisions) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO agent_decisions (session_id, agent_name, action, reasoning, result_summary, tokens_used, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, d := range decisions {
		at := d.At
		if at.IsZero() {
			at = s.now()
		}
		if _, err := stmt.ExecContext(ctx, sessionID, d.Agent, d.Action, d.Reasoning,
			d.ResultSummary, d.TokensUsed, d.LatencyMS, isoTime(at)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// --- conversation history ------------------------------------------------

// AppendConversation records one chat turn for a session.
func (s *Store) AppendConversation(ctx context.Context, sessionID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_history (session_id, role, content, created_at)
		VALUES (?, ?, ?, ?)`,
		sessionID, role, content, isoTime(s.now()))
	return err
}

// ConversationTurn is one stored chat message.
type ConversationTurn struct {
	Role    string
	Content string
	At      time.Time
}

// RecentConversation returns up to limit turns, oldest first.
func (s *Store) RecentConversation(ctx context.Context, sessionID string, limit int) ([]ConversationTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at FROM conversation_history
		WHERE session_id = ? ORDER BY id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var turns []ConversationTurn
	for rows.Next() {
		var t ConversationTurn
		var at string
		if err := rows.Scan(&t.Role, &t.Content, &at); err != nil {
			return nil, err
		}
		t.At, _ = time.Parse(time.RFC3339, at)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}
