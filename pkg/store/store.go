package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/karouh/molehunt/internal/observability"
)

// Message is one transcript entry
type Message struct {
	Agent     string    `json:"agent"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Turn      int       `json:"turn"`
	Timestamp time.Time `json:"timestamp"`
}

// ToolRecord is one tool invocation outcome
type ToolRecord struct {
	Agent     string    `json:"agent"`
	Tool      string    `json:"tool"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Turn      int       `json:"turn"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is a SQLite-backed transcript store
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Config holds store configuration
type Config struct {
	// DBPath is the SQLite database file; ":memory:" works for tests.
	DBPath string
	Logger zerolog.Logger
}

// Open opens the database and initializes the schema
func Open(cfg Config) (*Store, error) {
	observability.EnsureRegistered()

	if cfg.DBPath == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL for better concurrency between runner writes and detector reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db, logger: cfg.Logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Info().Str("path", cfg.DBPath).Msg("Transcript store opened")
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			agent TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			turn INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);

		CREATE TABLE IF NOT EXISTS tool_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			agent TEXT NOT NULL,
			tool TEXT NOT NULL,
			success INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			turn INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_tool_records_session ON tool_records(session_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// AppendMessage persists one transcript entry
func (s *Store) AppendMessage(ctx context.Context, sessionID string, msg Message) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (session_id, agent, role, content, turn, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, msg.Agent, msg.Role, msg.Content, msg.Turn, ts.UnixNano(),
	)
	observability.RecordStoreWrite(time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// AppendToolRecord persists one tool invocation outcome
func (s *Store) AppendToolRecord(ctx context.Context, sessionID string, record ToolRecord) error {
	if sessionID == "" {
		return errors.New("session id is required")
	}

	ts := record.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_records (session_id, agent, tool, success, error, turn, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, record.Agent, record.Tool, boolToInt(record.Success), record.Error, record.Turn, ts.UnixNano(),
	)
	observability.RecordStoreWrite(time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to append tool record: %w", err)
	}
	return nil
}

// Messages returns a session's transcript in append order
func (s *Store) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent, role, content, turn, created_at
		 FROM messages WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	observability.RecordStoreRead(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var msg Message
		var createdAt int64
		if err := rows.Scan(&msg.Agent, &msg.Role, &msg.Content, &msg.Turn, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Timestamp = time.Unix(0, createdAt)
		out = append(out, msg)
	}
	return out, rows.Err()
}

// ToolRecords returns a session's tool outcomes in append order
func (s *Store) ToolRecords(ctx context.Context, sessionID string) ([]ToolRecord, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		`SELECT agent, tool, success, error, turn, created_at
		 FROM tool_records WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	observability.RecordStoreRead(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to query tool records: %w", err)
	}
	defer rows.Close()

	var out []ToolRecord
	for rows.Next() {
		var record ToolRecord
		var success int
		var createdAt int64
		if err := rows.Scan(&record.Agent, &record.Tool, &success, &record.Error, &record.Turn, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan tool record: %w", err)
		}
		record.Success = success != 0
		record.Timestamp = time.Unix(0, createdAt)
		out = append(out, record)
	}
	return out, rows.Err()
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
