package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentloop/core"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists threads in a SQLite database. Messages are stored as a
// JSON array per thread.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and initializes the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			messages TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load reads the thread with id.
func (s *SQLiteStore) Load(ctx context.Context, id string) (*core.Thread, error) {
	var (
		raw       string
		createdAt int64
		updatedAt int64
	)

	err := s.db.QueryRowContext(ctx,
		"SELECT messages, created_at, updated_at FROM threads WHERE id = ?", id,
	).Scan(&raw, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrThreadNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load thread %s: %w", id, err)
	}

	var msgs []core.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, fmt.Errorf("failed to decode messages of thread %s: %w", id, err)
	}

	conv, err := core.NewConversation(msgs...)
	if err != nil {
		return nil, fmt.Errorf("thread %s: %w", id, err)
	}

	return &core.Thread{
		ID:           id,
		Conversation: conv,
		CreatedAt:    time.Unix(0, createdAt).UTC(),
		UpdatedAt:    time.Unix(0, updatedAt).UTC(),
	}, nil
}

// Save upserts the thread.
func (s *SQLiteStore) Save(ctx context.Context, thread *core.Thread) error {
	var msgs []core.Message
	if thread.Conversation != nil {
		msgs = thread.Conversation.Messages()
	}
	if msgs == nil {
		msgs = []core.Message{}
	}

	raw, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("failed to encode messages of thread %s: %w", thread.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO threads (id, messages, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET messages = excluded.messages, updated_at = excluded.updated_at
	`, thread.ID, string(raw), thread.CreatedAt.UnixNano(), thread.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save thread %s: %w", thread.ID, err)
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
