// Package memory persists interaction episodes: one record per completed
// query/response cycle, keyed by session. Episodes are append-only; only the
// feedback field is ever updated after the fact.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/xhad/scholar/internal/models"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the episode database in dataDir. Pass ":memory:"
// as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "episodes.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS episodes (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_query TEXT NOT NULL,
		agent_response TEXT NOT NULL,
		agent_path TEXT NOT NULL,
		tools_used TEXT NOT NULL DEFAULT '[]',
		feedback TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating episodes table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS episodes_session_idx ON episodes (session_id)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating session index: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// StoreEpisode appends one episode, assigning it a fresh ID and timestamp.
func (s *Store) StoreEpisode(ctx context.Context, episode models.Episode) (models.Episode, error) {
	episode.ID = uuid.NewString()
	episode.CreatedAt = time.Now().UTC()

	tools, err := json.Marshal(episode.ToolsUsed)
	if err != nil {
		return models.Episode{}, fmt.Errorf("encoding tools_used: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO episodes
		(id, session_id, user_query, agent_response, agent_path, tools_used, feedback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		episode.ID, episode.SessionID, episode.UserQuery, episode.AgentResponse,
		episode.AgentPath, string(tools), episode.Feedback,
		episode.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return models.Episode{}, fmt.Errorf("storing episode: %w", err)
	}

	return episode, nil
}

// RecentEpisodes returns up to limit episodes for one session, newest first.
func (s *Store) RecentEpisodes(ctx context.Context, sessionID string, limit int) ([]models.Episode, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.queryEpisodes(ctx, `SELECT id, session_id, user_query, agent_response,
		agent_path, tools_used, feedback, created_at
		FROM episodes WHERE session_id = ?
		ORDER BY created_at DESC LIMIT ?`, sessionID, limit)
}

// AllEpisodes returns up to limit episodes across all sessions, newest first.
func (s *Store) AllEpisodes(ctx context.Context, limit int) ([]models.Episode, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryEpisodes(ctx, `SELECT id, session_id, user_query, agent_response,
		agent_path, tools_used, feedback, created_at
		FROM episodes ORDER BY created_at DESC LIMIT ?`, limit)
}

// UpdateFeedback sets the feedback field of one episode. It reports whether
// the episode existed.
func (s *Store) UpdateFeedback(ctx context.Context, episodeID, feedback string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE episodes SET feedback = ? WHERE id = ?`, feedback, episodeID)
	if err != nil {
		return false, fmt.Errorf("updating feedback: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// DeleteSessionEpisodes removes every episode of one session and returns the
// number deleted. This is the external administrative bulk operation; nothing
// in the core deletes episodes.
func (s *Store) DeleteSessionEpisodes(ctx context.Context, sessionID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM episodes WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("deleting session episodes: %w", err)
	}
	return result.RowsAffected()
}

func (s *Store) queryEpisodes(ctx context.Context, query string, args ...any) ([]models.Episode, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying episodes: %w", err)
	}
	defer rows.Close()

	var episodes []models.Episode
	for rows.Next() {
		var episode models.Episode
		var tools, createdAt string
		if err := rows.Scan(&episode.ID, &episode.SessionID, &episode.UserQuery,
			&episode.AgentResponse, &episode.AgentPath, &tools, &episode.Feedback, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning episode: %w", err)
		}
		if err := json.Unmarshal([]byte(tools), &episode.ToolsUsed); err != nil {
			return nil, fmt.Errorf("decoding tools_used: %w", err)
		}
		if episode.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		episodes = append(episodes, episode)
	}

	return episodes, rows.Err()
}
