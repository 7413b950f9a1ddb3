package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anatolykoptev/notelens/internal/notes"
)

// sqliteTimeLayout is RFC 3339 with a fixed nine-digit fraction. created_at
// is a TEXT column compared and ordered as a string, so every stored value
// must have the same width. RFC3339Nano trims trailing zeros and breaks that
// ("...05.5Z" sorts after "...05.52Z").
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite stores results in a local file. Suitable for single-node setups
// where Postgres is not configured.
type SQLite struct {
	db  *sql.DB
	ttl time.Duration
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
// ttl <= 0 disables expiry.
func OpenSQLite(path string, ttl time.Duration) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("sqlite: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS video_notes (
		video_id        TEXT PRIMARY KEY,
		title           TEXT NOT NULL DEFAULT '',
		channel         TEXT NOT NULL DEFAULT '',
		duration        INTEGER NOT NULL DEFAULT 0,
		url             TEXT NOT NULL DEFAULT '',
		transcript      TEXT NOT NULL DEFAULT '',
		notes           TEXT NOT NULL DEFAULT '',
		tools           TEXT NOT NULL DEFAULT '[]',
		failed_branch   TEXT NOT NULL DEFAULT '',
		processing_time REAL NOT NULL DEFAULT 0,
		created_at      TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: init schema: %w", err)
	}

	slog.Info("notes sqlite opened", slog.String("path", path))
	return &SQLite{db: db, ttl: ttl}, nil
}

func (s *SQLite) Close() {
	if err := s.db.Close(); err != nil {
		slog.Warn("sqlite close failed", slog.Any("error", err))
	}
}

func (s *SQLite) Get(ctx context.Context, videoID string) (*notes.Result, error) {
	var (
		res       notes.Result
		toolsJSON string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT video_id, title, channel, duration, url, transcript, notes,
		        tools, failed_branch, processing_time, created_at
		 FROM video_notes WHERE video_id = ?`, videoID,
	).Scan(&res.VideoID, &res.Meta.Title, &res.Meta.Channel, &res.Meta.Duration,
		&res.Meta.URL, &res.Transcript, &res.Notes,
		&toolsJSON, &res.FailedBranch, &res.ProcessingTime, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: select: %w", err)
	}

	res.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("sqlite: parse created_at: %w", err)
	}

	if s.ttl > 0 && time.Since(res.CreatedAt) > s.ttl {
		if _, derr := s.db.ExecContext(ctx,
			`DELETE FROM video_notes WHERE video_id = ? AND created_at = ?`,
			videoID, createdAt); derr != nil {
			slog.Debug("expired row cleanup failed", slog.Any("error", derr))
		}
		return nil, nil
	}

	res.Meta.VideoID = res.VideoID
	if err := json.Unmarshal([]byte(toolsJSON), &res.Tools); err != nil {
		return nil, fmt.Errorf("sqlite: decode tools: %w", err)
	}
	if res.Tools == nil {
		res.Tools = []notes.ToolMention{}
	}
	return &res, nil
}

func (s *SQLite) Put(ctx context.Context, res *notes.Result) error {
	toolsJSON, err := json.Marshal(res.Tools)
	if err != nil {
		return fmt.Errorf("sqlite: encode tools: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO video_notes
		   (video_id, title, channel, duration, url, transcript, notes,
		    tools, failed_branch, processing_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (video_id) DO UPDATE SET
		   title = excluded.title,
		   channel = excluded.channel,
		   duration = excluded.duration,
		   url = excluded.url,
		   transcript = excluded.transcript,
		   notes = excluded.notes,
		   tools = excluded.tools,
		   failed_branch = excluded.failed_branch,
		   processing_time = excluded.processing_time,
		   created_at = excluded.created_at`,
		res.VideoID, res.Meta.Title, res.Meta.Channel, res.Meta.Duration,
		res.Meta.URL, res.Transcript, res.Notes,
		string(toolsJSON), res.FailedBranch, res.ProcessingTime,
		res.CreatedAt.UTC().Format(sqliteTimeLayout))
	if err != nil {
		return fmt.Errorf("sqlite: upsert: %w", err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, videoID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM video_notes WHERE video_id = ?`, videoID)
	return err
}

func (s *SQLite) List(ctx context.Context, limit int, search string) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT video_id, title, channel, duration, tools, failed_branch, processing_time, created_at
	          FROM video_notes`
	var (
		conds []string
		args  []any
	)
	if s.ttl > 0 {
		conds = append(conds, `created_at > ?`)
		args = append(args, time.Now().Add(-s.ttl).UTC().Format(sqliteTimeLayout))
	}
	if search != "" {
		pat := "%" + strings.ToLower(search) + "%"
		conds = append(conds, `(LOWER(title) LIKE ? OR LOWER(channel) LIKE ?)`)
		args = append(args, pat, pat)
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sm        Summary
			toolsJSON string
			createdAt string
		)
		if err := rows.Scan(&sm.VideoID, &sm.Title, &sm.Channel, &sm.Duration,
			&toolsJSON, &sm.FailedBranch, &sm.ProcessingTime, &createdAt); err != nil {
			return nil, err
		}
		var tools []json.RawMessage
		if json.Unmarshal([]byte(toolsJSON), &tools) == nil {
			sm.ToolCount = len(tools)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			sm.CreatedAt = t
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}
