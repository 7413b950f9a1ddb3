package store

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolykoptev/notelens/internal/notes"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Postgres stores results in a pgx pool. Writes are atomic upserts so a
// forced regeneration replaces the old row in one statement.
type Postgres struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// ConnectPostgres creates a pgx pool, runs schema migrations, and returns
// the store. ttl <= 0 disables expiry.
func ConnectPostgres(ctx context.Context, databaseURL string, ttl time.Duration) (*Postgres, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Postgres{pool: pool, ttl: ttl}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("notes postgres connected", slog.String("addr", config.ConnConfig.Host))
	return s, nil
}

func (s *Postgres) Close() {
	s.pool.Close()
}

func (s *Postgres) runMigrations(ctx context.Context) error {
	entries, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		data, err := schemaFS.ReadFile("schema/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("execute %s: %w", entry.Name(), err)
		}
		slog.Info("migration applied", slog.String("file", entry.Name()))
	}
	return nil
}

// Get returns the stored result, or (nil, nil) when absent or past its TTL.
// Expired rows are removed opportunistically.
func (s *Postgres) Get(ctx context.Context, videoID string) (*notes.Result, error) {
	var (
		res       notes.Result
		toolsJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT video_id, title, channel, duration, url, transcript, notes,
		        tools, failed_branch, processing_time, created_at
		 FROM video_notes WHERE video_id = $1`, videoID,
	).Scan(&res.VideoID, &res.Meta.Title, &res.Meta.Channel, &res.Meta.Duration,
		&res.Meta.URL, &res.Transcript, &res.Notes,
		&toolsJSON, &res.FailedBranch, &res.ProcessingTime, &res.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select video_notes: %w", err)
	}

	if s.expired(res.CreatedAt) {
		if _, derr := s.pool.Exec(ctx, `DELETE FROM video_notes WHERE video_id = $1 AND created_at = $2`,
			videoID, res.CreatedAt); derr != nil {
			slog.Debug("expired row cleanup failed", slog.Any("error", derr))
		}
		return nil, nil
	}

	res.Meta.VideoID = res.VideoID
	if err := json.Unmarshal(toolsJSON, &res.Tools); err != nil {
		return nil, fmt.Errorf("decode tools: %w", err)
	}
	if res.Tools == nil {
		res.Tools = []notes.ToolMention{}
	}
	return &res, nil
}

// Put upserts the result keyed by video ID.
func (s *Postgres) Put(ctx context.Context, res *notes.Result) error {
	toolsJSON, err := json.Marshal(res.Tools)
	if err != nil {
		return fmt.Errorf("encode tools: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO video_notes
		   (video_id, title, channel, duration, url, transcript, notes,
		    tools, failed_branch, processing_time, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (video_id) DO UPDATE SET
		   title = EXCLUDED.title,
		   channel = EXCLUDED.channel,
		   duration = EXCLUDED.duration,
		   url = EXCLUDED.url,
		   transcript = EXCLUDED.transcript,
		   notes = EXCLUDED.notes,
		   tools = EXCLUDED.tools,
		   failed_branch = EXCLUDED.failed_branch,
		   processing_time = EXCLUDED.processing_time,
		   created_at = EXCLUDED.created_at`,
		res.VideoID, res.Meta.Title, res.Meta.Channel, res.Meta.Duration,
		res.Meta.URL, res.Transcript, res.Notes,
		toolsJSON, res.FailedBranch, res.ProcessingTime, res.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert video_notes: %w", err)
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, videoID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM video_notes WHERE video_id = $1`, videoID)
	return err
}

// List returns recent, non-expired results newest first. A non-empty search
// narrows to rows whose title or channel contains it, case-insensitively.
func (s *Postgres) List(ctx context.Context, limit int, search string) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT video_id, title, channel, duration,
	                 jsonb_array_length(tools), failed_branch, processing_time, created_at
	          FROM video_notes`
	var (
		conds []string
		args  []any
	)
	if s.ttl > 0 {
		args = append(args, time.Now().Add(-s.ttl))
		conds = append(conds, fmt.Sprintf("created_at > $%d", len(args)))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR channel ILIKE $%d)", len(args), len(args)))
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list video_notes: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.VideoID, &sm.Title, &sm.Channel, &sm.Duration,
			&sm.ToolCount, &sm.FailedBranch, &sm.ProcessingTime, &sm.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *Postgres) expired(createdAt time.Time) bool {
	return s.ttl > 0 && time.Since(createdAt) > s.ttl
}
