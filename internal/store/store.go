// Package store persists processed video results. Two durable backends are
// provided — Postgres for deployments, SQLite for single-node setups — plus
// a tiered in-memory/Redis wrapper that fronts either one. TTLs are enforced
// at read time: expired rows read as a miss and are lazily removed.
package store

import (
	"context"
	"time"

	"github.com/anatolykoptev/notelens/internal/notes"
)

// Summary is a history-listing projection of one stored result, without the
// transcript and notes payloads.
type Summary struct {
	VideoID        string    `json:"video_id"`
	Title          string    `json:"video_title"`
	Channel        string    `json:"channel_name"`
	Duration       int       `json:"duration"`
	ToolCount      int       `json:"tool_count"`
	FailedBranch   string    `json:"failed_branch,omitempty"`
	ProcessingTime float64   `json:"processing_time_seconds"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store is the durable result store. Get returns (nil, nil) on a miss or an
// expired entry. List filters by a case-insensitive title/channel substring
// when search is non-empty.
type Store interface {
	notes.Store
	List(ctx context.Context, limit int, search string) ([]Summary, error)
	Close()
}
