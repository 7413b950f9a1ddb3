package server

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/notelens/internal/notes"
	"github.com/anatolykoptev/notelens/internal/store"
	"github.com/anatolykoptev/notelens/internal/youtube"
)

// ProcessVideoInput is the input for the process_video MCP tool.
type ProcessVideoInput struct {
	URL   string `json:"url"`
	Force bool   `json:"force,omitempty"`
}

// ProcessVideoOutput is the collected (non-streaming) result of one run.
type ProcessVideoOutput struct {
	VideoID        string              `json:"video_id"`
	Title          string              `json:"video_title"`
	Channel        string              `json:"channel_name"`
	Duration       int                 `json:"duration"`
	Notes          string              `json:"lecture_notes"`
	Tools          []notes.ToolMention `json:"ai_tools"`
	FailedBranch   string              `json:"failed_branch,omitempty"`
	CacheHit       bool                `json:"cache_hit"`
	ProcessingTime float64             `json:"processing_time_seconds"`
}

// VideoHistoryInput is the input for the video_history MCP tool.
type VideoHistoryInput struct {
	Limit  int    `json:"limit,omitempty"`
	Search string `json:"search,omitempty"`
}

// VideoHistoryOutput lists recently processed videos.
type VideoHistoryOutput struct {
	Videos []store.Summary `json:"videos"`
	Total  int             `json:"total"`
}

// RegisterTools registers the MCP tools: process_video, video_history.
func RegisterTools(srv *mcp.Server, orch Processor, st store.Store) {
	registerProcessVideo(srv, orch)
	registerVideoHistory(srv, st)
}

func registerProcessVideo(srv *mcp.Server, orch Processor) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "process_video",
		Description: "Generate markdown lecture notes and an AI-tool list from a YouTube video transcript. Accepts a YouTube URL or bare video ID. Results are cached; set force=true to regenerate.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input ProcessVideoInput) (*mcp.CallToolResult, ProcessVideoOutput, error) {
		if input.URL == "" {
			return nil, ProcessVideoOutput{}, errors.New("url is required")
		}
		videoID, err := youtube.ExtractVideoID(input.URL)
		if err != nil {
			return nil, ProcessVideoOutput{}, err
		}

		out, err := collectRun(orch.Process(ctx, videoID, input.Force))
		if err != nil {
			return nil, ProcessVideoOutput{}, err
		}
		out.VideoID = videoID
		return nil, out, nil
	})
}

// collectRun drains an event stream into a single output, the MCP tool being
// a non-streaming consumer of the same pipeline.
func collectRun(events <-chan notes.Event) (ProcessVideoOutput, error) {
	var (
		out ProcessVideoOutput
		sb  strings.Builder
	)
	out.Tools = []notes.ToolMention{}
	for ev := range events {
		switch e := ev.(type) {
		case notes.MetadataEvent:
			out.Title = e.Meta.Title
			out.Channel = e.Meta.Channel
			out.Duration = e.Meta.Duration
		case notes.ChunkEvent:
			sb.WriteString(e.Data)
		case notes.ToolsEvent:
			if e.Tools != nil {
				out.Tools = e.Tools
			}
		case notes.CompleteEvent:
			out.FailedBranch = e.FailedBranch
			out.CacheHit = e.CacheHit
			out.ProcessingTime = e.ProcessingTime
		case notes.ErrorEvent:
			return ProcessVideoOutput{}, errors.New(e.Reason)
		}
	}
	out.Notes = sb.String()
	return out, nil
}

func registerVideoHistory(srv *mcp.Server, st store.Store) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "video_history",
		Description: "List recently processed YouTube videos with title, channel, tool count, and processing time. Newest first; search filters by title or channel substring.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input VideoHistoryInput) (*mcp.CallToolResult, VideoHistoryOutput, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = 20
		}
		videos, err := st.List(ctx, min(limit, 200), input.Search)
		if err != nil {
			return nil, VideoHistoryOutput{}, err
		}
		return nil, VideoHistoryOutput{Videos: videos, Total: len(videos)}, nil
	})
}
