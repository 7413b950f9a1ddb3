package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/anatolykoptev/notelens/internal/notes"
)

// Wire shapes for the SSE stream. The tag set is closed: encodeEvent fails
// on anything it does not recognize rather than inventing a new tag.

type wireStatus struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type wireMetadata struct {
	Type       string `json:"type"`
	VideoID    string `json:"video_id"`
	Title      string `json:"video_title"`
	Channel    string `json:"channel_name"`
	Duration   int    `json:"duration"`
	URL        string `json:"video_url"`
	Transcript string `json:"transcript,omitempty"`
}

type wireChunk struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type wireNotesComplete struct {
	Type string `json:"type"`
}

type wireTools struct {
	Type string              `json:"type"`
	Data []notes.ToolMention `json:"data"`
}

type wireComplete struct {
	Type           string  `json:"type"`
	FailedBranch   string  `json:"failed_branch,omitempty"`
	CacheHit       bool    `json:"cache_hit"`
	ProcessingTime float64 `json:"processing_time_seconds"`
}

type wireError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// encodeEvent marshals one stream event into its wire JSON.
func encodeEvent(ev notes.Event) ([]byte, error) {
	switch e := ev.(type) {
	case notes.StatusEvent:
		return json.Marshal(wireStatus{Type: "status", Message: e.Message})
	case notes.MetadataEvent:
		return json.Marshal(wireMetadata{
			Type:       "metadata",
			VideoID:    e.Meta.VideoID,
			Title:      e.Meta.Title,
			Channel:    e.Meta.Channel,
			Duration:   e.Meta.Duration,
			URL:        e.Meta.URL,
			Transcript: e.Transcript,
		})
	case notes.ChunkEvent:
		return json.Marshal(wireChunk{Type: "chunk", Data: e.Data})
	case notes.NotesCompleteEvent:
		return json.Marshal(wireNotesComplete{Type: "notes_complete"})
	case notes.ToolsEvent:
		tools := e.Tools
		if tools == nil {
			tools = []notes.ToolMention{}
		}
		return json.Marshal(wireTools{Type: "tools", Data: tools})
	case notes.CompleteEvent:
		return json.Marshal(wireComplete{
			Type:           "complete",
			FailedBranch:   e.FailedBranch,
			CacheHit:       e.CacheHit,
			ProcessingTime: e.ProcessingTime,
		})
	case notes.ErrorEvent:
		return json.Marshal(wireError{Type: "error", Error: e.Reason})
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type())
	}
}

// sseWriter frames encoded events for a text/event-stream response.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	return &sseWriter{w: w, flusher: flusher}, true
}

func (s *sseWriter) send(ev notes.Event) error {
	data, err := encodeEvent(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
