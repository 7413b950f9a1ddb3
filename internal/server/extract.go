package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/anatolykoptev/notelens/internal/notes"
	"github.com/anatolykoptev/notelens/internal/youtube"
)

const extractTimeout = 30 * time.Second

type extractRequest struct {
	URL string `json:"url"`
}

// extractResponse carries the transcript without running the generators.
type extractResponse struct {
	VideoID    string                    `json:"video_id"`
	Title      string                    `json:"video_title"`
	Channel    string                    `json:"channel_name"`
	Duration   int                       `json:"duration"`
	URL        string                    `json:"video_url,omitempty"`
	Transcript string                    `json:"transcript"`
	Segments   []notes.TranscriptSegment `json:"segments"`
}

// handleExtract fetches metadata and transcript only, no LLM calls. Useful
// for previewing a video before committing to a full generation run.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		respondError(w, http.StatusBadRequest, "body must be JSON with a url field")
		return
	}

	videoID, err := youtube.ExtractVideoID(req.URL)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), extractTimeout)
	defer cancel()

	tr, err := s.source.Fetch(ctx, videoID)
	if err != nil {
		if errors.Is(err, notes.ErrTranscriptUnavailable) {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondError(w, http.StatusBadGateway, "transcript fetch failed")
		return
	}

	respondJSON(w, http.StatusOK, apiResponse{Success: true, Data: extractResponse{
		VideoID:    tr.Meta.VideoID,
		Title:      tr.Meta.Title,
		Channel:    tr.Meta.Channel,
		Duration:   tr.Meta.Duration,
		URL:        tr.Meta.URL,
		Transcript: tr.FullText,
		Segments:   tr.Segments,
	}})
}
