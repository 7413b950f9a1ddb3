package server

import (
	"log/slog"
	"net/http"

	"github.com/anatolykoptev/notelens/internal/youtube"
)

// handleProcess streams processing events for one video as SSE.
// Query params: url (YouTube URL or bare video ID, required), force.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	input := r.URL.Query().Get("url")
	if input == "" {
		input = r.URL.Query().Get("video_id")
	}
	if input == "" {
		respondError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	videoID, err := youtube.ExtractVideoID(input)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	force := r.URL.Query().Get("force") == "true" || r.URL.Query().Get("force") == "1"

	// Generation is the paid path; cached replays go through the same gate
	// since we cannot know hit/miss before starting.
	if s.limiter != nil && !s.limiter.Allow() {
		respondError(w, http.StatusTooManyRequests, "rate limit exceeded, retry shortly")
		return
	}

	sse, ok := newSSEWriter(w)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events := s.orch.Process(r.Context(), videoID, force)
	for ev := range events {
		if err := sse.send(ev); err != nil {
			slog.Debug("sse write failed, client gone",
				slog.String("video_id", videoID), slog.Any("error", err))
			// Keep draining so the producer is never blocked.
			for range events {
			}
			return
		}
	}
}
