package server

import (
	"net/http"
	"strconv"

	"github.com/anatolykoptev/notelens/internal/youtube"
)

// handleHistoryList returns recent processed videos, newest first.
// Query params: limit (default 50, max 200), search (title/channel substring).
func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 200)
	}

	items, err := s.store.List(r.Context(), limit, r.URL.Query().Get("search"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history lookup failed")
		return
	}
	respondJSON(w, http.StatusOK, apiResponse{Success: true, Data: items})
}

// handleHistoryDetail returns the full stored result for one video.
func (s *Server) handleHistoryDetail(w http.ResponseWriter, r *http.Request) {
	videoID, err := youtube.ExtractVideoID(r.PathValue("videoID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.store.Get(r.Context(), videoID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "history lookup failed")
		return
	}
	if res == nil {
		respondError(w, http.StatusNotFound, "no result for this video")
		return
	}
	respondJSON(w, http.StatusOK, apiResponse{Success: true, Data: res})
}

// handleHistoryDelete removes one stored result.
func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	videoID, err := youtube.ExtractVideoID(r.PathValue("videoID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.Delete(r.Context(), videoID); err != nil {
		respondError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	respondJSON(w, http.StatusOK, apiResponse{Success: true})
}
