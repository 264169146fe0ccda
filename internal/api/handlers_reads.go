package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/JustinTDCT/StoryDraw/internal/auth"
	"github.com/JustinTDCT/StoryDraw/internal/httputil"
	"github.com/JustinTDCT/StoryDraw/internal/reads"
)

type readRequest struct {
	Slug string `json:"slug"`
}

// POST /api/v1/reads
func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	visitorID := auth.VisitorFromContext(r.Context())
	var req readRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	added, err := s.reads.MarkRead(r.Context(), visitorID, req.Slug)
	if err != nil {
		if errors.Is(err, reads.ErrEmptySlug) {
			httputil.WriteError(w, http.StatusBadRequest, "INVALID_PARAMS", "slug required")
			return
		}
		s.log.Error("mark read", zap.String("visitor", visitorID), zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to record read")
		return
	}
	view, err := s.registry.Eligibility(r.Context(), visitorID)
	if err != nil {
		s.log.Error("load eligibility", zap.String("visitor", visitorID), zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to load eligibility")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"added": added,
		"view":  view,
	})
}
