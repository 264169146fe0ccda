package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/JustinTDCT/StoryDraw/internal/config"
	"github.com/JustinTDCT/StoryDraw/internal/httputil"
	"github.com/JustinTDCT/StoryDraw/internal/repository"
)

const (
	defaultEntryLimit = 100
	maxEntryLimit     = 1000
)

// drawParam defaults to the drawing currently open.
func (s *Server) drawParam(r *http.Request) string {
	if d := r.URL.Query().Get("draw"); d != "" {
		return d
	}
	return s.registry.Schedule().NextLabel(s.now())
}

// GET /api/v1/admin/entries
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	limit := defaultEntryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := cast.ToIntE(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, http.StatusBadRequest, "INVALID_PARAMS", "limit must be a positive integer")
			return
		}
		limit = min(n, maxEntryLimit)
	}
	draw := s.drawParam(r)
	entries, err := s.entries.ListEntries(r.Context(), draw, limit)
	if err != nil {
		s.log.Error("list entries", zap.String("draw", draw), zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to list entries")
		return
	}
	if entries == nil {
		entries = []repository.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"draw":    draw,
		"entries": entries,
	})
}

// GET /api/v1/admin/entries/count
func (s *Server) handleCountEntries(w http.ResponseWriter, r *http.Request) {
	draw := s.drawParam(r)
	n, err := s.entries.CountEntries(r.Context(), draw)
	if err != nil {
		s.log.Error("count entries", zap.String("draw", draw), zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to count entries")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"draw":  draw,
		"count": n,
	})
}

type settingRequest struct {
	Value string `json:"value"`
}

// GET /api/v1/admin/settings
func (s *Server) handleListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settings.GetAll(r.Context())
	if err != nil {
		s.log.Error("list settings", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to list settings")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, settings)
}

// PUT /api/v1/admin/settings/{key}
// Overrides take effect at the next start.
func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var req settingRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	if err := config.ValidateSetting(key, req.Value); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_PARAMS", err.Error())
		return
	}
	if err := s.settings.Set(r.Context(), key, req.Value); err != nil {
		s.log.Error("save setting", zap.String("key", key), zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to save setting")
		return
	}
	s.log.Info("setting updated", zap.String("key", key))
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"key": key, "value": req.Value})
}

// DELETE /api/v1/admin/settings/{key}
func (s *Server) handleDeleteSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := s.settings.Delete(r.Context(), key); err != nil {
		s.log.Error("delete setting", zap.String("key", key), zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete setting")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
