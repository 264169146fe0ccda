package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JustinTDCT/StoryDraw/internal/auth"
	"github.com/JustinTDCT/StoryDraw/internal/httputil"
	"github.com/JustinTDCT/StoryDraw/internal/lottery"
)

type clickRequest struct {
	Inside bool `json:"inside"`
}

type submitRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Email   string `json:"email"`
}

type sessionResponse struct {
	SessionID uuid.UUID    `json:"session_id"`
	View      lottery.View `json:"view"`
}

// GET /api/v1/lottery/eligibility
func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	visitorID := auth.VisitorFromContext(r.Context())
	view, err := s.registry.Eligibility(r.Context(), visitorID)
	if err != nil {
		s.log.Error("load eligibility", zap.String("visitor", visitorID), zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to load eligibility")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// POST /api/v1/lottery/sessions
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	visitorID := auth.VisitorFromContext(r.Context())
	id, tracker, err := s.registry.Open(r.Context(), visitorID)
	if err != nil {
		s.writeLotteryError(w, visitorID, err)
		return
	}
	view, err := tracker.View(r.Context())
	if err != nil {
		s.writeLotteryError(w, visitorID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sessionResponse{SessionID: id, View: view})
}

// GET /api/v1/lottery/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, tracker, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}
	view, err := tracker.View(r.Context())
	if err != nil {
		s.writeLotteryError(w, auth.VisitorFromContext(r.Context()), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sessionResponse{SessionID: id, View: view})
}

// POST /api/v1/lottery/sessions/{id}/click
func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	id, tracker, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req clickRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	dismissed := tracker.HandleClick(req.Inside)
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
		"dismissed":  dismissed,
	})
}

// DELETE /api/v1/lottery/sessions/{id}
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id, tracker, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}
	if !tracker.Close() {
		s.registry.Remove(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/lottery/sessions/{id}/submit
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	id, tracker, ok := s.sessionFromRequest(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if err := httputil.ReadJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	view, err := tracker.Submit(r.Context(), lottery.ContactRecord{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
		Email:   req.Email,
	})
	if err != nil {
		s.writeLotteryError(w, auth.VisitorFromContext(r.Context()), err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sessionResponse{SessionID: id, View: view})
}

func (s *Server) sessionFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, *lottery.Tracker, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_PARAMS", "invalid session id")
		return uuid.Nil, nil, false
	}
	tracker, err := s.registry.Get(id, auth.VisitorFromContext(r.Context()))
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "session not found")
		return uuid.Nil, nil, false
	}
	return id, tracker, true
}

func (s *Server) writeLotteryError(w http.ResponseWriter, visitorID string, err error) {
	body := httputil.ErrorBody{Message: err.Error(), Notice: lottery.Notice(err)}
	var (
		ve     *lottery.ValidationError
		se     *lottery.SubmissionError
		status int
	)
	switch {
	case errors.As(err, &ve):
		status, body.Code, body.Field, body.Notice = http.StatusUnprocessableEntity, "VALIDATION", ve.Field, ve.Message
	case errors.Is(err, lottery.ErrNotEligible):
		status, body.Code = http.StatusConflict, "NOT_ELIGIBLE"
	case errors.Is(err, lottery.ErrAlreadySubmitted):
		status, body.Code = http.StatusConflict, "ALREADY_SUBMITTED"
	case errors.Is(err, lottery.ErrSubmissionInFlight):
		status, body.Code, body.Notice = http.StatusConflict, "IN_FLIGHT", ""
	case errors.Is(err, lottery.ErrTornDown), errors.Is(err, lottery.ErrSessionNotFound):
		status, body.Code, body.Notice = http.StatusGone, "SESSION_CLOSED", ""
	case errors.As(err, &se):
		status, body.Code = http.StatusBadGateway, "SUBMIT_FAILED"
	default:
		s.log.Error("lottery request failed", zap.String("visitor", visitorID), zap.Error(err))
		status, body.Code, body.Message = http.StatusInternalServerError, "INTERNAL", "internal server error"
	}
	httputil.WriteErrorBody(w, status, body)
}
