package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JustinTDCT/StoryDraw/internal/httputil"
)

type Handler struct {
	tokens *Tokens
	log    *zap.Logger
	secure bool
}

func NewHandler(tokens *Tokens, log *zap.Logger, secureCookie bool) *Handler {
	return &Handler{tokens: tokens, log: log, secure: secureCookie}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.issue)
	return r
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	visitorID, token, expires, err := h.tokens.Issue()
	if err != nil {
		h.log.Error("issue visitor token", zap.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to issue visitor token")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"visitor_id": visitorID,
		"token":      token,
		"expires_at": expires,
	})
}
