package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JustinTDCT/StoryDraw/internal/auth"
	"github.com/JustinTDCT/StoryDraw/internal/config"
	"github.com/JustinTDCT/StoryDraw/internal/httputil"
	"github.com/JustinTDCT/StoryDraw/internal/lottery"
	"github.com/JustinTDCT/StoryDraw/internal/repository"
)

// ReadTracker records article reads per visitor.
type ReadTracker interface {
	MarkRead(ctx context.Context, visitorID, slug string) (bool, error)
}

// EntryStore is the admin view over recorded entries.
type EntryStore interface {
	RecordEntry(ctx context.Context, e *repository.Entry) error
	ListEntries(ctx context.Context, drawLabel string, limit int) ([]repository.Entry, error)
	CountEntries(ctx context.Context, drawLabel string) (int, error)
}

// SettingsStore holds runtime overrides read at startup.
type SettingsStore interface {
	GetAll(ctx context.Context) (map[string]string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Pinger is a dependency checked by /health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Registry *lottery.Registry
	Reads    ReadTracker
	Entries  EntryStore
	Settings SettingsStore
	Tokens   *auth.Tokens
	Hub      *WSHub
	Checks   map[string]Pinger
	Version  string
	Logger   *zap.Logger
}

type Server struct {
	config   *config.Config
	registry *lottery.Registry
	reads    ReadTracker
	entries  EntryStore
	settings SettingsStore
	tokens   *auth.Tokens
	mw       *auth.Middleware
	wsHub    *WSHub
	checks   map[string]Pinger
	version  string
	log      *zap.Logger
	now      func() time.Time

	readLimit   *rateLimiter
	submitLimit *rateLimiter
	router      chi.Router
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	hub := deps.Hub
	if hub == nil {
		hub = NewWSHub(log)
	}
	s := &Server{
		config:      cfg,
		registry:    deps.Registry,
		reads:       deps.Reads,
		entries:     deps.Entries,
		settings:    deps.Settings,
		tokens:      deps.Tokens,
		mw:          auth.NewMiddleware(deps.Tokens, cfg.AdminUser, cfg.AdminPasswordHash),
		wsHub:       hub,
		checks:      deps.Checks,
		version:     deps.Version,
		log:         log.With(zap.String("component", "api")),
		now:         time.Now,
		readLimit:   newRateLimiter(readRate, readBurst),
		submitLimit: newRateLimiter(submitRate, submitBurst),
	}
	s.setupRoutes()
	return s
}

func (s *Server) WSHub() *WSHub {
	return s.wsHub
}

// Handler is the full middleware-wrapped router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(securityHeadersMiddleware)
	origin, _ := s.siteOrigin()
	r.Use(corsMiddleware(origin))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Mount("/visitors", s.readLimit.middleware(auth.NewHandler(s.tokens, s.log, s.secureCookies()).Router()))
		r.Get("/ws", s.handleWebSocket)

		// Visitor
		r.Group(func(r chi.Router) {
			r.Use(s.mw.RequireVisitor)
			r.With(s.readLimit.middleware).Post("/reads", s.handleMarkRead)

			r.Route("/lottery", func(r chi.Router) {
				r.Use(s.readLimit.middleware)
				r.Get("/eligibility", s.handleEligibility)
				r.Post("/sessions", s.handleOpenSession)
				r.Get("/sessions/{id}", s.handleGetSession)
				r.Post("/sessions/{id}/click", s.handleClick)
				r.Delete("/sessions/{id}", s.handleCloseSession)
				r.With(s.submitLimit.middleware).Post("/sessions/{id}/submit", s.handleSubmit)
			})
		})

		// Admin
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.mw.RequireAdmin)
			r.Get("/entries", s.handleListEntries)
			r.Get("/entries/count", s.handleCountEntries)
			r.Get("/settings", s.handleListSettings)
			r.Put("/settings/{key}", s.handlePutSetting)
			r.Delete("/settings/{key}", s.handleDeleteSetting)
		})
	})

	s.router = r
}

// siteOrigin returns scheme://host of SITE_URL and its host. Only that
// origin may call the API with credentials or open the event socket.
func (s *Server) siteOrigin() (origin, host string) {
	u, err := url.Parse(s.config.SiteURL)
	if err != nil || u.Host == "" {
		return "", ""
	}
	return u.Scheme + "://" + u.Host, u.Host
}

func (s *Server) secureCookies() bool {
	return strings.HasPrefix(s.config.SiteURL, "https://")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	healthy := true
	for name, p := range s.checks {
		if err := p.PingContext(ctx); err != nil {
			s.log.Warn("health check failed", zap.String("check", name), zap.Error(err))
			status[name] = "down"
			healthy = false
			continue
		}
		status[name] = "up"
	}
	if !healthy {
		httputil.WriteErrorBody(w, http.StatusServiceUnavailable, httputil.ErrorBody{Code: "UNHEALTHY", Message: "dependency check failed"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":    s.version,
		"threshold":  s.registry.Threshold(),
		"next_draw":  s.registry.Schedule().NextLabel(s.now()),
		"sessions":   s.registry.Len(),
		"ws_clients": s.wsHub.ClientCount(),
	})
}
