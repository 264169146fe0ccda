package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/JustinTDCT/StoryDraw/internal/httputil"
)

type contextKey string

const contextVisitor contextKey = "visitor"

// VisitorCookie carries the visitor token for browsers.
const VisitorCookie = "storydraw_visitor"

type Middleware struct {
	tokens    *Tokens
	adminUser string
	adminHash string
}

func NewMiddleware(tokens *Tokens, adminUser, adminHash string) *Middleware {
	return &Middleware{tokens: tokens, adminUser: adminUser, adminHash: adminHash}
}

func (m *Middleware) RequireVisitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)
		if token == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "visitor token required")
			return
		}
		visitorID, err := m.tokens.Parse(token)
		if err != nil {
			httputil.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid visitor token")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithVisitor(r.Context(), visitorID)))
	})
}

// RequireAdmin checks HTTP basic credentials against the configured bcrypt hash.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.adminHash == "" {
			httputil.WriteError(w, http.StatusForbidden, "FORBIDDEN", "admin access disabled")
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(user), []byte(m.adminUser)) != 1 || !CheckPassword(m.adminHash, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="storydraw"`)
			httputil.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", ErrInvalidCredentials.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithVisitor(ctx context.Context, visitorID string) context.Context {
	return context.WithValue(ctx, contextVisitor, visitorID)
}

// VisitorFromContext returns the authenticated visitor id, or "".
func VisitorFromContext(ctx context.Context) string {
	v, _ := ctx.Value(contextVisitor).(string)
	return v
}

// ExtractToken reads a bearer header, the token query param, or the cookie.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if c, err := r.Cookie(VisitorCookie); err == nil {
		return c.Value
	}
	return ""
}
