package web

import (
	"net/http"

	"guild-panel/internal/apperr"
	"guild-panel/internal/session"

	"github.com/go-chi/render"
	"go.uber.org/zap"
)

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := kind.Status()
	fields := []zap.Field{
		zap.Error(err),
		zap.String("kind", kind.String()),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields...)
	} else {
		s.logger.Warn("request rejected", fields...)
	}
	writeJSON(w, r, status, errorBody{Detail: apperr.Message(err)})
}

// redirectHome sends unauthenticated callers back to the landing page.
// Form posts get 303 so the browser follows with GET.
func redirectHome(w http.ResponseWriter, r *http.Request) {
	status := http.StatusTemporaryRedirect
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		status = http.StatusSeeOther
	}
	http.Redirect(w, r, "/", status)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess session.Session)

func (s *Server) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessions.Lookup(r)
		if !ok || !sess.Authenticated() {
			s.logger.Debug("no session", zap.String("path", r.URL.Path))
			redirectHome(w, r)
			return
		}
		next(w, r, sess)
	}
}
