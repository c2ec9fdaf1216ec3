package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/and161185/authgate/internal/model"
	"github.com/and161185/authgate/internal/service"
)

type ctxKey int

const (
	sessionKey ctxKey = iota
	requestIDKey
)

// WithSession stores the authenticated caller in context.
func WithSession(ctx context.Context, s *service.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromCtx returns the caller stored by WithSession.
func SessionFromCtx(ctx context.Context) (*service.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*service.Session)
	return s, ok && s != nil
}

// WithRequestID stores the request id in context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromCtx returns the request id or "".
func RequestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// requestMeta collects the client data passed down to the service layer.
func requestMeta(r *http.Request) model.RequestMeta {
	return model.RequestMeta{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		RequestID: RequestIDFromCtx(r.Context()),
	}
}

// requireSession reconciles the bearer token and stores the session. The
// optional body {"session": {"refresh_token", "expires_at"}} is forwarded as
// refresh material.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body sessionRequest
		if err := decode(r, &body); err != nil {
			s.fail(w, r, err)
			return
		}
		var refresh *model.RefreshMaterial
		if body.Session != nil {
			refresh = &model.RefreshMaterial{Token: body.Session.RefreshToken, ExpiresAt: body.Session.ExpiresAt}
		}

		sess, err := s.auth.CheckLogin(r.Context(), bearerToken(r), refresh)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}
