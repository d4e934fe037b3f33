package server

import (
	"context"
	"net/http"

	"github.com/tournevent/fezdelivery/pkg/delivery"
	"github.com/tournevent/fezdelivery/pkg/session"
)

// Session identification.
const (
	SessionCookie = "fez_session"
	SessionHeader = "X-Fez-Session"
)

type sessionKey struct{}

// sessionMiddleware resolves the visitor session from the header or cookie,
// issuing a new cookie when neither is present.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := r.Header.Get(SessionHeader)
		if sid == "" {
			if c, err := r.Cookie(SessionCookie); err == nil {
				sid = c.Value
			}
		}
		if sid == "" {
			sid = session.NewID()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    sid,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		w.Header().Set(SessionHeader, sid)

		ctx := context.WithValue(r.Context(), sessionKey{}, sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionID returns the session id attached to ctx.
func SessionID(ctx context.Context) string {
	sid, _ := ctx.Value(sessionKey{}).(string)
	return sid
}

func (s *Server) quoteCache(r *http.Request) *delivery.QuoteCache {
	return delivery.NewQuoteCache(s.deps.Sessions, SessionID(r.Context()))
}
