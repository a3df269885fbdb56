package console

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/continuum/internal/core/domain"
)

// SessionCookie holds the console session token
const SessionCookie = "admin_token"

type contextKey string

const authContextKey contextKey = "auth_context"

// RequireSession rejects requests without a live console session. The token
// is read from the admin_token cookie, or from an Authorization bearer header.
func (s *Server) RequireSession(next http.Handler) http.Handler {
	return s.sessionGuard(nil)(next)
}

// sessionGuard is RequireSession with a hook run on every rejection.
func (s *Server) sessionGuard(onReject func()) func(http.Handler) http.Handler {
	reject := func(w http.ResponseWriter) {
		if onReject != nil {
			onReject()
		}
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" {
				reject(w)
				return
			}

			authCtx, err := s.auth.ValidateToken(r.Context(), token)
			if err != nil {
				s.logger.DebugContext(r.Context(), "session rejected", "error", err)
				reject(w)
				return
			}

			ctx := context.WithValue(r.Context(), authContextKey, authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAuthContext retrieves the session from request context
func GetAuthContext(ctx context.Context) *domain.AuthContext {
	authCtx, _ := ctx.Value(authContextKey).(*domain.AuthContext)
	return authCtx
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// handleLogin checks the admin secret and opens a session. The secret is
// accepted as JSON {"secret": ...} or as a form field.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var secret string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Secret string `json:"secret"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		secret = body.Secret
	} else {
		secret = r.FormValue("secret")
	}

	resp, err := s.auth.Login(r.Context(), domain.LoginRequest{
		Secret:    secret,
		UserAgent: r.UserAgent(),
		IPAddress: r.RemoteAddr,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.logger.WarnContext(r.Context(), "console login failed", "ip", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.logger.ErrorContext(r.Context(), "console login error", "error", err)
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    resp.Token,
		Path:     "/",
		Expires:  resp.ExpiresAt,
		MaxAge:   int(time.Until(resp.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "expires_at": resp.ExpiresAt})
}

// handleLogout ends the session and clears the cookie
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), sessionToken(r)); err != nil {
		s.logger.WarnContext(r.Context(), "logout failed", "error", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleSession returns the current session
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, GetAuthContext(r.Context()))
}
