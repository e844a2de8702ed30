package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/taskforge-io/taskforge/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

// handleLogin validates credentials and returns a session token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, token, err := s.sessions.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.logger.Error("login", "err", err)
		writeJSONError(w, http.StatusInternalServerError, "login failed")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// handleLogout clears the persisted session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout()
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// handleMe returns the user named by the request's token.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u := userFromContext(r.Context())
	if u == nil {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// authMiddleware requires a valid Bearer token and places the user it names
// into the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		user, err := s.sessions.VerifyToken(token)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(contextWithUser(r.Context(), user)))
	})
}

// managerOnly rejects requests from non-manager users. Must run inside
// authMiddleware.
func (s *Server) managerOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := userFromContext(r.Context())
		if u == nil || u.Role != auth.RoleManager {
			writeJSONError(w, http.StatusForbidden, "manager role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
