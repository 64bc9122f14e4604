package http

import (
	"net/http"
	"strings"

	"keeptrack/internal/log"
)

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeMessage(w, r, http.StatusServiceUnavailable, "authentication is not configured")
		return
	}
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpSignIn, err)
		return
	}
	session, err := s.auth.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, log.OpSignIn, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeMessage(w, r, http.StatusServiceUnavailable, "authentication is not configured")
		return
	}
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpSignIn, err)
		return
	}
	session, err := s.auth.SignIn(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		if statusFor(err) == http.StatusUnauthorized {
			s.unauthorized(w, r, err.Error())
			return
		}
		writeError(w, r, log.OpSignIn, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeMessage(w, r, http.StatusServiceUnavailable, "authentication is not configured")
		return
	}
	token := bearerToken(r)
	if token == "" {
		s.unauthorized(w, r, "authentication required")
		return
	}
	if err := s.auth.SignOut(r.Context(), token); err != nil {
		if statusFor(err) == http.StatusUnauthorized {
			s.unauthorized(w, r, err.Error())
			return
		}
		writeError(w, r, log.OpSignOut, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
