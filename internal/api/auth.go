package api

import (
	"errors"
	"net/http"

	"github.com/nerrad567/meshgate-core/internal/audit"
	"github.com/nerrad567/meshgate-core/internal/auth"
)

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// handleLogin checks the admin identity and returns a signed access token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.admin.Login(req.Username, req.Password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.logger.Warn("admin login rejected", "username", req.Username, "ip", r.RemoteAddr)
		}
		s.writeAppError(w, r, err)
		return
	}

	token, ttl, err := auth.GenerateAccessToken(s.admin.Username(), s.secCfg.JWT.Secret, s.secCfg.JWT.AccessTokenTTL)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.auditLog(audit.ActionLogin, "admin", s.admin.Username(), s.admin.Username(), nil)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl.Seconds()),
	})
}
