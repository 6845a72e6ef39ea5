package api

import (
	"net/http"

	"github.com/nerrad567/meshgate-core/internal/relay"
)

// relayAuthResponse is the body of an allow answer. The relay only looks
// at the status code.
type relayAuthResponse struct {
	Allow  bool   `json:"allow"`
	Action string `json:"action"`
}

// handleRelayAuth answers the relay's authorization webhook: 200 allows
// the action, anything else denies it. A malformed body is a logged deny.
func (s *Server) handleRelayAuth(w http.ResponseWriter, r *http.Request) {
	var req relay.Request
	if err := decodeJSON(r, &req); err != nil {
		s.logger.Warn("relay webhook body invalid",
			"ip", r.RemoteAddr,
			"request_id", r.Context().Value(ctxKeyRequestID),
			"error", err,
		)
		writeUnauthorized(w, "action not authorised")
		return
	}

	d := s.authorizer.Authorize(r.Context(), req)
	if !d.Allow {
		writeUnauthorized(w, "action not authorised")
		return
	}
	writeJSON(w, http.StatusOK, relayAuthResponse{Allow: true, Action: d.Action.String()})
}
