package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/meshgate-core/internal/audit"
	"github.com/nerrad567/meshgate-core/internal/device"
)

// createGatewayRequest is the request body for POST /gateways.
type createGatewayRequest struct {
	Name           string `json:"name"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// registerRequest is the request body for POST /gateways/register.
// Devices stays raw until the key has been checked, so a malformed list
// never outranks an invalid key.
type registerRequest struct {
	APIKey  string          `json:"api_key"`
	Devices json.RawMessage `json:"devices"`
}

// gatewayAuthRequest is the request body for POST /gateways/auth.
type gatewayAuthRequest struct {
	APIKey      string `json:"api_key"`
	LocalAPIURL string `json:"local_api_url,omitempty"`
}

// gatewayAuthResponse is the response body for a successful POST /gateways/auth.
type gatewayAuthResponse struct {
	Valid bool   `json:"valid"`
	ID    string `json:"id"`
	Name  string `json:"name"`
}

// handleListGateways returns every gateway, newest first. Key hashes are
// never serialised.
func (s *Server) handleListGateways(w http.ResponseWriter, r *http.Request) {
	gateways, err := s.gateways.List(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"gateways": gateways,
		"count":    len(gateways),
	})
}

// handleCreateGateway creates a gateway and returns its plaintext API key.
// This is the only response that ever carries the key.
func (s *Server) handleCreateGateway(w http.ResponseWriter, r *http.Request) {
	var req createGatewayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	result, err := s.gateways.Create(r.Context(), req.Name, req.OrganizationID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.auditLog(audit.ActionCreate, "gateway", result.Gateway.ID, subjectFrom(r.Context()), map[string]any{
		"name":           result.Gateway.Name,
		"api_key_prefix": result.Gateway.APIKeyPrefix,
	})
	writeJSON(w, http.StatusCreated, result)
}

// handleGetGateway returns a single gateway.
func (s *Server) handleGetGateway(w http.ResponseWriter, r *http.Request) {
	g, err := s.gateways.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleToggleGateway flips a gateway between active and inactive.
func (s *Server) handleToggleGateway(w http.ResponseWriter, r *http.Request) {
	g, err := s.gateways.ToggleActive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.auditLog(audit.ActionToggle, "gateway", g.ID, subjectFrom(r.Context()), map[string]any{"active": g.Active})
	writeJSON(w, http.StatusOK, g)
}

// handleDeleteGateway removes a gateway and, by cascade, its devices.
func (s *Server) handleDeleteGateway(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.gateways.Delete(r.Context(), id); err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.auditLog(audit.ActionDelete, "gateway", id, subjectFrom(r.Context()), nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleRegisterDevices reconciles the device inventory a gateway reports
// on boot.
func (s *Server) handleRegisterDevices(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	reg, err := s.reconciler.Register(r.Context(), req.APIKey, decodeReported(req.Devices))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.metrics.RecordRegistration(reg.Count(device.StatusCreated), reg.Count(device.StatusExisting))
	writeJSON(w, http.StatusOK, reg)
}

// handleGatewayAuth lets a gateway check its key and report the address
// of its local control API.
func (s *Server) handleGatewayAuth(w http.ResponseWriter, r *http.Request) {
	var req gatewayAuthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	g, ok := s.gateways.Authenticate(r.Context(), req.APIKey)
	s.metrics.RecordGatewayAuth(ok)
	if !ok {
		writeUnauthorized(w, "invalid api key or inactive gateway")
		return
	}

	if err := s.gateways.RecordLocalAPIURL(r.Context(), g.ID, req.LocalAPIURL); err != nil {
		s.logger.Warn("recording gateway local api url failed", "gateway_id", g.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, gatewayAuthResponse{Valid: true, ID: g.ID, Name: g.Name})
}

// decodeReported decodes the device list one entry at a time. A list that
// is not an array yields nil, which the reconciler rejects once the key is
// known to be good. An entry that does not decode becomes a blank Reported,
// which the reconciler skips without aborting the batch.
func decodeReported(raw json.RawMessage) []device.Reported {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	reported := make([]device.Reported, len(entries))
	for i, entry := range entries {
		if err := json.Unmarshal(entry, &reported[i]); err != nil {
			reported[i] = device.Reported{}
		}
	}
	return reported
}
