package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/meshgate-core/internal/audit"
	"github.com/nerrad567/meshgate-core/internal/device"
)

// updateDeviceRequest is the request body for PATCH /devices/{id}.
type updateDeviceRequest struct {
	Description string `json:"description"`
}

// handleListDevices returns every device joined with its gateway, ordered
// by gateway name, type and name.
//
// Query parameters:
//   - type: only devices of this type (CAMERA, SENSOR_PRESENCA, ...)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var (
		devices []device.View
		err     error
	)
	if t := r.URL.Query().Get("type"); t != "" {
		devices, err = s.devices.ListByType(r.Context(), t)
	} else {
		devices, err = s.devices.List(r.Context())
	}
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	d, err := s.devices.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// handleUpdateDevice edits a device description, the only admin-mutable field.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var req updateDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	d, err := s.devices.UpdateDescription(r.Context(), chi.URLParam(r, "id"), req.Description)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.auditLog(audit.ActionUpdate, "device", d.ID, subjectFrom(r.Context()), map[string]any{"description": d.Description})
	writeJSON(w, http.StatusOK, d)
}

// handleDeleteDevice removes a device. A gateway that still reports it
// recreates it, with a new ID, on its next registration.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.devices.Delete(r.Context(), id); err != nil {
		s.writeAppError(w, r, err)
		return
	}

	s.auditLog(audit.ActionDelete, "device", id, subjectFrom(r.Context()), nil)
	w.WriteHeader(http.StatusNoContent)
}
