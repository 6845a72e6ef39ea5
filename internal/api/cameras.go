package api

import (
	"net/http"

	"github.com/nerrad567/meshgate-core/internal/apperr"
)

// handleListCameras returns the relay's live paths prepared for display.
// An unreachable relay is a 502, never an empty list.
func (s *Server) handleListCameras(w http.ResponseWriter, r *http.Request) {
	views, err := s.cameras.List(r.Context())
	if err != nil {
		s.cameraError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cameras": views, "count": len(views)})
}

// handleListCameraDevices returns registered camera devices merged with
// the readiness of their relay paths.
func (s *Server) handleListCameraDevices(w http.ResponseWriter, r *http.Request) {
	views, err := s.cameras.ListDeviceViews(r.Context())
	if err != nil {
		s.cameraError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cameras": views, "count": len(views)})
}

func (s *Server) cameraError(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.Is(err, apperr.KindUpstreamUnavailable) {
		s.metrics.RecordUpstreamError()
	}
	s.writeAppError(w, r, err)
}
