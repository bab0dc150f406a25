package server

import (
	"net/http"

	"photostore/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	stats, err := s.photos.Info(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.InfoResponse{
		HashAlgorithm:    s.photos.Algorithm(),
		SchemaVersion:    stats.SchemaVersion,
		AvailableVersion: stats.AvailableVersion,
		Originals:        stats.Originals,
		Derivatives:      stats.Derivatives,
		Unreferenced:     stats.Unreferenced,
		TotalBytes:       stats.TotalBytes,
	})
}
