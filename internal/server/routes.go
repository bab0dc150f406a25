package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)

	// Photo metadata and lifecycle.
	mux.HandleFunc("POST /v1/photos", s.handleUpload)
	mux.HandleFunc("GET /v1/photos/{id}", s.handleGetPhoto)
	mux.HandleFunc("DELETE /v1/photos/{id}", s.handleDeletePhoto)
	mux.HandleFunc("GET /v1/uploaders/{uploader}/latest", s.handleLatest)

	// Content locators.
	mux.HandleFunc("GET /photos/{id}", s.handleContent)
	mux.HandleFunc("GET /photos/{id}/thumbnail", s.handleThumbnailContent)

	return mux
}
