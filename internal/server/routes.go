package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check, info and metrics.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Records collection.
	mux.HandleFunc("POST /v1/records", s.handleRegisterRecord)
	mux.HandleFunc("GET /v1/records", s.handleListRecords)

	// Bulk edit by snapshot.
	mux.HandleFunc("POST /v1/records/save", s.handleSaveEdits)

	// Single record.
	mux.HandleFunc("GET /v1/records/{id}", s.handleGetRecord)
	mux.HandleFunc("DELETE /v1/records/{id}", s.handleDeleteRecord)
	mux.HandleFunc("GET /v1/records/{id}/payload", s.handleViewPayload)

	// Admin.
	mux.HandleFunc("POST /v1/admin/sweep", s.handleSweep)

	return mux
}
