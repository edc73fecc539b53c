package server

import (
	"net/http"

	"healthrec/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.records.Info(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := api.InfoResponse{
		DBPath:        s.dbPath,
		DataDir:       s.dataDir,
		SchemaVersion: info.SchemaVersion,
		TotalRecords:  info.TotalRecords,
		GenderCounts:  info.GenderCounts,
		BlobCount:     info.BlobCount,
		BlobBytes:     info.BlobBytes,
	}

	s.writeJSON(w, http.StatusOK, resp)
}
