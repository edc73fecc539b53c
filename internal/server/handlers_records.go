package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"healthrec/internal/api"
)

func (s *Server) handleRegisterRecord(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.uploads.MaxBytes)
	if err := r.ParseMultipartForm(s.uploads.MultipartMemory); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	age, err := parseFormAge(r.FormValue("age"))
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	file, header, err := r.FormFile("content")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("content is required"), ErrCodeMissingRequired))
		return
	}
	defer file.Close()

	if !hasUploadExtension(header.Filename, s.uploads.Extension) {
		s.writeErrorReq(w, r, http.StatusBadRequest,
			badRequestCode(fmt.Errorf("content must be a %s file", s.uploads.Extension), ErrCodeInvalidPayload))
		return
	}

	result, err := s.records.Register(r.Context(), RegisterInput{
		Name:   r.FormValue("name"),
		Age:    age,
		Gender: r.FormValue("gender"),
	}, file)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, api.RegisterResponse{ID: result.ID, BlobID: result.BlobID, Record: result.Record})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.records.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	record, err := s.records.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleSaveEdits(w http.ResponseWriter, r *http.Request) {
	var req api.SaveEditsRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	if req.Rows == nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("rows are required"), ErrCodeMissingRequired))
		return
	}

	edits := make([]RecordEdit, 0, len(req.Rows))
	for _, row := range req.Rows {
		edits = append(edits, RecordEdit{ID: row.ID, Name: row.Name, Age: row.Age, Gender: row.Gender})
	}

	result, err := s.records.SaveEdits(r.Context(), edits)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := api.SaveEditsResponse{Updated: result.Updated, Failed: make([]api.SaveEditFailure, 0, len(result.Failed))}
	for _, failure := range result.Failed {
		status := httpStatusFromError(failure.Err)
		message := failure.Err.Error()
		if status >= http.StatusInternalServerError {
			s.log().Error("save edit failed", "id", failure.ID, "error", failure.Err)
			message = "internal error"
		}
		resp.Failed = append(resp.Failed, api.SaveEditFailure{
			ID:        failure.ID,
			Error:     message,
			Code:      errorCode(status, failure.Err),
			ErrorCode: errorNumericCode(status, failure.Err),
		})
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	result, err := s.records.Delete(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeleteResponse{ID: result.ID, BlobID: result.BlobID, BlobRemoved: result.BlobRemoved})
}

func (s *Server) handleViewPayload(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	payload, err := s.records.ViewPayload(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", fmt.Sprintf("record-%d%s", id, s.uploads.Extension)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		s.log().Debug("write payload response", "id", id, "error", err)
	}
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	s.withLimiter(w, r, s.sweepLimiter, "sweep", func() {
		var req api.SweepRequest
		if r.ContentLength != 0 {
			if !s.decodeJSONReq(w, r, &req) {
				return
			}
		}

		result, err := s.records.Sweep(r.Context(), SweepOptions{Apply: req.Apply, Verify: req.Verify})
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	})
}

func parseFormAge(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, badRequestCode(fmt.Errorf("age is required"), ErrCodeInvalidAge)
	}
	age, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequestCode(fmt.Errorf("invalid age: %s", raw), ErrCodeInvalidAge)
	}
	return age, nil
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}
	return badRequestCode(err, ErrCodeInvalidArgument)
}
