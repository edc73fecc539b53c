package api

import "healthrec/internal/models"

// ErrorResponse is a generic JSON error wrapper.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// InfoResponse is the response from GET /v1/info.
type InfoResponse struct {
	DBPath        string         `json:"db_path" yaml:"db_path"`
	DataDir       string         `json:"data_dir" yaml:"data_dir"`
	SchemaVersion int            `json:"schema_version" yaml:"schema_version"`
	TotalRecords  int            `json:"total_records" yaml:"total_records"`
	GenderCounts  map[string]int `json:"gender_counts" yaml:"gender_counts"`
	BlobCount     int            `json:"blob_count" yaml:"blob_count"`
	BlobBytes     int64          `json:"blob_bytes" yaml:"blob_bytes"`
}

// RegisterResponse is returned by POST /v1/records.
type RegisterResponse struct {
	ID     int64         `json:"id" yaml:"id"`
	BlobID string        `json:"blob_id" yaml:"blob_id"`
	Record models.Record `json:"record" yaml:"record"`
}

// RecordEditRow is one row of an edited snapshot. Snapshot files use the same
// shape, so it also carries yaml tags.
type RecordEditRow struct {
	ID     int64  `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Age    int    `json:"age" yaml:"age"`
	Gender string `json:"gender" yaml:"gender"`
}

// SaveEditsRequest is the body of POST /v1/records/save.
type SaveEditsRequest struct {
	Rows []RecordEditRow `json:"rows" yaml:"rows"`
}

// SaveEditFailure reports one row that was not saved.
type SaveEditFailure struct {
	ID        int64  `json:"id" yaml:"id"`
	Error     string `json:"error" yaml:"error"`
	Code      string `json:"code,omitempty" yaml:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty" yaml:"error_code,omitempty"`
}

// SaveEditsResponse lists saved and rejected rows.
type SaveEditsResponse struct {
	Updated []int64           `json:"updated" yaml:"updated"`
	Failed  []SaveEditFailure `json:"failed" yaml:"failed"`
}

// DeleteResponse is returned by DELETE /v1/records/{id}.
type DeleteResponse struct {
	ID          int64  `json:"id" yaml:"id"`
	BlobID      string `json:"blob_id" yaml:"blob_id"`
	BlobRemoved bool   `json:"blob_removed" yaml:"blob_removed"`
}

// SweepRequest is the body of POST /v1/admin/sweep.
type SweepRequest struct {
	Apply  bool `json:"apply"`
	Verify bool `json:"verify"`
}
