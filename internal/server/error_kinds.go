package server

import (
	"errors"
	"net/http"
)

// ErrorKind is the caller-facing classification of a RecordService failure.
type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindInvalidInput   ErrorKind = "invalid_input"
	ErrorKindNotFound       ErrorKind = "not_found"
	ErrorKindBlobMissing    ErrorKind = "blob_missing"
	ErrorKindStorageFailure ErrorKind = "storage_failure"
)

// ErrorKindOf classifies err. Errors that carry no HTTP mapping are treated as
// storage failures.
func ErrorKindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}

	var apiErr apiError
	if !errors.As(err, &apiErr) {
		return ErrorKindStorageFailure
	}
	switch {
	case apiErr.code == "blob_missing":
		return ErrorKindBlobMissing
	case apiErr.status == http.StatusNotFound:
		return ErrorKindNotFound
	case apiErr.status == http.StatusBadRequest:
		return ErrorKindInvalidInput
	default:
		return ErrorKindStorageFailure
	}
}
