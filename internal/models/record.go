package models

import "time"

// Record is one registered health-data submission.
//
// Date, Time, BlobID, SizeBytes and Digest are written once at registration;
// only Name, Age and Gender change afterwards.
type Record struct {
	ID        int64  `json:"id" yaml:"id"`
	Date      string `json:"date" yaml:"date"`
	Time      string `json:"time" yaml:"time"`
	Name      string `json:"name" yaml:"name"`
	Age       int    `json:"age" yaml:"age"`
	Gender    Gender `json:"gender" yaml:"gender"`
	BlobID    string `json:"blob_id" yaml:"blob_id"`
	SizeBytes int64  `json:"size_bytes" yaml:"size_bytes"`
	Digest    string `json:"digest,omitempty" yaml:"digest,omitempty"`
}

// RegisteredAt parses Date and Time back into a local timestamp.
func (r Record) RegisteredAt() (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, r.Date+" "+r.Time, time.Local)
}

// StampFrom sets Date and Time from a single instant.
func (r *Record) StampFrom(now time.Time) {
	r.Date = now.Format(DateLayout)
	r.Time = now.Format(TimeLayout)
}
