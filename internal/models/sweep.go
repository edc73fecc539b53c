package models

import "time"

// Consistency issue types found by a sweep.
const (
	IssueOrphanBlob     = "orphan_blob"
	IssueMissingBlob    = "missing_blob"
	IssueDigestMismatch = "digest_mismatch"
)

// SweepIssue is one inconsistency between the record table and the blob directory.
type SweepIssue struct {
	Type      string    `json:"type" yaml:"type"`
	RecordID  int64     `json:"record_id,omitempty" yaml:"record_id,omitempty"`
	BlobID    string    `json:"blob_id" yaml:"blob_id"`
	SizeBytes int64     `json:"size_bytes,omitempty" yaml:"size_bytes,omitempty"`
	ModTime   time.Time `json:"mod_time,omitzero" yaml:"mod_time,omitempty"`
	Deleted   bool      `json:"deleted,omitempty" yaml:"deleted,omitempty"`
	Detail    string    `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// SweepReport summarizes one reconciliation run.
type SweepReport struct {
	RecordsChecked int          `json:"records_checked" yaml:"records_checked"`
	BlobsChecked   int          `json:"blobs_checked" yaml:"blobs_checked"`
	OrphanBlobs    int          `json:"orphan_blobs" yaml:"orphan_blobs"`
	MissingBlobs   int          `json:"missing_blobs" yaml:"missing_blobs"`
	DigestMismatch int          `json:"digest_mismatches" yaml:"digest_mismatches"`
	DeletedCount   int          `json:"deleted_count" yaml:"deleted_count"`
	FailedCount    int          `json:"failed_count" yaml:"failed_count"`
	ReclaimedBytes int64        `json:"reclaimed_bytes" yaml:"reclaimed_bytes"`
	DryRun         bool         `json:"dry_run" yaml:"dry_run"`
	Issues         []SweepIssue `json:"issues" yaml:"issues"`
}

// Clean reports whether the sweep found nothing to act on.
func (r SweepReport) Clean() bool {
	return r.OrphanBlobs == 0 && r.MissingBlobs == 0 && r.DigestMismatch == 0
}
