package server

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"healthrec/internal/blobstore"
	"healthrec/internal/models"
	"healthrec/internal/store"
)

// SweepOptions controls one reconciliation run.
type SweepOptions struct {
	// Apply deletes orphan blobs older than the grace period.
	Apply bool
	// Verify re-hashes every referenced blob and compares it with the stored digest.
	Verify bool
}

// Sweep compares the blob directory with the record table.
//
// Orphan blobs are reported and, with Apply, deleted once they are older than
// the grace period so that a registration still between its blob write and
// its row insert is left alone. Missing blobs are reported only.
func (s *RecordService) Sweep(ctx context.Context, opts SweepOptions) (result models.SweepReport, err error) {
	defer func() { s.observe("sweep", err) }()

	result = models.SweepReport{DryRun: !opts.Apply, Issues: []models.SweepIssue{}}
	if err := s.ready(); err != nil {
		return result, err
	}

	// Blobs are listed before refs: a blob written after the listing cannot be
	// misreported, and one committed in between shows up in refs.
	blobs, err := s.blobs.List(ctx)
	if err != nil {
		return result, storeFailure(fmt.Errorf("sweep: list blobs: %w", err))
	}
	refs, err := s.records.ListBlobRefs(ctx)
	if err != nil {
		return result, storeFailure(fmt.Errorf("sweep: list blob refs: %w", err))
	}
	result.BlobsChecked = len(blobs)
	result.RecordsChecked = len(refs)

	present := make(map[string]struct{}, len(blobs))
	var orphans []blobstore.BlobInfo
	for _, blob := range blobs {
		present[blob.BlobID] = struct{}{}
		if _, ok := refs[blob.BlobID]; !ok {
			orphans = append(orphans, blob)
		}
	}

	if err := s.sweepMissing(ctx, refs, present, &result); err != nil {
		return result, err
	}
	if opts.Verify {
		if err := s.sweepDigests(ctx, refs, present, &result); err != nil {
			return result, err
		}
	}
	if err := s.sweepOrphans(ctx, orphans, opts.Apply, &result); err != nil {
		return result, err
	}

	s.logger.Info("sweep complete",
		"dry_run", result.DryRun,
		"blobs", result.BlobsChecked,
		"records", result.RecordsChecked,
		"orphan_blobs", result.OrphanBlobs,
		"missing_blobs", result.MissingBlobs,
		"digest_mismatches", result.DigestMismatch,
		"deleted", result.DeletedCount,
	)
	return result, nil
}

// sweepMissing confirms each referenced-but-absent blob against the live row
// and the blob directory before reporting it, since a delete may have raced
// the listing.
func (s *RecordService) sweepMissing(ctx context.Context, refs map[string]int64, present map[string]struct{}, result *models.SweepReport) error {
	for _, blobID := range sortedRefKeys(refs) {
		if _, ok := present[blobID]; ok {
			continue
		}
		id := refs[blobID]
		current, err := s.records.GetRecordBlobID(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				continue
			}
			return storeFailure(fmt.Errorf("sweep: lookup record %d: %w", id, err))
		}
		if current != blobID {
			continue
		}
		if _, err := s.blobs.Stat(ctx, blobID); err == nil {
			continue
		} else if !errors.Is(err, blobstore.ErrNotFound) && !errors.Is(err, blobstore.ErrInvalidID) {
			return storeFailure(fmt.Errorf("sweep: stat blob %s: %w", blobID, err))
		}

		result.MissingBlobs++
		result.Issues = append(result.Issues, models.SweepIssue{Type: models.IssueMissingBlob, RecordID: id, BlobID: blobID})
		s.metrics.observeIssue(models.IssueMissingBlob)
		s.logger.Warn("record references missing blob", "id", id, "blob_id", blobID)
	}
	return nil
}

func (s *RecordService) sweepDigests(ctx context.Context, refs map[string]int64, present map[string]struct{}, result *models.SweepReport) error {
	for _, blobID := range sortedRefKeys(refs) {
		if _, ok := present[blobID]; !ok {
			continue
		}
		id := refs[blobID]
		record, err := s.records.GetRecord(ctx, id)
		if err != nil {
			return storeFailure(fmt.Errorf("sweep: get record %d: %w", id, err))
		}
		// Imported legacy rows carry no digest.
		if record == nil || record.BlobID != blobID || record.Digest == "" {
			continue
		}

		payload, err := s.blobs.Get(ctx, blobID)
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				continue
			}
			return storeFailure(fmt.Errorf("sweep: read blob %s: %w", blobID, err))
		}
		actual := blobstore.Digest(payload)
		if actual == record.Digest {
			continue
		}

		result.DigestMismatch++
		result.Issues = append(result.Issues, models.SweepIssue{
			Type:      models.IssueDigestMismatch,
			RecordID:  id,
			BlobID:    blobID,
			SizeBytes: int64(len(payload)),
			Detail:    fmt.Sprintf("expected %s, got %s", record.Digest, actual),
		})
		s.metrics.observeIssue(models.IssueDigestMismatch)
		s.logger.Warn("blob digest mismatch", "id", id, "blob_id", blobID)
	}
	return nil
}

func (s *RecordService) sweepOrphans(ctx context.Context, orphans []blobstore.BlobInfo, apply bool, result *models.SweepReport) error {
	if len(orphans) == 0 {
		return nil
	}

	// Re-read refs right before deciding; a row may have been committed for a
	// blob since the first listing.
	var refs map[string]int64
	if apply {
		var err error
		refs, err = s.records.ListBlobRefs(ctx)
		if err != nil {
			return storeFailure(fmt.Errorf("sweep: refresh blob refs: %w", err))
		}
	}

	cutoff := s.now().Add(-s.sweepGrace)
	for _, blob := range orphans {
		if refs != nil {
			if _, ok := refs[blob.BlobID]; ok {
				continue
			}
		}

		issue := models.SweepIssue{Type: models.IssueOrphanBlob, BlobID: blob.BlobID, SizeBytes: blob.SizeBytes, ModTime: blob.ModTime}
		result.OrphanBlobs++
		s.metrics.observeIssue(models.IssueOrphanBlob)

		switch {
		case !apply:
		case blob.ModTime.After(cutoff):
			issue.Detail = "within grace period"
		default:
			err := s.blobs.Delete(ctx, blob.BlobID)
			switch {
			case err == nil:
				issue.Deleted = true
				result.DeletedCount++
				result.ReclaimedBytes += blob.SizeBytes
			case errors.Is(err, blobstore.ErrNotFound):
				issue.Detail = "already removed"
			default:
				result.FailedCount++
				issue.Detail = err.Error()
				s.logger.Warn("sweep delete failed", "blob_id", blob.BlobID, "error", err)
			}
		}
		result.Issues = append(result.Issues, issue)
	}
	return nil
}

func sortedRefKeys(refs map[string]int64) []string {
	keys := make([]string, 0, len(refs))
	for key := range refs {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return refs[keys[i]] < refs[keys[j]] })
	return keys
}
