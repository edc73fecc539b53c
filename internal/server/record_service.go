package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"healthrec/internal/blobstore"
	"healthrec/internal/models"
	"healthrec/internal/store"
)

const defaultSweepGracePeriod = 10 * time.Minute

// RecordService keeps each record row and its payload blob consistent.
//
// Registration writes the blob first and removes it again if the row insert
// fails. Deletion removes the row first so that a crash between the two steps
// leaves at most an orphan blob, which Sweep reports. Concurrent updates or
// deletes of the same id are last-writer-wins per row.
type RecordService struct {
	records store.RecordStore
	blobs   blobstore.BlobStore
	logger  *slog.Logger
	metrics *Metrics

	now        func() time.Time
	sweepGrace time.Duration
}

// RegisterInput carries the caller-entered fields of a new record.
type RegisterInput struct {
	Name   string
	Age    int
	Gender string
}

// RegisterResult is returned for one accepted submission.
type RegisterResult struct {
	ID     int64         `json:"id"`
	BlobID string        `json:"blob_id"`
	Record models.Record `json:"record"`
}

// RecordEdit is one row of an edited snapshot.
type RecordEdit struct {
	ID     int64
	Name   string
	Age    int
	Gender string
}

// EditFailure reports one row that could not be saved.
type EditFailure struct {
	ID  int64
	Err error
}

// SaveEditsResult lists the ids that were written and the rows that were not.
type SaveEditsResult struct {
	Updated []int64
	Failed  []EditFailure
}

// DeleteResult describes a completed deletion.
type DeleteResult struct {
	ID          int64  `json:"id"`
	BlobID      string `json:"blob_id"`
	BlobRemoved bool   `json:"blob_removed"`
}

// NewRecordService constructs a RecordService.
func NewRecordService(records store.RecordStore, blobs blobstore.BlobStore, logger *slog.Logger) *RecordService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordService{
		records:    records,
		blobs:      blobs,
		logger:     logger.With("component", "record_service"),
		now:        time.Now,
		sweepGrace: defaultSweepGracePeriod,
	}
}

// ConfigureSweep sets how old an unreferenced blob must be before Sweep
// deletes it. Non-positive values restore the default.
func (s *RecordService) ConfigureSweep(grace time.Duration) {
	if s == nil {
		return
	}
	if grace <= 0 {
		grace = defaultSweepGracePeriod
	}
	s.sweepGrace = grace
}

func (s *RecordService) useMetrics(m *Metrics) {
	if s != nil {
		s.metrics = m
	}
}

// Register validates the fields, stores the payload and inserts the row.
// Date and time come from a single reading of the clock.
func (s *RecordService) Register(ctx context.Context, in RegisterInput, payload io.Reader) (result RegisterResult, err error) {
	defer func() { s.observe("register", err) }()

	if err := s.ready(); err != nil {
		return result, err
	}
	fields, err := normalizeRecordFields(in.Name, in.Age, in.Gender)
	if err != nil {
		return result, err
	}
	if payload == nil {
		return result, badRequestCode(fmt.Errorf("content is required"), ErrCodeInvalidPayload)
	}

	now := s.now()

	put, err := s.blobs.Put(ctx, payload)
	if err != nil {
		return result, storeFailure(fmt.Errorf("register: write payload: %w", err))
	}

	record := &models.Record{
		Name:      fields.Name,
		Age:       fields.Age,
		Gender:    fields.Gender,
		BlobID:    put.BlobID,
		SizeBytes: put.SizeBytes,
		Digest:    put.Digest,
	}
	record.StampFrom(now)

	if err := s.records.CreateRecord(ctx, record); err != nil {
		// The blob belongs to the row that already references it.
		if errors.Is(err, store.ErrDuplicateBlobID) {
			s.logger.Warn("blob id already referenced; payload kept", "blob_id", put.BlobID)
		} else {
			s.compensate(ctx, put.BlobID, err)
		}
		return result, storeFailure(fmt.Errorf("register: insert record: %w", err))
	}

	s.logger.Info("record registered", "id", record.ID, "blob_id", record.BlobID, "size_bytes", record.SizeBytes)
	return RegisterResult{ID: record.ID, BlobID: record.BlobID, Record: *record}, nil
}

// compensate removes a blob whose row was never written. A failure leaves an
// orphan blob for Sweep and is not returned.
func (s *RecordService) compensate(ctx context.Context, blobID string, cause error) {
	err := s.blobs.Delete(context.WithoutCancel(ctx), blobID)
	s.metrics.observeCompensation(err)
	if err != nil {
		s.logger.Warn("compensating blob delete failed; orphan blob left",
			"blob_id", blobID, "cause", cause, "error", err)
		return
	}
	s.logger.Debug("compensating blob delete", "blob_id", blobID, "cause", cause)
}

// List returns every record ordered by id.
func (s *RecordService) List(ctx context.Context) (records []models.Record, err error) {
	defer func() { s.observe("list", err) }()

	if err := s.ready(); err != nil {
		return nil, err
	}
	records, err = s.records.ListRecords(ctx)
	if err != nil {
		return nil, storeFailure(fmt.Errorf("list: %w", err))
	}
	if records == nil {
		records = []models.Record{}
	}
	return records, nil
}

// Get returns one record.
func (s *RecordService) Get(ctx context.Context, id int64) (record models.Record, err error) {
	defer func() { s.observe("get", err) }()

	if err := s.ready(); err != nil {
		return record, err
	}
	if err := validateRecordID(id); err != nil {
		return record, err
	}
	stored, err := s.records.GetRecord(ctx, id)
	if err != nil {
		return record, storeFailure(fmt.Errorf("get: %w", err))
	}
	if stored == nil {
		return record, recordNotFound(id)
	}
	return *stored, nil
}

// SaveEdits applies each row of an edited snapshot by id. Rows are
// independent: a bad or vanished row is reported in Failed and the rest are
// still written. Resubmitting the same snapshot is harmless.
func (s *RecordService) SaveEdits(ctx context.Context, edits []RecordEdit) (SaveEditsResult, error) {
	result := SaveEditsResult{Updated: []int64{}, Failed: []EditFailure{}}
	if err := s.ready(); err != nil {
		return result, err
	}

	for _, edit := range edits {
		err := s.saveEdit(ctx, edit)
		s.observe("save_edit", err)
		if err != nil {
			result.Failed = append(result.Failed, EditFailure{ID: edit.ID, Err: err})
			continue
		}
		result.Updated = append(result.Updated, edit.ID)
	}

	if len(result.Failed) > 0 {
		s.logger.Info("edits saved with failures", "updated", len(result.Updated), "failed", len(result.Failed))
	}
	return result, nil
}

func (s *RecordService) saveEdit(ctx context.Context, edit RecordEdit) error {
	if err := validateRecordID(edit.ID); err != nil {
		return err
	}
	fields, err := normalizeRecordFields(edit.Name, edit.Age, edit.Gender)
	if err != nil {
		return err
	}
	if err := s.records.UpdateRecordFields(ctx, edit.ID, fields); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return recordNotFound(edit.ID)
		}
		return storeFailure(fmt.Errorf("save edits: update %d: %w", edit.ID, err))
	}
	return nil
}

// Delete removes the row, then its blob. Once the row is gone the deletion
// succeeds even if the blob cannot be removed.
func (s *RecordService) Delete(ctx context.Context, id int64) (result DeleteResult, err error) {
	defer func() { s.observe("delete", err) }()

	if err := s.ready(); err != nil {
		return result, err
	}
	if err := validateRecordID(id); err != nil {
		return result, err
	}

	blobID, err := s.records.DeleteRecord(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return result, recordNotFound(id)
		}
		return result, storeFailure(fmt.Errorf("delete: remove record: %w", err))
	}
	result = DeleteResult{ID: id, BlobID: blobID}

	if err := s.blobs.Delete(context.WithoutCancel(ctx), blobID); err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			s.metrics.observeIssue(models.IssueMissingBlob)
		}
		s.logger.Warn("blob delete failed after record delete", "id", id, "blob_id", blobID, "error", err)
		return result, nil
	}
	result.BlobRemoved = true
	s.logger.Info("record deleted", "id", id, "blob_id", blobID)
	return result, nil
}

// ViewPayload returns the stored payload of a record.
func (s *RecordService) ViewPayload(ctx context.Context, id int64) (payload []byte, err error) {
	defer func() { s.observe("view", err) }()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := validateRecordID(id); err != nil {
		return nil, err
	}

	blobID, err := s.records.GetRecordBlobID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, recordNotFound(id)
		}
		return nil, storeFailure(fmt.Errorf("view: lookup blob id: %w", err))
	}

	payload, err = s.blobs.Get(ctx, blobID)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) || errors.Is(err, blobstore.ErrInvalidID) {
			s.metrics.observeIssue(models.IssueMissingBlob)
			s.logger.Warn("record references missing blob", "id", id, "blob_id", blobID)
			return nil, blobMissing(fmt.Errorf("attachment file not found"))
		}
		return nil, storeFailure(fmt.Errorf("view: read payload: %w", err))
	}
	return payload, nil
}

// ServiceInfo summarizes both stores.
type ServiceInfo struct {
	SchemaVersion int
	TotalRecords  int
	GenderCounts  map[string]int
	BlobCount     int
	BlobBytes     int64
}

// Info reports schema version, record counts and blob usage.
func (s *RecordService) Info(ctx context.Context) (ServiceInfo, error) {
	var info ServiceInfo
	if err := s.ready(); err != nil {
		return info, err
	}

	storeInfo, err := s.records.StoreInfo(ctx)
	if err != nil {
		return info, storeFailure(fmt.Errorf("info: %w", err))
	}
	blobs, err := s.blobs.List(ctx)
	if err != nil {
		return info, storeFailure(fmt.Errorf("info: list blobs: %w", err))
	}

	info.SchemaVersion = storeInfo.SchemaVersion
	info.TotalRecords = storeInfo.TotalRecords
	info.GenderCounts = storeInfo.GenderCounts
	info.BlobCount = len(blobs)
	for _, blob := range blobs {
		info.BlobBytes += blob.SizeBytes
	}
	return info, nil
}

func (s *RecordService) observe(operation string, err error) {
	if s != nil {
		s.metrics.observeOperation(operation, err)
	}
}

func (s *RecordService) ready() error {
	if s == nil || s.records == nil || s.blobs == nil {
		return internalError(fmt.Errorf("record service is not configured"))
	}
	return nil
}

func recordNotFound(id int64) error {
	return notFoundCode(fmt.Errorf("record not found: %d", id), ErrCodeRecordNotFound)
}
