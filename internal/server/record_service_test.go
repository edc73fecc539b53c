package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/sync/errgroup"

	"healthrec/internal/blobstore"
	"healthrec/internal/models"
	"healthrec/internal/store"
)

var taroPayload = []byte("a,b\n1,2\n")

func TestRegisterThenViewPayload(t *testing.T) {
	svc, _, _ := newRecordServiceForTest(t)
	ctx := context.Background()
	fixed := time.Date(2026, 10, 16, 9, 30, 15, 0, time.Local)
	svc.now = func() time.Time { return fixed }

	result, err := svc.Register(ctx, RegisterInput{Name: "Taro", Age: 30, Gender: "Man"}, bytes.NewReader(taroPayload))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if result.ID != 1 {
		t.Fatalf("expected id 1, got %d", result.ID)
	}
	if !blobstore.ValidID(result.BlobID) {
		t.Fatalf("expected uuid blob id, got %q", result.BlobID)
	}

	records, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.Name != "Taro" || got.Age != 30 || got.Gender != models.GenderMan {
		t.Fatalf("unexpected record: %#v", got)
	}
	if got.Date != "2026-10-16" || got.Time != "09:30:15" {
		t.Fatalf("expected stamp from one instant, got %s %s", got.Date, got.Time)
	}
	if got.SizeBytes != int64(len(taroPayload)) || got.Digest != blobstore.Digest(taroPayload) {
		t.Fatalf("unexpected size/digest: %d %s", got.SizeBytes, got.Digest)
	}

	payload, err := svc.ViewPayload(ctx, result.ID)
	if err != nil {
		t.Fatalf("view payload: %v", err)
	}
	if !bytes.Equal(payload, taroPayload) {
		t.Fatalf("expected %q, got %q", taroPayload, payload)
	}
}

func TestRegisterNormalizesFields(t *testing.T) {
	svc, _, _ := newRecordServiceForTest(t)

	result, err := svc.Register(context.Background(), RegisterInput{Name: "  Hanako ", Age: 0, Gender: "woman"}, strings.NewReader(""))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if result.Record.Name != "Hanako" || result.Record.Gender != models.GenderWoman {
		t.Fatalf("unexpected normalized record: %#v", result.Record)
	}
	if result.Record.SizeBytes != 0 {
		t.Fatalf("expected empty payload to be accepted, got size %d", result.Record.SizeBytes)
	}
}

func TestRegisterRejectsInvalidInputWithoutSideEffects(t *testing.T) {
	tests := []struct {
		name      string
		input     RegisterInput
		wantField string
		wantCode  int
	}{
		{"empty name", RegisterInput{Name: "  ", Age: 30, Gender: "Man"}, "name", ErrCodeInvalidName},
		{"negative age", RegisterInput{Name: "Taro", Age: -1, Gender: "Man"}, "age", ErrCodeInvalidAge},
		{"age above range", RegisterInput{Name: "Taro", Age: 121, Gender: "Man"}, "age", ErrCodeInvalidAge},
		{"unknown gender", RegisterInput{Name: "Taro", Age: 30, Gender: "Other"}, "gender", ErrCodeInvalidGender},
		{"missing gender", RegisterInput{Name: "Taro", Age: 30}, "gender", ErrCodeInvalidGender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st, blobs := newRecordServiceForTest(t)
			ctx := context.Background()

			_, err := svc.Register(ctx, tt.input, bytes.NewReader(taroPayload))
			if ErrorKindOf(err) != ErrorKindInvalidInput {
				t.Fatalf("expected invalid input, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Fatalf("expected error to name %q, got %v", tt.wantField, err)
			}
			if got := errorNumericCode(httpStatusFromError(err), err); got != tt.wantCode {
				t.Fatalf("expected error_code %d, got %d", tt.wantCode, got)
			}
			assertRecordCount(t, st, 0)
			assertBlobCount(t, blobs, 0)
		})
	}
}

func TestRegisterBlobWriteFailureCreatesNoRow(t *testing.T) {
	_, st, _ := newRecordServiceForTest(t)
	svc := NewRecordService(st, &faultyBlobStore{putErr: errors.New("disk full")}, nil)

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Taro", Age: 30, Gender: "Man"}, bytes.NewReader(taroPayload))
	if ErrorKindOf(err) != ErrorKindStorageFailure {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "write payload") {
		t.Fatalf("expected step context in error, got %v", err)
	}
	assertRecordCount(t, st, 0)
}

func TestRegisterCompensatesWhenInsertFails(t *testing.T) {
	_, st, blobs := newRecordServiceForTest(t)
	metrics := NewMetrics()
	svc := NewRecordService(&failingCreateStore{Store: st}, blobs, nil)
	svc.useMetrics(metrics)

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Taro", Age: 30, Gender: "Man"}, bytes.NewReader(taroPayload))
	if ErrorKindOf(err) != ErrorKindStorageFailure {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "insert record") {
		t.Fatalf("expected step context in error, got %v", err)
	}
	assertRecordCount(t, st, 0)
	assertBlobCount(t, blobs, 0)

	if got := testutil.ToFloat64(metrics.compensations.WithLabelValues("ok")); got != 1 {
		t.Fatalf("expected 1 successful compensation, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.operations.WithLabelValues("register", string(ErrorKindStorageFailure))); got != 1 {
		t.Fatalf("expected failed register to be counted, got %v", got)
	}
}

func TestRegisterToleratesFailedCompensation(t *testing.T) {
	_, st, blobs := newRecordServiceForTest(t)
	faulty := &faultyBlobStore{BlobStore: blobs, deleteErr: errors.New("permission denied")}
	svc := NewRecordService(&failingCreateStore{Store: st}, faulty, nil)

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Taro", Age: 30, Gender: "Man"}, bytes.NewReader(taroPayload))
	if ErrorKindOf(err) != ErrorKindStorageFailure {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if strings.Contains(err.Error(), "permission denied") {
		t.Fatalf("compensation error must not replace the insert error: %v", err)
	}
	if faulty.deleteCalls != 1 {
		t.Fatalf("expected exactly one compensating delete, got %d", faulty.deleteCalls)
	}
	assertRecordCount(t, st, 0)
	assertBlobCount(t, blobs, 1)
}

func TestRegisterKeepsBlobReferencedByAnotherRow(t *testing.T) {
	_, st, blobs := newRecordServiceForTest(t)
	faulty := &faultyBlobStore{BlobStore: blobs}
	duplicate := fmt.Errorf("%w: taken", store.ErrDuplicateBlobID)
	svc := NewRecordService(&failingCreateStore{Store: st, err: duplicate}, faulty, nil)

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Taro", Age: 30, Gender: "Man"}, bytes.NewReader(taroPayload))
	if ErrorKindOf(err) != ErrorKindStorageFailure {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if !errors.Is(err, store.ErrDuplicateBlobID) {
		t.Fatalf("expected duplicate blob id cause, got %v", err)
	}
	if faulty.deleteCalls != 0 {
		t.Fatalf("expected no compensating delete, got %d", faulty.deleteCalls)
	}
	assertBlobCount(t, blobs, 1)
}

func TestSaveEditsAppliesRowsIndependently(t *testing.T) {
	svc, st, _ := newRecordServiceForTest(t)
	ctx := context.Background()

	first := mustRegister(t, svc, "Taro", 30, "Man")
	second := mustRegister(t, svc, "Hanako", 25, "Woman")

	edits := []RecordEdit{
		{ID: first.ID, Name: "Taro Yamada", Age: 31, Gender: "Man"},
		{ID: 99, Name: "Ghost", Age: 40, Gender: "Man"},
		{ID: second.ID, Name: "Hanako", Age: 130, Gender: "Woman"},
	}

	result, err := svc.SaveEdits(ctx, edits)
	if err != nil {
		t.Fatalf("save edits: %v", err)
	}
	if len(result.Updated) != 1 || result.Updated[0] != first.ID {
		t.Fatalf("expected only %d updated, got %v", first.ID, result.Updated)
	}
	if len(result.Failed) != 2 {
		t.Fatalf("expected 2 failures, got %#v", result.Failed)
	}
	if result.Failed[0].ID != 99 || ErrorKindOf(result.Failed[0].Err) != ErrorKindNotFound {
		t.Fatalf("expected not found for id 99, got %#v", result.Failed[0])
	}
	if result.Failed[1].ID != second.ID || ErrorKindOf(result.Failed[1].Err) != ErrorKindInvalidInput {
		t.Fatalf("expected invalid input for id %d, got %#v", second.ID, result.Failed[1])
	}

	updated, err := st.GetRecord(ctx, first.ID)
	if err != nil || updated == nil {
		t.Fatalf("get record: %v", err)
	}
	if updated.Name != "Taro Yamada" || updated.Age != 31 {
		t.Fatalf("unexpected updated record: %#v", updated)
	}
	if updated.Date != first.Record.Date || updated.Time != first.Record.Time || updated.BlobID != first.BlobID {
		t.Fatalf("write-once fields changed: %#v", updated)
	}

	untouched, err := st.GetRecord(ctx, second.ID)
	if err != nil || untouched == nil {
		t.Fatalf("get record: %v", err)
	}
	if untouched.Age != 25 {
		t.Fatalf("invalid row must not be written, got age %d", untouched.Age)
	}
}

func TestSaveEditsIsIdempotent(t *testing.T) {
	svc, _, _ := newRecordServiceForTest(t)
	ctx := context.Background()

	mustRegister(t, svc, "Taro", 30, "Man")
	mustRegister(t, svc, "Hanako", 25, "Woman")

	snapshot, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	edits := make([]RecordEdit, 0, len(snapshot))
	for _, record := range snapshot {
		edits = append(edits, RecordEdit{ID: record.ID, Name: record.Name, Age: record.Age, Gender: string(record.Gender)})
	}
	edits[1].Age = 26

	for i := 0; i < 2; i++ {
		result, err := svc.SaveEdits(ctx, edits)
		if err != nil {
			t.Fatalf("save edits pass %d: %v", i, err)
		}
		if len(result.Failed) != 0 || len(result.Updated) != 2 {
			t.Fatalf("pass %d: unexpected result %#v", i, result)
		}
	}

	after, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if after[0] != snapshot[0] {
		t.Fatalf("unchanged row drifted: %#v vs %#v", after[0], snapshot[0])
	}
	if after[1].Age != 26 {
		t.Fatalf("expected age 26, got %d", after[1].Age)
	}
}

func TestDeleteRemovesRowThenBlob(t *testing.T) {
	svc, _, blobs := newRecordServiceForTest(t)
	ctx := context.Background()

	registered := mustRegister(t, svc, "Taro", 30, "Man")

	result, err := svc.Delete(ctx, registered.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !result.BlobRemoved || result.BlobID != registered.BlobID {
		t.Fatalf("unexpected delete result: %#v", result)
	}

	records, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty list, got %d", len(records))
	}
	if _, err := svc.ViewPayload(ctx, registered.ID); ErrorKindOf(err) != ErrorKindNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, err := blobs.Stat(ctx, registered.BlobID); !errors.Is(err, blobstore.ErrNotFound) {
		t.Fatalf("expected blob to be gone, got %v", err)
	}
	if _, err := svc.Delete(ctx, registered.ID); ErrorKindOf(err) != ErrorKindNotFound {
		t.Fatalf("expected second delete to report not found, got %v", err)
	}
}

func TestDeleteSucceedsWhenBlobRemovalFails(t *testing.T) {
	_, st, blobs := newRecordServiceForTest(t)
	ctx := context.Background()
	faulty := &faultyBlobStore{BlobStore: blobs, deleteErr: errors.New("device busy")}
	svc := NewRecordService(st, faulty, nil)

	registered := mustRegister(t, svc, "Taro", 30, "Man")

	result, err := svc.Delete(ctx, registered.ID)
	if err != nil {
		t.Fatalf("delete should succeed once the row is gone: %v", err)
	}
	if result.BlobRemoved {
		t.Fatalf("expected blob_removed=false, got %#v", result)
	}
	assertRecordCount(t, st, 0)
	assertBlobCount(t, blobs, 1)
}

func TestNonPositiveIDsAreNotFound(t *testing.T) {
	svc, st, _ := newRecordServiceForTest(t)
	ctx := context.Background()
	mustRegister(t, svc, "Taro", 30, "Man")

	if _, err := svc.Delete(ctx, 0); ErrorKindOf(err) != ErrorKindNotFound {
		t.Fatalf("delete(0): expected not found, got %v", err)
	}
	if _, err := svc.ViewPayload(ctx, -1); ErrorKindOf(err) != ErrorKindNotFound {
		t.Fatalf("view(-1): expected not found, got %v", err)
	}
	if _, err := svc.Get(ctx, 0); ErrorKindOf(err) != ErrorKindNotFound {
		t.Fatalf("get(0): expected not found, got %v", err)
	}

	result, err := svc.SaveEdits(ctx, []RecordEdit{{ID: 0, Name: "Jiro", Age: 40, Gender: "Man"}})
	if err != nil {
		t.Fatalf("save edits: %v", err)
	}
	if len(result.Failed) != 1 || ErrorKindOf(result.Failed[0].Err) != ErrorKindNotFound {
		t.Fatalf("expected one not-found failure, got %#v", result.Failed)
	}
	assertRecordCount(t, st, 1)
}

func TestViewPayloadReportsMissingBlob(t *testing.T) {
	svc, _, blobs := newRecordServiceForTest(t)
	ctx := context.Background()

	registered := mustRegister(t, svc, "Taro", 30, "Man")
	if err := blobs.Delete(ctx, registered.BlobID); err != nil {
		t.Fatalf("remove blob: %v", err)
	}

	_, err := svc.ViewPayload(ctx, registered.ID)
	if ErrorKindOf(err) != ErrorKindBlobMissing {
		t.Fatalf("expected blob missing, got %v", err)
	}
	if err.Error() != "attachment file not found" {
		t.Fatalf("unexpected message: %v", err)
	}
	if _, err := svc.ViewPayload(ctx, 404); ErrorKindOf(err) != ErrorKindNotFound {
		t.Fatalf("expected not found for unknown id, got %v", err)
	}
}

func TestConcurrentRegisterAssignsDistinctIDs(t *testing.T) {
	svc, st, blobs := newRecordServiceForTest(t)
	const workers = 50

	ids := make([]int64, workers)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			payload := fmt.Sprintf("n\n%d\n", i)
			result, err := svc.Register(ctx, RegisterInput{Name: fmt.Sprintf("user-%d", i), Age: i % 100, Gender: "Woman"}, strings.NewReader(payload))
			if err != nil {
				return err
			}
			ids[i] = result.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent register: %v", err)
	}

	seen := make(map[int64]struct{}, workers)
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = struct{}{}
	}
	assertRecordCount(t, st, workers)
	assertBlobCount(t, blobs, workers)
}

func TestInfoSummarizesBothStores(t *testing.T) {
	svc, _, _ := newRecordServiceForTest(t)
	mustRegister(t, svc, "Taro", 30, "Man")
	mustRegister(t, svc, "Hanako", 25, "Woman")
	mustRegister(t, svc, "Jiro", 20, "Man")

	info, err := svc.Info(context.Background())
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.TotalRecords != 3 || info.GenderCounts["Man"] != 2 || info.GenderCounts["Woman"] != 1 {
		t.Fatalf("unexpected counts: %#v", info)
	}
	if info.BlobCount != 3 || info.BlobBytes != 3*int64(len(taroPayload)) {
		t.Fatalf("unexpected blob usage: %#v", info)
	}
}

func TestNilRecordServiceIsNotConfigured(t *testing.T) {
	var svc *RecordService
	if _, err := svc.List(context.Background()); httpStatusFromError(err) != 500 {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func newRecordServiceForTest(t *testing.T) (*RecordService, *store.Store, *blobstore.LocalStore) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "healthrec_test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})

	blobs, err := blobstore.NewLocal(filepath.Join(t.TempDir(), "data"), "")
	if err != nil {
		t.Fatalf("open blob store: %v", err)
	}

	return NewRecordService(st, blobs, nil), st, blobs
}

func mustRegister(t *testing.T, svc *RecordService, name string, age int, gender string) RegisterResult {
	t.Helper()
	result, err := svc.Register(context.Background(), RegisterInput{Name: name, Age: age, Gender: gender}, bytes.NewReader(taroPayload))
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return result
}

func assertRecordCount(t *testing.T, st store.RecordStore, want int) {
	t.Helper()
	records, err := st.ListRecords(context.Background())
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != want {
		t.Fatalf("expected %d records, got %d", want, len(records))
	}
}

func assertBlobCount(t *testing.T, blobs blobstore.BlobStore, want int) {
	t.Helper()
	list, err := blobs.List(context.Background())
	if err != nil {
		t.Fatalf("list blobs: %v", err)
	}
	if len(list) != want {
		t.Fatalf("expected %d blobs, got %d", want, len(list))
	}
}

func blobPath(blobs *blobstore.LocalStore, id string) string {
	return filepath.Join(blobs.Root(), id+blobstore.DefaultExtension)
}

func overwriteBlob(t *testing.T, blobs *blobstore.LocalStore, id string, data []byte) {
	t.Helper()
	if err := os.WriteFile(blobPath(blobs, id), data, 0o644); err != nil {
		t.Fatalf("overwrite blob: %v", err)
	}
}

type failingCreateStore struct {
	*store.Store
	err error
}

func (f failingCreateStore) CreateRecord(context.Context, *models.Record) error {
	if f.err != nil {
		return f.err
	}
	return errors.New("database is locked")
}

// faultyBlobStore wraps a real store and injects errors.
type faultyBlobStore struct {
	blobstore.BlobStore
	putErr      error
	deleteErr   error
	deleteCalls int
}

func (f *faultyBlobStore) Put(ctx context.Context, r io.Reader) (blobstore.PutResult, error) {
	if f.putErr != nil {
		return blobstore.PutResult{}, f.putErr
	}
	return f.BlobStore.Put(ctx, r)
}

func (f *faultyBlobStore) Delete(ctx context.Context, id string) error {
	f.deleteCalls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.BlobStore.Delete(ctx, id)
}
