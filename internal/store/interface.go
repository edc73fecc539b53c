package store

import (
	"context"
	"errors"

	"healthrec/internal/models"
)

// ErrRecordNotFound reports that no record has the requested id.
var ErrRecordNotFound = errors.New("record not found")

// ErrDuplicateBlobID reports that another record already references the blob.
var ErrDuplicateBlobID = errors.New("blob id already referenced")

// RecordFields carries the mutable part of a record.
type RecordFields struct {
	Name   string
	Age    int
	Gender models.Gender
}

// RecordStore is the metadata persistence surface used by RecordService.
//
// The store persists what it is given; field validation belongs to the caller.
type RecordStore interface {
	CreateRecord(ctx context.Context, record *models.Record) error
	GetRecord(ctx context.Context, id int64) (*models.Record, error)
	ListRecords(ctx context.Context) ([]models.Record, error)
	UpdateRecordFields(ctx context.Context, id int64, fields RecordFields) error
	DeleteRecord(ctx context.Context, id int64) (string, error)
	GetRecordBlobID(ctx context.Context, id int64) (string, error)
	ListBlobRefs(ctx context.Context) (map[string]int64, error)
	StoreInfo(ctx context.Context) (*StoreInfo, error)
}

var _ RecordStore = (*Store)(nil)
