package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"healthrec/internal/models"
)

const recordColumns = "id, record_date, record_time, name, age, gender, blob_id, size_bytes, digest"

// CreateRecord inserts one row and sets record.ID to the assigned id.
func (s *Store) CreateRecord(ctx context.Context, record *models.Record) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	if strings.TrimSpace(record.BlobID) == "" {
		return fmt.Errorf("blob_id is required")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO records (record_date, record_time, name, age, gender, blob_id, size_bytes, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, record.Date, record.Time, record.Name, record.Age, string(record.Gender), record.BlobID, record.SizeBytes, record.Digest)
	if err != nil {
		if isUniqueConstraint(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateBlobID, record.BlobID)
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	record.ID = id
	return nil
}

// GetRecord returns one record, or nil when absent.
func (s *Store) GetRecord(ctx context.Context, id int64) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListRecords returns every record ordered by id.
func (s *Store) ListRecords(ctx context.Context) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM records ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// UpdateRecordFields overwrites name, age and gender. Writing the values a row
// already holds still counts as a match, so resubmitting is harmless.
func (s *Store) UpdateRecordFields(ctx context.Context, id int64, fields RecordFields) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE records SET name = ?, age = ?, gender = ? WHERE id = ?
	`, fields.Name, fields.Age, string(fields.Gender), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	return nil
}

// DeleteRecord removes one row and returns the blob id it referenced.
func (s *Store) DeleteRecord(ctx context.Context, id int64) (string, error) {
	var blobID string
	err := s.db.QueryRowContext(ctx, `DELETE FROM records WHERE id = ? RETURNING blob_id`, id).Scan(&blobID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	if err != nil {
		return "", err
	}
	return blobID, nil
}

// GetRecordBlobID returns the blob id of one record.
func (s *Store) GetRecordBlobID(ctx context.Context, id int64) (string, error) {
	var blobID string
	err := s.db.QueryRowContext(ctx, `SELECT blob_id FROM records WHERE id = ?`, id).Scan(&blobID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	if err != nil {
		return "", err
	}
	return blobID, nil
}

// ListBlobRefs maps every referenced blob id to its record id.
func (s *Store) ListBlobRefs(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT blob_id, id FROM records`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := map[string]int64{}
	for rows.Next() {
		var blobID string
		var id int64
		if err := rows.Scan(&blobID, &id); err != nil {
			return nil, err
		}
		refs[blobID] = id
	}
	return refs, rows.Err()
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*models.Record, error) {
	var record models.Record
	var gender string
	if err := scanner.Scan(
		&record.ID,
		&record.Date,
		&record.Time,
		&record.Name,
		&record.Age,
		&gender,
		&record.BlobID,
		&record.SizeBytes,
		&record.Digest,
	); err != nil {
		return nil, err
	}
	record.Gender = models.Gender(gender)
	return &record, nil
}

func isUniqueConstraint(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
