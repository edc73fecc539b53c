package server

import (
	"fmt"
	"strconv"
	"strings"

	"healthrec/internal/models"
	"healthrec/internal/store"
)

func parseRecordID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, badRequestCode(fmt.Errorf("id is required"), ErrCodeMissingRequired)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequestCode(fmt.Errorf("invalid id: %s", raw), ErrCodeInvalidID)
	}
	return id, nil
}

// validateRecordID treats ids that can never be assigned as unknown records.
func validateRecordID(id int64) error {
	if id <= 0 {
		return recordNotFound(id)
	}
	return nil
}

// normalizeRecordFields checks name, age and gender in that order and reports
// the first offending field.
func normalizeRecordFields(name string, age int, gender string) (store.RecordFields, error) {
	var zero store.RecordFields

	name = strings.TrimSpace(name)
	if name == "" {
		return zero, badRequestCode(fmt.Errorf("name is required"), ErrCodeInvalidName)
	}
	if !models.IsValidAge(age) {
		return zero, badRequestCode(fmt.Errorf("invalid age: %d (allowed: %d-%d)", age, models.AgeMin, models.AgeMax), ErrCodeInvalidAge)
	}
	parsedGender, err := models.ParseGender(gender)
	if err != nil {
		return zero, badRequestCode(err, ErrCodeInvalidGender)
	}

	return store.RecordFields{Name: name, Age: age, Gender: parsedGender}, nil
}

func hasUploadExtension(filename, ext string) bool {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return false
	}
	if ext == "" {
		ext = ".csv"
	}
	return strings.HasSuffix(strings.ToLower(filename), strings.ToLower(ext))
}
