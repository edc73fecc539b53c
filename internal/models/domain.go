package models

import (
	"fmt"
	"strings"
)

// Gender defines the closed set of genders a record may carry.
type Gender string

const (
	GenderMan   Gender = "Man"
	GenderWoman Gender = "Woman"
)

const (
	AgeMin = 0
	AgeMax = 120

	// DateLayout and TimeLayout format the registration instant.
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

var genders = []Gender{GenderMan, GenderWoman}

// ParseGender accepts any casing and returns the canonical value.
func ParseGender(raw string) (Gender, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("gender is required")
	}
	for _, gender := range genders {
		if strings.EqualFold(string(gender), value) {
			return gender, nil
		}
	}
	return "", fmt.Errorf("invalid gender: %s (allowed: %s)", value, strings.Join(GenderStrings(), ", "))
}

func IsValidAge(value int) bool {
	return value >= AgeMin && value <= AgeMax
}

// GenderStrings lists the canonical genders in display order.
func GenderStrings() []string {
	out := make([]string, 0, len(genders))
	for _, gender := range genders {
		out = append(out, string(gender))
	}
	return out
}
