package models

import (
	"strings"
	"testing"
	"time"
)

func TestParseGender(t *testing.T) {
	tests := []struct {
		raw     string
		want    Gender
		wantErr bool
	}{
		{raw: "Man", want: GenderMan},
		{raw: " woman ", want: GenderWoman},
		{raw: "MAN", want: GenderMan},
		{raw: "", wantErr: true},
		{raw: "Other", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseGender(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parse %q: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Fatalf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestParseGenderErrorListsAllowedValues(t *testing.T) {
	_, err := ParseGender("other")
	if err == nil || !strings.Contains(err.Error(), "allowed: Man, Woman") {
		t.Fatalf("expected allowed values in error, got %v", err)
	}
	if got := strings.Join(GenderStrings(), "|"); got != "Man|Woman" {
		t.Fatalf("unexpected gender order %q", got)
	}
}

func TestIsValidAge(t *testing.T) {
	for _, age := range []int{0, 30, 120} {
		if !IsValidAge(age) {
			t.Fatalf("expected %d to be valid", age)
		}
	}
	for _, age := range []int{-1, 121} {
		if IsValidAge(age) {
			t.Fatalf("expected %d to be invalid", age)
		}
	}
}

func TestRecordStampRoundTrip(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 5, 7, 123, time.Local)
	var rec Record
	rec.StampFrom(now)
	if rec.Date != "2026-10-16" || rec.Time != "09:05:07" {
		t.Fatalf("unexpected stamp %q %q", rec.Date, rec.Time)
	}
	got, err := rec.RegisteredAt()
	if err != nil {
		t.Fatalf("registered at: %v", err)
	}
	if !got.Equal(now.Truncate(time.Second)) {
		t.Fatalf("expected %v, got %v", now.Truncate(time.Second), got)
	}
}
