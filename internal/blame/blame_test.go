package blame

import (
	"testing"
	"time"

	"relic/internal/relicerr"
)

const samplePorcelain = `8b1f2c3d4e5f60718293a4b5c6d7e8f901234567 42 42 1
author Alice Example
author-mail <alice@example.com>
author-time 1551398400
author-tz +0000
committer Alice Example
committer-mail <alice@example.com>
committer-time 1551398400
committer-tz +0000
summary add placeholder for retry logic
filename src/worker.go
	// TODO: retry on transient failures
`

func TestParsePorcelain(t *testing.T) {
	attr, err := parsePorcelain(samplePorcelain)
	if err != nil {
		t.Fatal(err)
	}

	if attr.RevisionID != "8b1f2c3d4e5f60718293a4b5c6d7e8f901234567" {
		t.Errorf("RevisionID = %q", attr.RevisionID)
	}
	if attr.AuthorName != "Alice Example" {
		t.Errorf("AuthorName = %q", attr.AuthorName)
	}
	if attr.AuthorEmail != "alice@example.com" {
		t.Errorf("AuthorEmail = %q", attr.AuthorEmail)
	}
	want := time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)
	if !attr.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", attr.Timestamp, want)
	}
}

func TestParsePorcelainErrors(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"empty", ""},
		{"truncated header", "abc123"},
		{"missing author-time", "8b1f2c3d4e5f60718293a4b5c6d7e8f901234567 1 1 1\nauthor Alice\n"},
		{"bad author-time", "8b1f2c3d4e5f60718293a4b5c6d7e8f901234567 1 1 1\nauthor-time soon\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parsePorcelain(tt.output)
			if !relicerr.HasCode(err, relicerr.ParseFailure) {
				t.Errorf("error = %v, want ParseFailure", err)
			}
		})
	}
}

func TestAgeInDays(t *testing.T) {
	attr := Attribution{Timestamp: time.Now().Add(-10*24*time.Hour - time.Hour)}
	if got := attr.AgeInDays(); got != 10 {
		t.Errorf("AgeInDays = %d, want 10", got)
	}
}
