package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/typespeed/internal/model"
)

func TestFormatTextBlock(t *testing.T) {
	r := model.Result{Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local), WPM: 60, Accuracy: 97.5}
	want := "\nTest at 2024-01-02 03:04:05\n" +
		"Words per minute: 60.00\n" +
		"Accuracy: 97.50%\n" +
		strings.Repeat("-", 50)
	if got := formatTextBlock(r); got != want {
		t.Fatalf("unexpected block:\n%q\nwant\n%q", got, want)
	}

	r.Username = "alice"
	if got := formatTextBlock(r); !strings.Contains(got, "\nUser: alice\nWords per minute") {
		t.Fatalf("expected user line, got %q", got)
	}
}

func TestTextStoreAppendsWithoutOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.txt")
	st, err := OpenText(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	first := model.Result{Timestamp: at(0), WPM: 12.3, Accuracy: 45.6}
	second := model.Result{Timestamp: at(1), WPM: 78.9, Accuracy: 100}
	if err := st.Append(ctx, first); err != nil {
		t.Fatalf("append first: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := st.Append(ctx, second); err != nil {
		t.Fatalf("append second: %v", err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(after), string(before)) {
		t.Fatalf("second append rewrote earlier content")
	}
	if strings.Count(string(after), "Test at ") != 2 {
		t.Fatalf("expected two blocks, got %q", after)
	}
}

func TestParseTextResultsToleratesLegacyFile(t *testing.T) {
	legacy := "\nTest at 2023-05-06 07:08:09\nWords per minute: 33.33\nAccuracy: 50.00%\n" +
		strings.Repeat("-", 50) +
		"\nTest at 2023-05-06 07:09:00\nWords per minute: 40.00\nAccuracy: 75.00%\n" +
		strings.Repeat("-", 50)
	results, err := parseTextResults(strings.NewReader(legacy))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].WPM != 33.33 || results[1].Accuracy != 75 {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[0].Username != "" {
		t.Fatalf("expected no owner, got %q", results[0].Username)
	}
}

func TestParseTextResultsRejectsGarbage(t *testing.T) {
	bad := "\nTest at yesterday\nWords per minute: 1\n"
	if _, err := parseTextResults(strings.NewReader(bad)); err == nil {
		t.Fatalf("expected timestamp error")
	}
	bad = "\nTest at 2023-05-06 07:08:09\nWords per minute: fast\n"
	if _, err := parseTextResults(strings.NewReader(bad)); err == nil {
		t.Fatalf("expected wpm error")
	}
}
