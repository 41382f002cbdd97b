package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/verte-zerg/typespeed/internal/model"
)

const (
	textTestPrefix     = "Test at "
	textUserPrefix     = "User: "
	textWPMPrefix      = "Words per minute: "
	textAccuracyPrefix = "Accuracy: "
)

var textSeparator = strings.Repeat("-", 50)

// Text is the human-readable append-only results file of the console app.
type Text struct {
	path string
	mu   sync.Mutex
}

// OpenText prepares a flat text store at path. The file is created on first append.
func OpenText(path string) (*Text, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return &Text{path: path}, nil
}

// Append implements ResultStore.
func (t *Text) Append(_ context.Context, r model.Result) error {
	if err := validateResult(r); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return persistErr("open results file", err)
	}
	if _, err := f.WriteString(formatTextBlock(r)); err != nil {
		_ = f.Close()
		return persistErr("append result", err)
	}
	return persistErr("close results file", f.Close())
}

// List implements ResultStore.
func (t *Text) List(_ context.Context, owner string) ([]model.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	results, err := t.readAll()
	if err != nil {
		return nil, err
	}
	return newestAppendedFirst(filterOwner(results, owner)), nil
}

// Reset implements ResultStore.
func (t *Text) Reset(_ context.Context, owner string) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	results, err := t.readAll()
	if err != nil {
		return 0, err
	}
	matched, kept := splitOwner(results, owner)
	if len(matched) == 0 {
		return 0, nil
	}
	if len(kept) == 0 {
		if err := os.Remove(t.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, persistErr("remove results file", err)
		}
		return int64(len(matched)), nil
	}
	var b strings.Builder
	for _, r := range kept {
		b.WriteString(formatTextBlock(r))
	}
	if err := writeFileAtomic(t.path, []byte(b.String())); err != nil {
		return 0, persistErr("rewrite results file", err)
	}
	return int64(len(matched)), nil
}

// Close implements ResultStore.
func (t *Text) Close() error {
	return nil
}

func (t *Text) readAll() ([]model.Result, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, persistErr("open results file", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			// Best-effort close for read-only file.
			_ = cerr
		}
	}()
	results, err := parseTextResults(f)
	if err != nil {
		return nil, persistErr("read results file", err)
	}
	return results, nil
}

func formatTextBlock(r model.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s%s\n", textTestPrefix, r.Timestamp.Local().Format(model.TimestampLayout))
	if r.Username != "" {
		fmt.Fprintf(&b, "%s%s\n", textUserPrefix, r.Username)
	}
	fmt.Fprintf(&b, "%s%.2f\n", textWPMPrefix, r.WPM)
	fmt.Fprintf(&b, "%s%.2f%%\n", textAccuracyPrefix, r.Accuracy)
	b.WriteString(textSeparator)
	return b.String()
}

func parseTextResults(r io.Reader) ([]model.Result, error) {
	var (
		results []model.Result
		current *model.Result
		lineNo  int
	)
	flush := func() {
		if current != nil {
			results = append(results, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case strings.HasPrefix(line, textTestPrefix):
			flush()
			raw := strings.TrimSpace(strings.TrimPrefix(line, textTestPrefix))
			ts, err := time.ParseInLocation(model.TimestampLayout, raw, time.Local)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid timestamp: %w", lineNo, err)
			}
			current = &model.Result{Timestamp: ts}
		case current == nil:
			continue
		case strings.HasPrefix(line, textUserPrefix):
			current.Username = strings.TrimPrefix(line, textUserPrefix)
		case strings.HasPrefix(line, textWPMPrefix):
			v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, textWPMPrefix)), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid wpm: %w", lineNo, err)
			}
			current.WPM = v
		case strings.HasPrefix(line, textAccuracyPrefix):
			raw := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(line, textAccuracyPrefix)), "%")
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid accuracy: %w", lineNo, err)
			}
			current.Accuracy = v
		case strings.HasPrefix(line, "---"):
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return results, nil
}
