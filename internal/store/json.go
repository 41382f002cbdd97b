package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/verte-zerg/typespeed/internal/model"
)

type jsonRecord struct {
	Date     string  `json:"date"`
	WPM      float64 `json:"wpm"`
	Accuracy float64 `json:"accuracy"`
	Username string  `json:"username,omitempty"`
}

// JSON keeps all results in a single JSON array, rewritten on every change.
type JSON struct {
	path string
	mu   sync.Mutex
}

// OpenJSON prepares a JSON array store at path. The file is created on first append.
func OpenJSON(path string) (*JSON, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return &JSON{path: path}, nil
}

// Append implements ResultStore.
func (j *JSON) Append(_ context.Context, r model.Result) error {
	if err := validateResult(r); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	records, err := j.readAll()
	if err != nil {
		return err
	}
	records = append(records, toJSONRecord(r))
	return j.writeAll(records)
}

// List implements ResultStore.
func (j *JSON) List(_ context.Context, owner string) ([]model.Result, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	records, err := j.readAll()
	if err != nil {
		return nil, err
	}
	results := make([]model.Result, 0, len(records))
	for i, rec := range records {
		r, err := fromJSONRecord(rec)
		if err != nil {
			return nil, persistErr("decode results file", fmt.Errorf("entry %d: %w", i, err))
		}
		results = append(results, r)
	}
	return newestAppendedFirst(filterOwner(results, owner)), nil
}

// Reset implements ResultStore.
func (j *JSON) Reset(_ context.Context, owner string) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	records, err := j.readAll()
	if err != nil {
		return 0, err
	}
	kept := make([]jsonRecord, 0, len(records))
	var removed int64
	for _, rec := range records {
		if owner == "" || rec.Username == owner {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	if removed == 0 {
		return 0, nil
	}
	if err := j.writeAll(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// Close implements ResultStore.
func (j *JSON) Close() error {
	return nil
}

func (j *JSON) readAll() ([]jsonRecord, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, persistErr("read results file", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []jsonRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, persistErr("decode results file", err)
	}
	return records, nil
}

func (j *JSON) writeAll(records []jsonRecord) error {
	if records == nil {
		records = []jsonRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return persistErr("encode results file", err)
	}
	if err := writeFileAtomic(j.path, data); err != nil {
		return persistErr("write results file", err)
	}
	return nil
}

func toJSONRecord(r model.Result) jsonRecord {
	return jsonRecord{
		Date:     r.Timestamp.Local().Format(model.TimestampLayout),
		WPM:      r.WPM,
		Accuracy: r.Accuracy,
		Username: r.Username,
	}
}

func fromJSONRecord(rec jsonRecord) (model.Result, error) {
	ts, err := time.ParseInLocation(model.TimestampLayout, rec.Date, time.Local)
	if err != nil {
		return model.Result{}, fmt.Errorf("invalid date %q: %w", rec.Date, err)
	}
	return model.Result{
		Timestamp: ts,
		WPM:       rec.WPM,
		Accuracy:  rec.Accuracy,
		Username:  rec.Username,
	}, nil
}
