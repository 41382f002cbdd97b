// Package store persists typing results and accounts.
package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/verte-zerg/typespeed/internal/model"
)

// Supported backends.
const (
	BackendMemory = "memory"
	BackendText   = "text"
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Backends lists the names accepted by Open.
var Backends = []string{BackendMemory, BackendText, BackendJSON, BackendSQLite}

// ErrPersistence matches every PersistenceError via errors.Is.
var ErrPersistence = errors.New("persistence failure")

// PersistenceError reports an I/O or storage engine failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// ResultStore is an append-only log of results.
//
// An empty owner means every record. List returns records newest first and an
// empty slice when nothing has been stored yet.
type ResultStore interface {
	Append(ctx context.Context, r model.Result) error
	List(ctx context.Context, owner string) ([]model.Result, error)
	Reset(ctx context.Context, owner string) (int64, error)
	Close() error
}

// Open returns the ResultStore for backend, rooted at path when the backend is file based.
func Open(backend, path string) (ResultStore, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendMemory:
		return NewMemory(), nil
	case BackendText:
		return OpenText(path)
	case BackendJSON:
		return OpenJSON(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q (available: %s)", backend, strings.Join(Backends, ", "))
	}
}

func validateResult(r model.Result) error {
	if r.Timestamp.IsZero() {
		return fmt.Errorf("result timestamp is zero")
	}
	if math.IsNaN(r.WPM) || math.IsInf(r.WPM, 0) || r.WPM < 0 {
		return fmt.Errorf("result wpm must be a finite number >= 0, got %v", r.WPM)
	}
	if math.IsNaN(r.Accuracy) || r.Accuracy < 0 || r.Accuracy > 100 {
		return fmt.Errorf("result accuracy must be between 0 and 100, got %v", r.Accuracy)
	}
	if strings.ContainsAny(r.Username, "\r\n") {
		return fmt.Errorf("result owner contains a line break")
	}
	return nil
}

// newestAppendedFirst reverses results read from an append-only log.
// File backends store local wall time, which repeats when clocks fall back,
// so the append order is the only reliable completion order.
func newestAppendedFirst(results []model.Result) []model.Result {
	out := make([]model.Result, len(results))
	for i, r := range results {
		out[len(results)-1-i] = r
	}
	return out
}

// newestFirst orders results given in insertion order by timestamp descending.
// Equal timestamps keep the later insertion first.
func newestFirst(results []model.Result) []model.Result {
	out := make([]model.Result, len(results))
	for i, r := range results {
		out[len(results)-1-i] = r
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func filterOwner(results []model.Result, owner string) []model.Result {
	if owner == "" {
		return results
	}
	out := make([]model.Result, 0, len(results))
	for _, r := range results {
		if r.Username == owner {
			out = append(out, r)
		}
	}
	return out
}

// splitOwner partitions results into those owned by owner and the rest.
func splitOwner(results []model.Result, owner string) (matched, kept []model.Result) {
	for _, r := range results {
		if owner == "" || r.Username == owner {
			matched = append(matched, r)
			continue
		}
		kept = append(kept, r)
	}
	return matched, kept
}
