package store

import (
	"context"
	"sync"

	"github.com/verte-zerg/typespeed/internal/model"
)

// Memory keeps results in process memory.
type Memory struct {
	mu      sync.Mutex
	results []model.Result
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Append implements ResultStore.
func (m *Memory) Append(_ context.Context, r model.Result) error {
	if err := validateResult(r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

// List implements ResultStore.
func (m *Memory) List(_ context.Context, owner string) ([]model.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newestFirst(filterOwner(m.results, owner)), nil
}

// Reset implements ResultStore.
func (m *Memory) Reset(_ context.Context, owner string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched, kept := splitOwner(m.results, owner)
	m.results = kept
	return int64(len(matched)), nil
}

// Close implements ResultStore.
func (m *Memory) Close() error {
	return nil
}
