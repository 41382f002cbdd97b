// Package cache keeps a short-lived copy of the leaderboard.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/verte-zerg/typespeed/internal/model"
)

// Leaderboard caches the computed leaderboard. A miss returns ok == false.
type Leaderboard interface {
	Get(ctx context.Context) (entries []model.LeaderboardEntry, ok bool, err error)
	Set(ctx context.Context, entries []model.LeaderboardEntry) error
	Invalidate(ctx context.Context) error
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context) ([]model.LeaderboardEntry, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, []model.LeaderboardEntry) error         { return nil }
func (Nop) Invalidate(context.Context) error                            { return nil }

// Memory is an in-process Leaderboard with a TTL.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries []model.LeaderboardEntry
	expires time.Time
	valid   bool
}

// NewMemory returns a Memory cache. A non-positive ttl never expires.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now}
}

func (m *Memory) Get(context.Context) ([]model.LeaderboardEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.valid || (m.ttl > 0 && !m.now().Before(m.expires)) {
		return nil, false, nil
	}
	out := make([]model.LeaderboardEntry, len(m.entries))
	copy(out, m.entries)
	return out, true, nil
}

func (m *Memory) Set(_ context.Context, entries []model.LeaderboardEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append([]model.LeaderboardEntry(nil), entries...)
	m.expires = m.now().Add(m.ttl)
	m.valid = true
	return nil
}

func (m *Memory) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.valid = false
	return nil
}
