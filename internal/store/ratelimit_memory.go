package store

import (
	"context"
	"slices"
	"sync"
	"time"
)

const sweepEvery = 1024

type hitLog struct {
	hits   []time.Time // ascending
	window time.Duration
}

// RateLimitMemoryStore is an in-memory implementation of ratelimit.Store for
// single-instance deployments and tests. Idle keys are swept as records come in.
type RateLimitMemoryStore struct {
	mu      sync.Mutex
	logs    map[string]*hitLog
	now     func() time.Time
	records int
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store.
func NewRateLimitMemoryStore() *RateLimitMemoryStore {
	return &RateLimitMemoryStore{
		logs: make(map[string]*hitLog),
		now:  time.Now,
	}
}

// WithClock replaces the time source.
func (s *RateLimitMemoryStore) WithClock(now func() time.Time) *RateLimitMemoryStore {
	s.now = now

	return s
}

func (s *RateLimitMemoryStore) Record(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	log, ok := s.logs[key]
	if !ok {
		log = &hitLog{}
		s.logs[key] = log
	}

	log.window = window
	log.hits = append(expire(log.hits, now.Add(-window)), now)

	s.records++
	if s.records%sweepEvery == 0 {
		s.sweepLocked(now)
	}

	return int64(len(log.hits)), nil
}

// Sweep drops keys whose every hit fell out of their window and returns how many were dropped.
func (s *RateLimitMemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sweepLocked(s.now())
}

// Keys returns the number of tracked keys.
func (s *RateLimitMemoryStore) Keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.logs)
}

func (s *RateLimitMemoryStore) sweepLocked(now time.Time) int {
	dropped := 0

	for key, log := range s.logs {
		if len(expire(log.hits, now.Add(-log.window))) == 0 {
			delete(s.logs, key)
			dropped++
		}
	}

	return dropped
}

// expire removes the hits at or before cutoff. hits is sorted, so they form a prefix.
func expire(hits []time.Time, cutoff time.Time) []time.Time {
	i, _ := slices.BinarySearchFunc(hits, cutoff, func(hit, c time.Time) int {
		if hit.After(c) {
			return 1
		}

		return -1
	})

	return slices.Delete(hits, 0, i)
}
