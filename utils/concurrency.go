package utils

import (
	"sync"
	"time"
)

// WorkerPool runs jobs on a bounded number of goroutines, spacing job starts
// by at least the configured rate limit.
type WorkerPool struct {
	maxWorkers  int
	rateLimit   time.Duration
	semaphore   chan struct{}
	wg          sync.WaitGroup
	mu          sync.Mutex
	lastRequest time.Time
}

// NewWorkerPool creates a WorkerPool with the given concurrency and rate limit.
func NewWorkerPool(maxWorkers, rateLimitMs int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		rateLimit:  time.Duration(rateLimitMs) * time.Millisecond,
		semaphore:  make(chan struct{}, maxWorkers),
	}
}

// Submit enqueues a job for execution in the pool. It blocks while all
// workers are busy.
func (wp *WorkerPool) Submit(job func()) {
	wp.wg.Add(1)
	wp.semaphore <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		wp.enforceRateLimit()
		job()
	}()
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) enforceRateLimit() {
	if wp.rateLimit <= 0 {
		return
	}

	wp.mu.Lock()
	defer wp.mu.Unlock()

	if !wp.lastRequest.IsZero() {
		if elapsed := time.Since(wp.lastRequest); elapsed < wp.rateLimit {
			time.Sleep(wp.rateLimit - elapsed)
		}
	}
	wp.lastRequest = time.Now()
}

// KeySet is a thread-safe set of strings (listing URLs, property ids).
type KeySet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewKeySet creates an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[string]struct{})}
}

// Add returns true if the key was newly added, false if already present.
func (s *KeySet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains reports whether key has been added.
func (s *KeySet) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[key]
	return exists
}

// Size returns the number of unique keys tracked.
func (s *KeySet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
