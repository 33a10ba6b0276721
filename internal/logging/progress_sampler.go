package logging

import (
	"strings"
	"sync"
)

// ProgressSampler suppresses repetitive download progress logs. Each artifact
// is tracked separately so interleaved files do not defeat the throttle.
type ProgressSampler struct {
	mu         sync.Mutex
	bucketSize float64
	buckets    map[string]int
}

// NewProgressSampler constructs a sampler that emits when an artifact's
// percent crosses a bucket boundary (default 5%) or is seen for the first time.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, buckets: make(map[string]int)}
}

// ShouldLog reports whether a progress record for file should be logged.
// Negative percent means unknown and only logs on first sight.
func (s *ProgressSampler) ShouldLog(file string, percent float64) bool {
	if s == nil {
		return true
	}
	file = strings.TrimSpace(file)
	s.mu.Lock()
	defer s.mu.Unlock()

	last, seen := s.buckets[file]
	if !seen {
		last = -1
		s.buckets[file] = last
	}
	if percent < 0 {
		return !seen
	}
	bucket := int(percent / s.bucketSize)
	if percent >= 100 {
		bucket = int(100 / s.bucketSize)
	}
	if bucket > last {
		s.buckets[file] = bucket
		return true
	}
	return !seen
}

// Forget drops the state for file (e.g. when its download finishes).
func (s *ProgressSampler) Forget(file string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.buckets, strings.TrimSpace(file))
	s.mu.Unlock()
}

// Reset clears the sampler state.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.buckets = make(map[string]int)
	s.mu.Unlock()
}
