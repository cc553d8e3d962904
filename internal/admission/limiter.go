package admission

import (
	"container/list"
	"sync"
	"time"

	pkgerrors "codoleet/pkg/errors"
)

// Config controls the sliding-window limiter.
type Config struct {
	// Window is the length of the sliding window.
	Window time.Duration `yaml:"window"`

	// MaxRequests is the number of requests allowed per key per window.
	MaxRequests int `yaml:"max_requests"`

	// MaxKeys bounds the number of tracked keys. Least recently seen keys
	// are evicted first, so the table cannot grow without bound.
	MaxKeys int `yaml:"max_keys"`
}

// DefaultConfig mirrors the intake defaults: 30 requests per 15 minutes.
func DefaultConfig() Config {
	return Config{
		Window:      15 * time.Minute,
		MaxRequests: 30,
		MaxKeys:     4096,
	}
}

type windowEntry struct {
	key  string
	hits []time.Time
}

// SlidingWindow is a sliding-window request limiter keyed by client
// address, backed by a fixed-capacity LRU so stale clients expire instead
// of accumulating.
type SlidingWindow struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List
	window  time.Duration
	max     int
	maxKeys int
	now     func() time.Time
}

// NewSlidingWindow creates a limiter from config, filling defaults for
// missing values.
func NewSlidingWindow(cfg Config) *SlidingWindow {
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 30
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 4096
	}
	return &SlidingWindow{
		items:   make(map[string]*list.Element, cfg.MaxKeys),
		order:   list.New(),
		window:  cfg.Window,
		max:     cfg.MaxRequests,
		maxKeys: cfg.MaxKeys,
		now:     time.Now,
	}
}

// Allow records one request for key and reports whether it fits in the
// window. When the request is rejected it returns how long the caller
// should wait before the oldest counted request leaves the window.
func (s *SlidingWindow) Allow(key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-s.window)

	elem, ok := s.items[key]
	if !ok {
		entry := &windowEntry{key: key, hits: []time.Time{now}}
		elem = s.order.PushFront(entry)
		s.items[key] = elem
		if len(s.items) > s.maxKeys {
			s.evictOldest()
		}
		return 0, nil
	}

	entry := elem.Value.(*windowEntry)
	entry.hits = pruneBefore(entry.hits, cutoff)
	s.order.MoveToFront(elem)

	if len(entry.hits) >= s.max {
		retryAfter := entry.hits[0].Add(s.window).Sub(now)
		return retryAfter, pkgerrors.RateLimited(key)
	}

	entry.hits = append(entry.hits, now)
	return 0, nil
}

// Len reports the number of tracked keys.
func (s *SlidingWindow) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// SetClock overrides the time source. Test hook.
func (s *SlidingWindow) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *SlidingWindow) evictOldest() {
	elem := s.order.Back()
	if elem == nil {
		return
	}
	entry := elem.Value.(*windowEntry)
	delete(s.items, entry.key)
	s.order.Remove(elem)
}

func pruneBefore(hits []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(hits) && !hits[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return hits
	}
	remaining := make([]time.Time, len(hits)-idx)
	copy(remaining, hits[idx:])
	return remaining
}
