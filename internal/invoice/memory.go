package invoice

import (
	"context"
	"sync"
	"time"
)

// MemorySequencer keeps the day counters in process memory. Numbers restart
// with the process, so it is meant for local runs and tests.
type MemorySequencer struct {
	mu       sync.Mutex
	counters map[string]int64
	clock    Clock
}

func NewMemorySequencer(clock Clock) *MemorySequencer {
	if clock == nil {
		clock = time.Now
	}
	return &MemorySequencer{counters: make(map[string]int64), clock: clock}
}

// Next returns the next invoice number of the current day
func (s *MemorySequencer) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := DateKey(s.clock())

	s.mu.Lock()
	s.counters[key]++
	ordinal := s.counters[key]
	s.mu.Unlock()

	return Format(key, ordinal), nil
}
