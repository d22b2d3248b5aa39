package scheduler

import (
	"sync"
	"time"

	"game-party/pkg/logger"
)

// Scheduler defers destructive cleanup so a transient disconnect can be
// absorbed by a reconnect. At most one timer is outstanding per key;
// re-scheduling cancels and replaces the previous one.
type Scheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// New creates an empty scheduler
func New() *Scheduler {
	return &Scheduler{timers: make(map[string]*time.Timer)}
}

// Schedule arms onFire to run after delay, replacing any timer already armed
// for key. onFire runs on its own goroutine; a panic in one resource's
// cleanup is logged and never reaches another's.
func (s *Scheduler) Schedule(key string, delay time.Duration, onFire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[key]; ok {
		prev.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		current, ok := s.timers[key]
		if !ok || current != timer {
			// cancelled or replaced while the callback was queued
			s.mu.Unlock()
			return
		}
		delete(s.timers, key)
		s.mu.Unlock()

		defer func() {
			if r := recover(); r != nil {
				logger.Errorf(nil, "scheduled cleanup for %s panicked: %v", key, r)
			}
		}()
		onFire()
	})
	s.timers[key] = timer
}

// Cancel stops the pending timer for key. No-op when nothing is armed or the
// timer already fired; losing the race to the firing callback is harmless
// because the callback only runs while its own handle is still stored.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[key]; ok {
		timer.Stop()
		delete(s.timers, key)
	}
}

// PendingCount returns the number of armed timers
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
