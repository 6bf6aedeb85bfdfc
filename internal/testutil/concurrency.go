package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/specialistvlad/questgrid/internal/app"
	"github.com/specialistvlad/questgrid/internal/quest"
)

// Sleeper builds cases that sleep and record when they ran, for tests of the
// parallel runner.
type Sleeper struct {
	ExecutionTimes map[string]*ExecutionRecord
	mu             sync.Mutex
	sleepDuration  time.Duration
	completionChan chan<- string
}

// NewSleeper creates a sleeper. completionChan may be nil.
func NewSleeper(completionChan chan<- string, sleep time.Duration) *Sleeper {
	return &Sleeper{
		ExecutionTimes: make(map[string]*ExecutionRecord),
		sleepDuration:  sleep,
		completionChan: completionChan,
	}
}

// Case returns a case named id.
func (s *Sleeper) Case(id string) app.Case {
	return app.Case{Name: id, Body: func(ctx context.Context, _ *quest.Quest) error {
		startTime := time.Now()
		select {
		case <-time.After(s.sleepDuration):
		case <-ctx.Done():
			return ctx.Err()
		}
		endTime := time.Now()

		s.mu.Lock()
		s.ExecutionTimes[id] = &ExecutionRecord{Start: startTime, End: endTime}
		s.mu.Unlock()

		if s.completionChan != nil {
			s.completionChan <- id
		}
		return nil
	}}
}

// Record returns the execution record of id.
func (s *Sleeper) Record(id string) (*ExecutionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ExecutionTimes[id]
	return r, ok
}
