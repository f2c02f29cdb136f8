package worker

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/clock"
)

// Scheduler owns a set of delayed tasks whose lifetime is tied to one
// session or service. Close revokes every pending task.
type Scheduler struct {
	clock  clock.Clock
	logger *zap.Logger

	mu     sync.Mutex
	timers map[uint64]*clock.Timer
	nextID uint64
	closed bool
}

// NewScheduler builds a scheduler on the given clock.
func NewScheduler(c clock.Clock, logger *zap.Logger) *Scheduler {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		clock:  c,
		logger: logger,
		timers: make(map[uint64]*clock.Timer),
	}
}

// After runs task once d has elapsed. The returned cancel func reports
// whether the task was revoked before it ran. After on a closed
// scheduler is a no-op.
func (s *Scheduler) After(d time.Duration, task func()) (cancel func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() bool { return false }
	}

	id := s.nextID
	s.nextID++
	s.timers[id] = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if _, ok := s.timers[id]; !ok {
			s.mu.Unlock()
			return
		}
		delete(s.timers, id)
		s.mu.Unlock()

		task()
	})

	return func() bool {
		s.mu.Lock()
		timer, ok := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()
		return ok && timer.Stop()
	}
}

// Step is one stage of a sequence. Before runs when the step is
// scheduled, Run once its delay has elapsed.
type Step struct {
	Name   string
	Delay  time.Duration
	Before func()
	Run    func() error
}

// RunSequence schedules steps strictly one after another: step i+1 is
// only scheduled once step i has run. A step error ends the sequence.
// onDone, if set, receives nil after the final step or the first error.
// A sequence revoked by Close never calls onDone.
func (s *Scheduler) RunSequence(steps []Step, onDone func(error)) {
	s.runStep(steps, 0, onDone)
}

func (s *Scheduler) runStep(steps []Step, idx int, onDone func(error)) {
	if idx >= len(steps) {
		if onDone != nil {
			onDone(nil)
		}
		return
	}
	if s.Closed() {
		return
	}
	step := steps[idx]
	if step.Before != nil {
		step.Before()
	}
	s.After(step.Delay, func() {
		if step.Run != nil {
			if err := step.Run(); err != nil {
				s.logger.Warn("scheduled step failed", zap.String("step", step.Name), zap.Error(err))
				if onDone != nil {
					onDone(err)
				}
				return
			}
		}
		s.runStep(steps, idx+1, onDone)
	})
}

// Pending returns the number of scheduled tasks that have not run.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Closed reports whether Close has been called.
func (s *Scheduler) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close revokes every pending task. It is safe to call more than once.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
