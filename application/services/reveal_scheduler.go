package services

import (
	"sync"
	"time"

	"github.com/LoadingLlama/relation/domain/config"
	domainservices "github.com/LoadingLlama/relation/domain/services"

	"go.uber.org/zap"
)

// revealRun is one in-flight schedule
type revealRun struct {
	stop chan struct{}
	done chan struct{}
}

// RevealScheduler exposes default-view nodes one at a time. After Start it
// waits the initial delay, then raises the exposed count by one every period
// until it reaches the total. Its budget feeds GraphProjector.
//
// At most one schedule runs at a time. Start cancels any previous schedule,
// and a cancelled schedule never advances again.
type RevealScheduler struct {
	initialDelay time.Duration
	period       time.Duration
	logger       *zap.Logger

	mu         sync.Mutex
	exposed    int
	total      int
	cancelled  bool
	generation uint64
	current    *revealRun
	listeners  []func(exposed int)
}

// NewRevealScheduler creates an idle scheduler using the configured timings
func NewRevealScheduler(cfg *config.DomainConfig, logger *zap.Logger) *RevealScheduler {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &RevealScheduler{
		initialDelay: cfg.RevealInitialDelay,
		period:       cfg.RevealPeriod,
		logger:       logger,
	}
}

// OnAdvance registers fn to run every time the exposed count changes,
// including the reset to zero on Start.
func (s *RevealScheduler) OnAdvance(fn func(exposed int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Start resets the exposed count to zero and schedules increments up to total
func (s *RevealScheduler) Start(total int) {
	s.Cancel()

	if total < 0 {
		total = 0
	}

	s.mu.Lock()
	s.generation++
	generation := s.generation
	s.exposed = 0
	s.total = total
	s.cancelled = false

	var run *revealRun
	if total > 0 {
		run = &revealRun{stop: make(chan struct{}), done: make(chan struct{})}
		s.current = run
	}
	s.mu.Unlock()

	s.logger.Debug("Reveal started", zap.Int("total", total))
	s.notify(generation, 0)

	if run != nil {
		go s.run(generation, run)
	}
}

func (s *RevealScheduler) run(generation uint64, run *revealRun) {
	defer close(run.done)

	timer := time.NewTimer(s.initialDelay)
	defer timer.Stop()

	select {
	case <-run.stop:
		return
	case <-timer.C:
	}
	if !s.advance(generation) {
		return
	}

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		select {
		case <-run.stop:
			return
		case <-ticker.C:
			if !s.advance(generation) {
				return
			}
		}
	}
}

// advance raises the exposed count by one and reports whether the schedule
// should keep going.
func (s *RevealScheduler) advance(generation uint64) bool {
	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		return false
	}
	s.exposed++
	exposed := s.exposed
	finished := s.exposed >= s.total
	if finished {
		s.current = nil
	}
	s.mu.Unlock()

	s.notify(generation, exposed)
	if finished {
		s.logger.Debug("Reveal finished", zap.Int("total", exposed))
	}
	return !finished
}

// Cancel stops the in-flight schedule and freezes the exposed count until the
// next Start. It is idempotent and never blocks, so listeners may call it.
// No listener is invoked for the cancelled schedule once Cancel returns,
// apart from one already running.
func (s *RevealScheduler) Cancel() {
	s.cancel()
}

// Stop cancels like Cancel and then waits for the schedule goroutine to
// exit, including any listener it is running. It must not be called from a
// listener.
func (s *RevealScheduler) Stop() {
	if run := s.cancel(); run != nil {
		<-run.done
	}
}

func (s *RevealScheduler) cancel() *revealRun {
	s.mu.Lock()
	run := s.current
	if run != nil {
		s.current = nil
		s.cancelled = true
		s.generation++
		close(run.stop)
	}
	exposed := s.exposed
	s.mu.Unlock()

	if run != nil {
		s.logger.Debug("Reveal cancelled", zap.Int("exposed", exposed))
	}
	return run
}

// Budget is the reveal budget for the projector: the exposed count while a
// schedule is running or after one was cancelled, otherwise RevealAll.
func (s *RevealScheduler) Budget() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil || s.cancelled {
		return s.exposed
	}
	return domainservices.RevealAll
}

// Exposed returns the current exposed count
func (s *RevealScheduler) Exposed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exposed
}

// Running reports whether a schedule is in flight
func (s *RevealScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// notify runs the listeners for one step of the schedule identified by
// generation, stopping as soon as that schedule is superseded.
func (s *RevealScheduler) notify(generation uint64, exposed int) {
	s.mu.Lock()
	listeners := append(make([]func(int), 0, len(s.listeners)), s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		if !s.isCurrent(generation) {
			return
		}
		fn(exposed)
	}
}

func (s *RevealScheduler) isCurrent(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == generation
}
