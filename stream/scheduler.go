package stream

import (
	"math"
	"sync"
	"time"

	"github.com/pithecene-io/ripestream/metrics"
)

// Capture cadence constants.
const (
	DefaultFPS       = 5
	MinCapturePeriod = 50 * time.Millisecond
)

// PeriodForFPS converts a target frame rate into a tick period of
// floor(1000/fps) milliseconds, never shorter than 50ms. Non-positive fps
// uses the default of 5.
func PeriodForFPS(fps float64) time.Duration {
	if fps <= 0 || math.IsNaN(fps) {
		fps = DefaultFPS
	}
	period := time.Duration(math.Floor(1000/fps)) * time.Millisecond
	return max(period, MinCapturePeriod)
}

// Scheduler runs capture cycles on a fixed-period ticker with single-flight
// backpressure: at most one cycle runs at a time, and any number of ticks
// arriving while a cycle runs collapse into one follow-up cycle.
type Scheduler struct {
	period  time.Duration
	cycle   func()
	active  func() bool
	metrics *metrics.Collector

	mu       sync.Mutex
	inFlight bool
	queued   bool
	started  bool
	stopped  bool
	gen      uint64
	ticker   *time.Ticker
	stopCh   chan struct{}
	cycles   int64
	ticks    int64
	folded   int64

	wg sync.WaitGroup
}

// NewScheduler creates a scheduler. cycle performs one encode/send attempt;
// active reports whether the session is still streaming and gates follow-up
// cycles. collector may be nil.
func NewScheduler(period time.Duration, cycle func(), active func() bool, collector *metrics.Collector) *Scheduler {
	return &Scheduler{
		period:  period,
		cycle:   cycle,
		active:  active,
		metrics: collector,
		stopCh:  make(chan struct{}),
	}
}

// Period returns the tick period.
func (s *Scheduler) Period() time.Duration {
	return s.period
}

// Start begins ticking. Start after Stop is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	s.ticker = time.NewTicker(s.period)

	go s.tickLoop(s.ticker.C, s.stopCh)
}

func (s *Scheduler) tickLoop(ticks <-chan time.Time, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticks:
			s.Trigger()
		}
	}
}

// Trigger handles one tick. A tick arriving while a cycle runs only marks
// a follow-up as pending.
func (s *Scheduler) Trigger() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.ticks++
	if s.inFlight {
		s.queued = true
		s.folded++
		s.mu.Unlock()
		s.metrics.IncTickCoalesced()
		return
	}
	s.inFlight = true
	gen := s.gen
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(gen)
}

func (s *Scheduler) run(gen uint64) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		s.queued = false
		s.mu.Unlock()

		s.cycle()

		// active takes the session lock; never call it under s.mu.
		again := s.active()

		s.mu.Lock()
		s.cycles++
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		if s.queued && again {
			s.mu.Unlock()
			continue
		}
		s.inFlight = false
		s.mu.Unlock()
		return
	}
}

// Stop cancels the ticker and clears both flags. A cycle already running
// finishes but no follow-up runs. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.gen++
	s.inFlight = false
	s.queued = false
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// Wait blocks until any running cycle has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// SchedulerStats is a point-in-time view of scheduler counters.
type SchedulerStats struct {
	Ticks     int64
	Cycles    int64
	Coalesced int64
}

// Stats returns the scheduler counters.
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStats{Ticks: s.ticks, Cycles: s.cycles, Coalesced: s.folded}
}
