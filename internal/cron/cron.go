// Package cron drives the engine's periodic maintenance: weight
// learning, stagnation detection, commitment breach detection, and
// resource-pressure checks. Jobs follow spec §7's discipline — every
// failure is recorded and swallowed, never propagated as a crash — and
// a job that keeps failing is backed off so a wedged store isn't
// hammered on every tick.
package cron

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/emergent-company/epistemic-core/internal/clock"
)

// Job is a named unit of periodic maintenance work. Run must not
// panic; errors are recorded in the job's run stats and swallowed.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobStats is a snapshot of one job's run record.
type JobStats struct {
	Name         string
	Runs         int
	Failures     int
	ConsecFails  int
	LastRun      time.Time
	LastDuration time.Duration
	LastError    string
}

// maxBackoffShift caps the failure backoff at interval << 3.
const maxBackoffShift = 3

type entry struct {
	job      Job
	interval time.Duration
	stats    JobStats
}

// Scheduler owns the registered maintenance jobs and their run
// records. Construct with New, register with AddJob, then Start once.
type Scheduler struct {
	mu      sync.Mutex
	logger  *slog.Logger
	clock   clock.Source
	entries []*entry
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates an empty maintenance scheduler. The clock is used to
// stamp and measure runs, so tests can observe timing deterministically.
func New(logger *slog.Logger, clk clock.Source) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Scheduler{logger: logger, clock: clk}
}

// AddJob registers job to run every interval once Start is called.
// Intervals <= 0 disable the job (it is never scheduled).
func (s *Scheduler) AddJob(job Job, interval time.Duration) {
	if interval <= 0 {
		s.logger.Debug("maintenance job disabled", "job", job.Name())
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entry{job: job, interval: interval, stats: JobStats{Name: job.Name()}})
}

// Start runs every registered job once immediately, then re-arms each
// on its own timer. A job whose last run failed waits longer before
// the next attempt (see backoffDelay). Start is idempotent.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	entries := s.entries
	s.mu.Unlock()

	for _, e := range entries {
		s.wg.Add(1)
		go func(e *entry) {
			defer s.wg.Done()
			s.logger.Info("maintenance job started", "job", e.job.Name(), "interval", e.interval)
			timer := time.NewTimer(0) // first run happens immediately
			defer timer.Stop()
			for {
				select {
				case <-timer.C:
					timer.Reset(s.runOnce(ctx, e))
				case <-ctx.Done():
					return
				}
			}
		}(e)
	}
}

// runOnce executes the job, records its outcome, and returns the delay
// until the next attempt.
func (s *Scheduler) runOnce(ctx context.Context, e *entry) time.Duration {
	begin := s.clock.Now()
	err := e.job.Run(ctx)
	elapsed := s.clock.Now().Sub(begin)

	s.mu.Lock()
	st := &e.stats
	st.Runs++
	st.LastRun = begin
	st.LastDuration = elapsed
	if err != nil {
		st.Failures++
		st.ConsecFails++
		st.LastError = err.Error()
	} else {
		st.ConsecFails = 0
		st.LastError = ""
	}
	delay := backoffDelay(e.interval, st.ConsecFails)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("maintenance job failed",
			"job", e.job.Name(), "error", err, "next_attempt_in", delay)
	} else {
		s.logger.Debug("maintenance job ran", "job", e.job.Name(), "took", elapsed)
	}
	return delay
}

// backoffDelay doubles the base interval per consecutive failure, up
// to interval << maxBackoffShift. Zero consecutive failures yields the
// base interval.
func backoffDelay(interval time.Duration, consecFails int) time.Duration {
	shift := consecFails
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return interval << shift
}

// Stats returns a snapshot of every registered job's run record, in
// registration order.
func (s *Scheduler) Stats() []JobStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStats, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.stats)
	}
	return out
}

// Stop signals every job goroutine to exit and waits for them. Safe to
// call when Start never ran, and safe to call twice.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
	s.logger.Info("maintenance scheduler stopped")
}
