package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"wingo-engine/metrics"
)

const DefaultTickInterval = 2 * time.Second

// Advancer moves one mode's round forward.
type Advancer interface {
	Advance(ctx context.Context, mode string) (Transition, error)
}

// TickLease decides which process drives the rounds when several run
// against one store. Acquire both takes and renews the lease.
type TickLease interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Scheduler polls every mode once per interval. The next tick is scheduled
// only after the previous one returns, so ticks never overlap.
type Scheduler struct {
	advancer Advancer
	modes    []string
	interval time.Duration
	lease    TickLease
	log      logrus.FieldLogger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func NewScheduler(advancer Advancer, modes []string, interval time.Duration, log logrus.FieldLogger) *Scheduler {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Scheduler{
		advancer: advancer,
		modes:    append([]string(nil), modes...),
		interval: interval,
		log:      log,
	}
}

// WithLease makes every tick conditional on holding lease.
func (s *Scheduler) WithLease(lease TickLease) *Scheduler {
	s.lease = lease
	return s
}

// Start runs a first tick immediately and keeps ticking in the background
// until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerRunning
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(ctx, s.stop, s.done)
	s.log.WithField("modes", s.modes).WithField("interval", s.interval).Info("round scheduler started")
	return nil
}

// Stop halts the loop and waits for an in-flight tick to finish. Stopping a
// scheduler that is not running is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.running = false
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
	s.log.Info("round scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer s.releaseLease()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		case <-timer.C:
			if err := s.Tick(ctx); err != nil {
				s.log.WithError(err).Debug("tick finished with errors")
			}
			timer.Reset(s.interval)
		}
	}
}

// Tick advances every mode once, in order. A failing mode is logged and
// does not keep the others from advancing; all failures are returned.
func (s *Scheduler) Tick(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.ObserveTick(time.Since(start)) }()

	if s.lease != nil {
		held, err := s.lease.Acquire(ctx)
		if err != nil {
			s.log.WithError(err).Warn("tick lease unavailable, skipping tick")
			return err
		}
		if !held {
			return nil
		}
	}

	var result *multierror.Error
	for _, mode := range s.modes {
		if ctx.Err() != nil {
			break
		}
		if err := s.advance(ctx, mode); err != nil {
			s.log.WithField("mode", mode).WithError(err).Error("failed to advance round")
			metrics.RecordAdvanceError(mode)
			result = multierror.Append(result, fmt.Errorf("%s: %w", mode, err))
		}
	}
	return result.ErrorOrNil()
}

func (s *Scheduler) advance(ctx context.Context, mode string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while advancing: %v", r)
		}
	}()

	t, err := s.advancer.Advance(ctx, mode)
	if err != nil {
		return err
	}
	if t != TransitionNone {
		s.log.WithField("mode", mode).WithField("transition", t).Debug("round advanced")
	}
	return nil
}

func (s *Scheduler) releaseLease() {
	if s.lease == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.lease.Release(ctx); err != nil {
		s.log.WithError(err).Warn("failed to release tick lease")
	}
}
