// Package scheduler triggers ingestion passes on a clock without ever letting
// two passes overlap.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yanboishere/MetaOdds/internal/logging"
	"github.com/yanboishere/MetaOdds/internal/metrics"
)

// State of the scheduler.
type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// PassFunc runs one ingestion pass.
type PassFunc func(ctx context.Context) error

// Scheduler runs at most one pass at a time. Triggers that arrive while a pass
// is running are dropped, not queued.
type Scheduler struct {
	pass    PassFunc
	logger  *zap.Logger
	metrics *metrics.Recorder

	mu       sync.Mutex
	stopping bool
	state    atomic.Int32
	wg       sync.WaitGroup
}

func New(pass PassFunc, logger *zap.Logger, m *metrics.Recorder) *Scheduler {
	return &Scheduler{
		pass:    pass,
		logger:  logging.OrNop(logger).Named("scheduler"),
		metrics: m,
	}
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// acquire claims the scheduler and registers the pass with wg. It fails once
// Run has begun draining.
func (s *Scheduler) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping || !s.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Scheduler) stop() {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()
}

// Trigger starts a pass in the background if none is running and reports
// whether it did. The pass keeps running when ctx is cancelled; use Wait.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.acquire() {
		return false
	}
	go func() {
		defer s.wg.Done()
		_ = s.run(context.WithoutCancel(ctx))
	}()
	return true
}

// RunOnce runs a pass synchronously if none is running. The bool is false when
// the call was dropped because another pass holds the scheduler.
func (s *Scheduler) RunOnce(ctx context.Context) (bool, error) {
	if !s.acquire() {
		return false, nil
	}
	defer s.wg.Done()
	return true, s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pass panicked: %v", r)
		}
		if err != nil {
			s.logger.Error("pass failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		} else {
			s.logger.Debug("pass finished", zap.Duration("elapsed", time.Since(start)))
		}
		s.state.Store(int32(Idle))
	}()
	return s.pass(ctx)
}

// Run fires one pass immediately and then one per clock tick until ctx is
// cancelled. It stops the clock and waits for the in-flight pass before returning.
// After Run returns the scheduler accepts no more passes.
func (s *Scheduler) Run(ctx context.Context, clock Clock) error {
	defer clock.Stop()
	defer s.Wait()
	defer s.stop()

	s.Trigger(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", zap.Stringer("state", s.State()))
			return nil
		case tick := <-clock.C():
			if !s.Trigger(ctx) {
				s.metrics.RecordTickDropped()
				s.logger.Warn("tick dropped, previous pass still running", zap.Time("tick", tick))
			}
		}
	}
}

// Wait blocks until no pass is running.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
