package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanboishere/MetaOdds/internal/metrics"
)

type chanClock struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func newChanClock() *chanClock { return &chanClock{ch: make(chan time.Time)} }

func (c *chanClock) C() <-chan time.Time { return c.ch }
func (c *chanClock) Stop()               { c.stopped.Store(true) }

// gatedPass blocks each pass until release is signalled and tracks overlap.
type gatedPass struct {
	started    chan struct{}
	release    chan struct{}
	runs       atomic.Int32
	active     atomic.Int32
	maxActive  atomic.Int32
	cancelSeen atomic.Bool
}

func newGatedPass() *gatedPass {
	return &gatedPass{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (g *gatedPass) run(ctx context.Context) error {
	n := g.active.Add(1)
	for {
		m := g.maxActive.Load()
		if n <= m || g.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	g.runs.Add(1)
	g.started <- struct{}{}
	<-g.release
	if ctx.Err() != nil {
		g.cancelSeen.Store(true)
	}
	g.active.Add(-1)
	return nil
}

func waitStarted(t *testing.T, g *gatedPass) {
	t.Helper()
	select {
	case <-g.started:
	case <-time.After(2 * time.Second):
		t.Fatal("pass did not start")
	}
}

func waitIdle(t *testing.T, s *Scheduler) {
	t.Helper()
	require.Eventually(t, func() bool { return s.State() == Idle }, 2*time.Second, 5*time.Millisecond)
}

func TestRunStartsImmediatelyAndDropsOverlappingTicks(t *testing.T) {
	g := newGatedPass()
	m := metrics.New()
	s := New(g.run, nil, m)
	clock := newChanClock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, clock) }()

	waitStarted(t, g)
	assert.Equal(t, Running, s.State())

	clock.ch <- time.Now()
	clock.ch <- time.Now()
	assert.EqualValues(t, 1, g.runs.Load())

	g.release <- struct{}{}
	waitIdle(t, s)

	clock.ch <- time.Now()
	waitStarted(t, g)
	assert.EqualValues(t, 2, g.runs.Load())

	cancel()
	// shutdown waits for the in-flight pass, which still sees a live context
	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Run returned before the running pass finished")
	default:
	}
	g.release <- struct{}{}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.EqualValues(t, 1, g.maxActive.Load())
	assert.False(t, g.cancelSeen.Load())
	assert.True(t, clock.stopped.Load())
	assert.Equal(t, 2.0, droppedTicks(t, m))
}

func droppedTicks(t *testing.T, m *metrics.Recorder) float64 {
	t.Helper()
	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "metaodds_scheduler_ticks_dropped_total" {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	return 0
}

func TestNoPassesAfterRunReturns(t *testing.T) {
	g := newGatedPass()
	s := New(g.run, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, newChanClock()) }()
	waitStarted(t, g)

	cancel()
	g.release <- struct{}{}
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	assert.False(t, s.Trigger(context.Background()))
	ran, err := s.RunOnce(context.Background())
	assert.False(t, ran)
	assert.NoError(t, err)
	assert.Equal(t, Idle, s.State())
	assert.EqualValues(t, 1, g.runs.Load())
}

func TestRunOnce(t *testing.T) {
	g := newGatedPass()
	s := New(g.run, nil, nil)

	require.True(t, s.Trigger(context.Background()))
	waitStarted(t, g)

	ran, err := s.RunOnce(context.Background())
	assert.False(t, ran)
	assert.NoError(t, err)
	assert.False(t, s.Trigger(context.Background()))

	g.release <- struct{}{}
	s.Wait()
	assert.Equal(t, Idle, s.State())

	boom := errors.New("boom")
	s = New(func(context.Context) error { return boom }, nil, nil)
	ran, err = s.RunOnce(context.Background())
	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Idle, s.State())
}

func TestPanickingPassReleasesScheduler(t *testing.T) {
	s := New(func(context.Context) error { panic("kaboom") }, nil, nil)
	ran, err := s.RunOnce(context.Background())
	assert.True(t, ran)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, Idle, s.State())
}

func TestClocks(t *testing.T) {
	_, err := NewIntervalClock(0)
	require.Error(t, err)

	ic, err := NewIntervalClock(5 * time.Millisecond)
	require.NoError(t, err)
	select {
	case <-ic.C():
	case <-time.After(time.Second):
		t.Fatal("interval clock did not tick")
	}
	ic.Stop()

	_, err = NewCronClock("not a spec")
	require.Error(t, err)

	cc, err := NewCronClock("@every 1s")
	require.NoError(t, err)
	select {
	case <-cc.C():
	case <-time.After(3 * time.Second):
		t.Fatal("cron clock did not tick")
	}
	cc.Stop()

	c, err := NewClock("", time.Minute)
	require.NoError(t, err)
	assert.IsType(t, &IntervalClock{}, c)
	c.Stop()
	c, err = NewClock(DefaultCronSpec, 0)
	require.NoError(t, err)
	assert.IsType(t, &CronClock{}, c)
	c.Stop()
}
