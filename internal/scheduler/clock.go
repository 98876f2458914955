package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultCronSpec fires once a minute.
const DefaultCronSpec = "@every 1m"

// Clock delivers ticks until stopped.
type Clock interface {
	C() <-chan time.Time
	Stop()
}

// IntervalClock ticks at a fixed period.
type IntervalClock struct {
	ticker *time.Ticker
}

func NewIntervalClock(every time.Duration) (*IntervalClock, error) {
	if every <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive, got %s", every)
	}
	return &IntervalClock{ticker: time.NewTicker(every)}, nil
}

func (c *IntervalClock) C() <-chan time.Time { return c.ticker.C }

func (c *IntervalClock) Stop() { c.ticker.Stop() }

// CronClock ticks on a cron schedule ("*/5 * * * *", "@every 30s", ...).
// Ticks the receiver is not ready for are dropped rather than buffered.
type CronClock struct {
	cron *cron.Cron
	ch   chan time.Time
}

func NewCronClock(spec string) (*CronClock, error) {
	if spec == "" {
		spec = DefaultCronSpec
	}
	c := &CronClock{
		cron: cron.New(),
		ch:   make(chan time.Time, 1),
	}
	if _, err := c.cron.AddFunc(spec, c.fire); err != nil {
		return nil, fmt.Errorf("scheduler: parse cron spec %q: %w", spec, err)
	}
	c.cron.Start()
	return c, nil
}

func (c *CronClock) fire() {
	select {
	case c.ch <- time.Now():
	default:
	}
}

func (c *CronClock) C() <-chan time.Time { return c.ch }

// Stop halts the cron runner and waits for a firing job to return.
func (c *CronClock) Stop() {
	<-c.cron.Stop().Done()
}

// NewClock builds a CronClock when spec is set, otherwise an IntervalClock.
func NewClock(spec string, every time.Duration) (Clock, error) {
	if spec != "" {
		return NewCronClock(spec)
	}
	return NewIntervalClock(every)
}
