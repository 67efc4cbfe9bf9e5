package scheduler

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

type Task func(ctx context.Context) error

// Runner ticks a task at a fixed interval. A tick that lands while the
// previous run is still going is skipped, and a paused runner skips
// ticks until resumed.
type Runner struct {
	name     string
	interval time.Duration
	task     Task

	running atomic.Bool
	paused  atomic.Bool
	kick    chan struct{}
}

func New(name string, interval time.Duration, task Task) *Runner {
	return &Runner{
		name:     name,
		interval: interval,
		task:     task,
		kick:     make(chan struct{}, 1),
	}
}

func (r *Runner) Pause()       { r.paused.Store(true) }
func (r *Runner) Resume()      { r.paused.Store(false) }
func (r *Runner) Paused() bool { return r.paused.Load() }
func (r *Runner) Busy() bool   { return r.running.Load() }

// Kick requests an immediate run (manual trigger). No-op if one is
// already queued.
func (r *Runner) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is done. The task runs once immediately.
func (r *Runner) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	r.fire(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.fire(ctx)
		case <-r.kick:
			r.fire(ctx)
		}
	}
}

func (r *Runner) fire(ctx context.Context) {
	if r.paused.Load() {
		log.Printf("[%s] paused, skipping tick", r.name)
		return
	}
	if !r.running.CompareAndSwap(false, true) {
		log.Printf("[%s] previous run still going, skipping tick", r.name)
		return
	}
	defer r.running.Store(false)

	if err := r.task(ctx); err != nil {
		log.Printf("[%s] error: %v", r.name, err)
	}
}
