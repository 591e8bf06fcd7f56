// internal/loop/loop.go
// Package loop provides the single goroutine that owns all engine state.
//
// Components never lock their state. Every mutation runs as a task on the
// loop, network work runs on a bounded worker pool, and results come back to
// the loop as new tasks. Timers post their callbacks onto the loop too, so a
// component only ever observes its state from one goroutine.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/panjf2000/ants/v2"
)

// Options configures a Loop.
type Options struct {
	Workers int             // Size of the network worker pool
	Clock   clockwork.Clock // Clock driving timers, real clock when nil
	Logger  *slog.Logger    // Logger for task panics, default logger when nil
}

// Loop is a single-goroutine task executor with a FIFO queue.
type Loop struct {
	log   *slog.Logger
	clock clockwork.Clock
	pool  *ants.Pool

	// ctx is handed to async work and cancelled on Close
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	queue  []func()
	closed bool

	wake chan struct{}
	done chan struct{}
}

// New starts a loop goroutine.
//
// Parameters:
//   - opts: Worker pool size, clock and logger
//
// Returns:
//   - *Loop: Running loop, stopped with Close
//   - error: If the worker pool cannot be created
func New(opts Options) (*Loop, error) {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	log := opts.Logger
	pool, err := ants.NewPool(opts.Workers, ants.WithPanicHandler(func(p interface{}) {
		log.Error("worker panic", "panic", fmt.Sprint(p))
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		log:    log,
		clock:  opts.Clock,
		pool:   pool,
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Clock returns the clock driving the loop's timers.
func (l *Loop) Clock() clockwork.Clock { return l.clock }

// Context is cancelled when the loop closes.
func (l *Loop) Context() context.Context { return l.ctx }

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Post enqueues fn to run on the loop. It returns false after Close.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to finish.
// It must not be called from the loop goroutine itself.
// It returns false when the loop closed before fn ran.
func (l *Loop) Do(fn func()) bool {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		fn()
	}) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-l.done:
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}
}

// Async runs work on the worker pool and posts then back onto the loop.
// work receives the loop context, which is cancelled on Close. If the loop
// has closed by the time work returns, then is dropped.
// Async must be called from the loop goroutine.
func Async[T any](l *Loop, work func(ctx context.Context) (T, error), then func(T, error)) {
	err := l.pool.Submit(func() {
		v, err := work(l.ctx)
		l.Post(func() { then(v, err) })
	})
	if err != nil {
		var zero T
		// the pool only refuses work once released
		l.Post(func() { then(zero, fmt.Errorf("submit async work: %w", err)) })
	}
}

// Close stops the loop. Queued tasks are discarded, async work is cancelled
// and pending continuations are dropped. Close is safe to call from any
// goroutine, including the loop itself, and more than once.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.queue = nil
	l.mu.Unlock()

	l.cancel()
	l.pool.Release()
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.wake:
		case <-l.ctx.Done():
			return
		}
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			l.exec(fn)
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			l.log.Error("loop task panic", "panic", fmt.Sprint(p))
		}
	}()
	fn()
}

// Timer is a loop timer. Its callback runs on the loop.
// Stop and the callback are both loop-confined, so a stopped timer never
// runs its callback even if the underlying clock already fired.
type Timer struct {
	timer   clockwork.Timer
	stopped bool
}

// AfterFunc schedules fn to run on the loop after d.
// It must be called from the loop goroutine.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	t.timer = l.clock.AfterFunc(d, func() {
		l.Post(func() {
			if t.stopped {
				return
			}
			t.stopped = true
			fn()
		})
	})
	return t
}

// Stop cancels the timer. It reports whether the callback was still pending.
// A nil timer is valid and reports false.
func (t *Timer) Stop() bool {
	if t == nil || t.stopped {
		return false
	}
	t.stopped = true
	t.timer.Stop()
	return true
}

// Pending reports whether the callback has neither run nor been stopped.
func (t *Timer) Pending() bool {
	return t != nil && !t.stopped
}

// Debouncer delays an action until no trigger arrived for a quiet period.
// It is loop-confined.
type Debouncer struct {
	loop  *Loop
	delay time.Duration
	timer *Timer
}

// NewDebouncer returns a debouncer with the given quiet period.
func NewDebouncer(l *Loop, delay time.Duration) *Debouncer {
	return &Debouncer{loop: l, delay: delay}
}

// Trigger restarts the quiet period; fn runs when it elapses.
// Only the fn of the latest trigger ever runs.
func (d *Debouncer) Trigger(fn func()) {
	d.timer.Stop()
	d.timer = d.loop.AfterFunc(d.delay, fn)
}

// Cancel drops the pending action, if any.
func (d *Debouncer) Cancel() {
	d.timer.Stop()
	d.timer = nil
}

// Pending reports whether an action is waiting for the quiet period.
func (d *Debouncer) Pending() bool {
	return d.timer.Pending()
}
