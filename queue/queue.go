// Package queue dispatches recognition tasks with bounded concurrency. The
// Manager is a single-owner actor: one goroutine owns the pending FIFO and
// the active set, and submit/cancel/status/subscribe arrive as messages, so
// the queue state needs no lock and the single-writer invariant is explicit.
//
// Cancellation is best-effort: only tasks still in the pending queue can be
// cancelled. A dispatched task always runs to completion or to its own
// timeout; in-flight requests cannot be aborted once handed to the engine.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wudi/scankit/observability"
	"github.com/wudi/scankit/ocr"
)

// Defaults used when no Option overrides them. MaxWorkers bounds concurrent
// requests, not CPU threads; keep it low on memory-constrained platforms.
const (
	DefaultMaxWorkers   = 3
	DefaultTimeout      = 30 * time.Second
	DefaultRedrainDelay = 50 * time.Millisecond
)

// Result is the single outcome published for a submitted task. Err is set
// and Text empty when recognition failed; failures are never retried.
type Result struct {
	TaskID string
	Text   string
	Err    error
}

// ErrorKind classifies Err, empty for successful results.
func (r Result) ErrorKind() ocr.ErrorKind { return ocr.Kind(r.Err) }

// Status is a point-in-time snapshot of queue depth.
type Status struct {
	Pending int
	Active  int
}

type task struct {
	id    string
	input ocr.Input
}

type cancelReq struct {
	id    string
	reply chan bool
}

type subReq struct {
	fn    func(Result)
	reply chan int
}

// Manager runs recognition tasks against an ocr.Engine, at most MaxWorkers
// at a time, publishing exactly one Result per task to every subscriber.
type Manager struct {
	engine       ocr.Engine
	maxWorkers   int
	timeout      time.Duration
	redrainDelay time.Duration
	log          observability.Logger

	submitCh chan task
	cancelCh chan cancelReq
	subCh    chan subReq
	unsubCh  chan int
	statusCh chan chan Status
	doneCh   chan Result
	drainCh  chan struct{}
	closeCh  chan struct{}
	stopped  chan struct{}

	closeOnce sync.Once
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxWorkers bounds the number of concurrently dispatched tasks.
func WithMaxWorkers(n int) Option {
	return func(m *Manager) { m.maxWorkers = n }
}

// WithTimeout bounds each dispatched request independently.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// WithRedrainDelay sets the pause before the queue refills workers after a
// completion.
func WithRedrainDelay(d time.Duration) Option {
	return func(m *Manager) { m.redrainDelay = d }
}

// WithLogger sets the manager logger.
func WithLogger(log observability.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// New constructs a Manager and starts its actor goroutine. The engine is the
// manager's only external dependency; construct one Manager per composition
// root (or per test) rather than sharing a process-wide instance.
func New(engine ocr.Engine, opts ...Option) *Manager {
	if engine == nil {
		panic("queue: nil engine")
	}
	m := &Manager{
		engine:       engine,
		maxWorkers:   DefaultMaxWorkers,
		timeout:      DefaultTimeout,
		redrainDelay: DefaultRedrainDelay,
		log:          observability.NopLogger{},
		submitCh:     make(chan task),
		cancelCh:     make(chan cancelReq),
		subCh:        make(chan subReq),
		unsubCh:      make(chan int),
		statusCh:     make(chan chan Status),
		doneCh:       make(chan Result),
		drainCh:      make(chan struct{}, 1),
		closeCh:      make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.maxWorkers < 1 {
		m.maxWorkers = 1
	}
	if m.timeout <= 0 {
		m.timeout = DefaultTimeout
	}
	go m.run()
	return m
}

// Submit enqueues a recognition task and returns its id immediately. When
// the input carries no ID, a fresh one is assigned. Submission order is
// dispatch order (FIFO), but results are published in completion order.
func (m *Manager) Submit(in ocr.Input) string {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	in.Report("queued")
	select {
	case m.submitCh <- task{id: in.ID, input: in}:
	case <-m.stopped:
	}
	return in.ID
}

// Cancel removes the task from the pending queue, reporting whether it was
// found there. Cancelling an active task has no effect; it will still
// publish its result.
func (m *Manager) Cancel(taskID string) bool {
	req := cancelReq{id: taskID, reply: make(chan bool, 1)}
	select {
	case m.cancelCh <- req:
		return <-req.reply
	case <-m.stopped:
		return false
	}
}

// Subscribe registers fn to be invoked once per completed task. The returned
// function unsubscribes; it is safe to call more than once. Callbacks run
// off the actor goroutine and may themselves call back into the Manager.
func (m *Manager) Subscribe(fn func(Result)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	req := subReq{fn: fn, reply: make(chan int, 1)}
	select {
	case m.subCh <- req:
	case <-m.stopped:
		return func() {}
	}
	id := <-req.reply
	var once sync.Once
	return func() {
		once.Do(func() {
			select {
			case m.unsubCh <- id:
			case <-m.stopped:
			}
		})
	}
}

// Status reports current pending and active counts.
func (m *Manager) Status() Status {
	reply := make(chan Status, 1)
	select {
	case m.statusCh <- reply:
		return <-reply
	case <-m.stopped:
		return Status{}
	}
}

// Close drops all pending tasks and stops the actor once in-flight tasks
// have completed and published. Close blocks until shutdown is finished.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.closeCh) })
	<-m.stopped
}

func (m *Manager) run() {
	defer close(m.stopped)

	var pending []task
	active := make(map[string]struct{})
	subs := make(map[int]func(Result))
	nextSub := 1
	closing := false
	drainScheduled := false
	closeReq := m.closeCh

	// drain fills the active set up to maxWorkers in FIFO order. It runs on
	// the actor goroutine only, so it is single-flight by construction.
	drain := func() {
		for !closing && len(active) < m.maxWorkers && len(pending) > 0 {
			t := pending[0]
			pending = pending[1:]
			active[t.id] = struct{}{}
			m.log.Debug("task active",
				observability.String("task", t.id),
				observability.Int("active", len(active)),
				observability.Int("pending", len(pending)))
			go m.dispatch(t)
		}
	}

	scheduleDrain := func() {
		if drainScheduled || closing {
			return
		}
		drainScheduled = true
		time.AfterFunc(m.redrainDelay, func() {
			select {
			case m.drainCh <- struct{}{}:
			case <-m.stopped:
			}
		})
	}

	for {
		if closing && len(active) == 0 {
			return
		}
		select {
		case t := <-m.submitCh:
			if closing {
				continue
			}
			pending = append(pending, t)
			drain()

		case req := <-m.cancelCh:
			removed := false
			for i, t := range pending {
				if t.id == req.id {
					pending = append(pending[:i], pending[i+1:]...)
					removed = true
					m.log.Debug("task cancelled", observability.String("task", t.id))
					break
				}
			}
			req.reply <- removed

		case req := <-m.subCh:
			id := nextSub
			nextSub++
			subs[id] = req.fn
			req.reply <- id

		case id := <-m.unsubCh:
			delete(subs, id)

		case reply := <-m.statusCh:
			reply <- Status{Pending: len(pending), Active: len(active)}

		case r := <-m.doneCh:
			delete(active, r.TaskID)
			if r.Err != nil {
				m.log.Warn("task failed",
					observability.String("task", r.TaskID),
					observability.String("kind", string(r.ErrorKind())),
					observability.Error("err", r.Err))
			} else {
				m.log.Debug("task completed", observability.String("task", r.TaskID))
			}
			if len(subs) > 0 {
				fns := make([]func(Result), 0, len(subs))
				for _, fn := range subs {
					fns = append(fns, fn)
				}
				// Publication happens off the actor goroutine so slow
				// subscribers cannot stall the queue.
				go func(r Result) {
					for _, fn := range fns {
						fn(r)
					}
				}(r)
			}
			if len(pending) > 0 {
				scheduleDrain()
			}

		case <-m.drainCh:
			drainScheduled = false
			drain()

		case <-closeReq:
			closeReq = nil
			closing = true
			if n := len(pending); n > 0 {
				m.log.Info("queue closing, dropping pending tasks",
					observability.Int("dropped", n))
			}
			pending = nil
		}
	}
}

// dispatch runs one task with its own timeout and reports the outcome back
// to the actor. One task's failure never affects its batch siblings.
func (m *Manager) dispatch(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	t.input.Report("recognizing")
	res, err := m.engine.Recognize(ctx, t.input)

	r := Result{TaskID: t.id}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			var te *ocr.TimeoutError
			if !errors.As(err, &te) {
				err = &ocr.TimeoutError{Timeout: m.timeout, Err: err}
			}
		}
		r.Err = err
		t.input.Report("recognition failed")
	} else {
		r.Text = res.Text
		t.input.Report("completed")
	}

	select {
	case m.doneCh <- r:
	case <-m.stopped:
	}
}
