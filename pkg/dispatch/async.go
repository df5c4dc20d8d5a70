package dispatch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"changetrack/pkg/track"
)

// AsyncFunc is suspendable mutation logic. It may call step.Checkpoint to end
// a segment and step.Wait (or Await) to wait on outside work with the lane
// released. Sub-routines that receive the same step contribute their
// checkpoints to the same operation.
//
// As with MutateFunc, dispatcher calls must be made with ctx (or a context
// derived from it). A call made with an unrelated context while the routine
// holds the lane deadlocks.
type AsyncFunc func(ctx context.Context, step *Step, view track.View) error

// Future is the pending result of an asynchronous call.
type Future struct {
	op   *Operation
	done chan struct{}
	once sync.Once
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func resolvedFuture(err error) *Future {
	f := newFuture()
	f.resolve(err)
	return f
}

func (f *Future) resolve(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Err returns the result, or nil while it is still pending.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the result is available or ctx is done.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Operation returns the operation behind the future; nil when the call failed
// before an operation was created or for futures that combine several.
func (f *Future) Operation() *Operation { return f.op }

// Operation is the handle of one MutateAsync call.
type Operation struct {
	id     uuid.UUID
	seq    uint64
	depth  int
	future *Future

	started   chan struct{}
	startOnce sync.Once

	cancelled  chan struct{}
	cancelOnce sync.Once
	cause      error

	parent    context.Context
	borrowed  atomic.Bool
	stopCtx   context.CancelCauseFunc
	stopWatch func() bool
}

// ID returns the operation's unique id.
func (op *Operation) ID() uuid.UUID { return op.id }

// Depth returns the callstack depth the operation started at.
func (op *Operation) Depth() int { return op.depth }

// Future returns the operation's result.
func (op *Operation) Future() *Future { return op.future }

// Done is closed when the operation has finished or been torn down.
func (op *Operation) Done() <-chan struct{} { return op.future.done }

// Cancel requests cancellation of this operation alone. It returns at once;
// wait on Done for the teardown.
func (op *Operation) Cancel() { op.cancel(nil) }

// Cancelled reports whether cancellation was requested.
func (op *Operation) Cancelled() bool {
	select {
	case <-op.cancelled:
		return true
	default:
		return false
	}
}

func (op *Operation) cancel(cause error) {
	op.cancelOnce.Do(func() {
		op.cause = cause
		close(op.cancelled)
		op.stopCtx(ErrCancelled)
	})
}

// stopped reports whether the operation must be torn down, turning a done
// caller context into a cancellation request.
func (op *Operation) stopped() bool {
	if op.Cancelled() {
		return true
	}
	if op.parent.Err() != nil {
		op.cancel(context.Cause(op.parent))
		return true
	}
	return false
}

func (op *Operation) cancelledError() error {
	return &CancelledError{Operation: op.id, Cause: op.cause}
}

type operationKey struct{}

func withOperation(ctx context.Context, op *Operation) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// OperationFromContext returns the innermost async operation ctx runs under.
// The ctx handed to an AsyncFunc, and contexts derived from it, carry theirs.
func OperationFromContext(ctx context.Context) (*Operation, bool) {
	op, ok := ctx.Value(operationKey{}).(*Operation)
	return op, ok
}

type yieldKind int

const (
	yieldCheckpoint yieldKind = iota
	yieldDone
	yieldTornDown
)

type yield struct {
	kind yieldKind
	err  error
}

// routine is the goroutine side of an operation. Its fields other than the
// channels are only touched by whichever side currently owns the routine;
// ownership passes through resume and yields.
type routine struct {
	d     *Dispatcher
	op    *Operation
	fn    AsyncFunc
	ctx   context.Context
	view  track.View
	frame *frame
	sc    *track.Scope
	step  *Step

	resume chan bool
	yields chan yield
	exited chan struct{}

	holding  bool
	aborting bool
}

func (r *routine) main() {
	returned := false
	defer func() {
		p := recover()
		switch {
		case r.aborting:
			if p != nil {
				r.d.logger.Error("panic during async teardown", "operation", r.op.id, "panic", p)
			}
		case p != nil:
			r.fail(&PanicError{Value: p})
		case !returned:
			r.fail(ErrRoutineExited)
		}
		close(r.exited)
	}()
	if !<-r.resume {
		r.abort()
	}
	r.frame.active.Store(true)
	err := r.fn(r.ctx, r.step, r.view)
	returned = true
	r.frame.active.Store(false)
	r.yields <- yield{kind: yieldDone, err: err}
}

// fail reports an abnormal exit, taking the lane back first when it left it
// inside a wait.
func (r *routine) fail(err error) {
	r.frame.active.Store(false)
	if !r.holding {
		r.d.lane <- struct{}{}
		r.holding = true
	}
	r.yields <- yield{kind: yieldDone, err: err}
}

// abort exits the goroutine without reporting; the driver already knows.
func (r *routine) abort() {
	r.aborting = true
	runtime.Goexit()
}

// tearDown hands the open pass back to the driver and exits. Must hold the lane.
func (r *routine) tearDown() {
	r.aborting = true
	r.frame.active.Store(false)
	r.yields <- yield{kind: yieldTornDown}
	runtime.Goexit()
}

// Step is the suspension handle passed to an AsyncFunc.
type Step struct {
	r *routine
}

// Operation returns the operation the step belongs to.
func (s *Step) Operation() *Operation { return s.r.op }

// Checkpoint commits the changes made since the previous boundary, delivers
// them to a middleware pass and pauses until the scheduler resumes the
// routine. If the operation is cancelled, Checkpoint does not return: the
// routine's goroutine exits and only its deferred calls run.
func (s *Step) Checkpoint() {
	r := s.r
	if r.op.stopped() {
		r.tearDown()
	}
	r.frame.active.Store(false)
	r.frame.detached.Store(true)
	r.yields <- yield{kind: yieldCheckpoint}
	if !<-r.resume {
		r.abort()
	}
	r.frame.active.Store(true)
}

// Wait runs fn with the lane released and recording suspended, then takes the
// lane back. Other mutations may run while fn does. No middleware pass ends
// here. If the operation was cancelled by the time fn returns, Wait does not
// return: the changes of the current segment are delivered to a final pass and
// the routine exits.
func (s *Step) Wait(fn func() error) error {
	r := s.r
	if r.op.stopped() {
		r.tearDown()
	}
	r.sc.Suspend()
	r.frame.active.Store(false)
	r.frame.detached.Store(true)
	r.holding = false
	r.d.releaseLane(r.op)
	r.d.suspended(r.op)

	err := fn()

	r.d.lane <- struct{}{}
	r.holding = true
	if r.op.stopped() {
		r.tearDown()
	}
	r.sc.Resume()
	r.frame.active.Store(true)
	return err
}

// WaitFor waits on f like Wait. The wait ends early when the operation is
// cancelled.
func (s *Step) WaitFor(f *Future) error {
	return s.Wait(func() error { return f.Wait(s.r.ctx) })
}

// Await runs fn through step.Wait and returns its value.
func Await[T any](step *Step, fn func() (T, error)) (T, error) {
	var v T
	err := step.Wait(func() error {
		var err error
		v, err = fn()
		return err
	})
	return v, err
}

// MutateAsync starts fn as an asynchronous operation and returns once it
// first suspends, finishes or fails. Cancelling ctx requests cancellation of
// the operation.
func (d *Dispatcher) MutateAsync(ctx context.Context, fn AsyncFunc, st any) *Future {
	depth, nested := d.callDepth(ctx)
	if err := d.checkDepth(depth); err != nil {
		return resolvedFuture(err)
	}
	view, err := d.sess.EnsureProxy(st)
	if err != nil {
		return resolvedFuture(fmt.Errorf("mutate async: %w", err))
	}

	op := &Operation{
		id:        uuid.New(),
		seq:       d.seq.Add(1),
		depth:     depth,
		future:    newFuture(),
		started:   make(chan struct{}),
		cancelled: make(chan struct{}),
		parent:    ctx,
	}
	op.future.op = op
	rctx, stopCtx := context.WithCancelCause(withOperation(ctx, op))
	op.stopCtx = stopCtx
	op.borrowed.Store(nested)
	op.stopWatch = context.AfterFunc(ctx, func() { op.cancel(context.Cause(ctx)) })

	f := &frame{d: d, depth: depth}
	r := &routine{
		d:       d,
		op:      op,
		fn:      fn,
		ctx:     withFrame(rctx, f),
		view:    view,
		frame:   f,
		resume:  make(chan bool),
		yields:  make(chan yield),
		exited:  make(chan struct{}),
		holding: true,
	}
	r.step = &Step{r: r}

	go d.run(ctx, op, r, d.chain())
	select {
	case <-op.started:
	case <-op.future.done:
	}
	return op.future
}

// run drives op to the end and settles its future.
func (d *Dispatcher) run(ctx context.Context, op *Operation, r *routine, chain []Middleware) {
	ctx, span := d.tracer.Start(withOperation(ctx, op), "mutate_async")
	start := d.clock.Now()
	d.logger.Debug("async operation started", "operation", op.id, "depth", op.depth)

	err := d.drive(ctx, op, r, chain)

	d.removeExecuting(op)
	op.stopWatch()
	op.stopCtx(nil)
	d.metrics.Observe(ctx, "mutate_async", err == nil, d.clock.Now().Sub(start))
	span.End(err)
	if op.Cancelled() {
		d.logger.Warn("async operation torn down", "operation", op.id, "error", err)
	} else {
		d.logger.Debug("async operation finished", "operation", op.id, "error", err)
	}
	op.future.resolve(err)
}

func (d *Dispatcher) drive(ctx context.Context, op *Operation, r *routine, chain []Middleware) error {
	if !op.borrowed.Load() {
		select {
		case d.lane <- struct{}{}:
		case <-op.cancelled:
			return op.cancelledError()
		}
	}
	defer d.releaseLane(op)

	for pass := 1; ; pass++ {
		dc := &Context{CallstackDepth: op.depth, Operation: op, Pass: pass}
		passStart := d.clock.Now()
		var y yield
		mctx, endPass := d.passContext(ctx, op.depth)
		ran := runChain(mctx, chain, dc, func() {
			if pass == 1 {
				r.sc = d.sess.Begin()
				go r.main()
			} else {
				r.sc.Resume()
			}
			r.resume <- true
			y = <-r.yields
			if y.kind == yieldCheckpoint {
				r.sc.Suspend()
			} else {
				<-r.exited
				r.sc.End()
			}
			dc.Cancelled = y.kind == yieldTornDown
			dc.Deltas = []track.Batch{r.sc.Commit()}
		})
		endPass()
		if !ran {
			if pass > 1 {
				r.resume <- false
				<-r.exited
				r.sc.End()
			}
			d.logger.Debug("async operation short-circuited by middleware", "operation", op.id, "pass", pass)
			return nil
		}
		switch y.kind {
		case yieldDone:
			return y.err
		case yieldTornDown:
			return op.cancelledError()
		}
		d.metrics.Observe(ctx, "checkpoint", true, d.clock.Now().Sub(passStart))

		d.releaseLane(op)
		wake := make(chan struct{})
		var once sync.Once
		d.scheduler.Schedule(func() { once.Do(func() { close(wake) }) })
		d.suspended(op)
		select {
		case <-wake:
		case <-op.cancelled:
		}
		d.lane <- struct{}{}
		if op.stopped() {
			r.resume <- false
			<-r.exited
			d.finalPass(ctx, chain, op, r, pass+1)
			return op.cancelledError()
		}
	}
}

// finalPass delivers what a torn-down routine left in its scope.
func (d *Dispatcher) finalPass(ctx context.Context, chain []Middleware, op *Operation, r *routine, pass int) {
	dc := &Context{CallstackDepth: op.depth, Operation: op, Pass: pass, Cancelled: true}
	mctx, endPass := d.passContext(ctx, op.depth)
	defer endPass()
	runChain(mctx, chain, dc, func() {
		r.sc.End()
		dc.Deltas = []track.Batch{r.sc.Commit()}
	})
}

// suspended records the first suspension of op.
func (d *Dispatcher) suspended(op *Operation) {
	op.startOnce.Do(func() {
		d.addExecuting(op)
		close(op.started)
	})
}

// releaseLane gives up op's hold on the lane. A borrowed hold is returned to
// the caller that lent it, not to the lane.
func (d *Dispatcher) releaseLane(op *Operation) {
	if op.borrowed.Swap(false) {
		return
	}
	d.release()
}
