package dispatch

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"changetrack/pkg/track"
)

// MutateFunc is synchronous mutation logic. view is the tracking view of the
// state passed to Mutate. Calls into the dispatcher made with ctx are nested.
//
// Nesting is carried only by ctx. A call made from mutation logic with any
// other context, such as context.Background(), is not nested: it waits for the
// lane its caller holds and deadlocks.
type MutateFunc func(ctx context.Context, view track.View) error

// Dispatcher runs mutation logic through the middleware chain on a single
// mutation lane.
type Dispatcher struct {
	sess       *track.Session
	middleware []Middleware
	lane       chan struct{}

	logger    Logger
	clock     Clock
	metrics   MetricsRecorder
	tracer    Tracer
	scheduler Scheduler
	maxDepth  int

	mu        sync.Mutex
	executing map[*Operation]struct{}
	seq       atomic.Uint64
}

// New returns a dispatcher configured by opts.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		lane:      make(chan struct{}, 1),
		logger:    noopLogger{},
		clock:     ClockFunc(time.Now),
		metrics:   noopMetricsRecorder{},
		tracer:    noopTracer{},
		scheduler: ImmediateScheduler{},
		executing: make(map[*Operation]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.sess == nil {
		d.sess = track.NewSession(nil)
	}
	return d
}

// Session returns the tracking session mutations record into.
func (d *Dispatcher) Session() *track.Session { return d.sess }

// Use appends middleware. It must not be called while mutations run.
func (d *Dispatcher) Use(mw ...Middleware) {
	WithMiddleware(mw...)(d)
}

type frameKey struct{}

// frame marks one invocation on the call stack. active is false while the
// invocation is suspended; calls made from a suspended invocation are not
// nested. parent links to the frame of the enclosing invocation, which may
// belong to another dispatcher. detached is set once an async routine first
// suspends: from then on its caller no longer waits on it.
type frame struct {
	d        *Dispatcher
	depth    int
	active   atomic.Bool
	detached atomic.Bool
	parent   *frame
}

func frameOf(ctx context.Context) *frame {
	f, _ := ctx.Value(frameKey{}).(*frame)
	return f
}

func withFrame(ctx context.Context, f *frame) context.Context {
	f.parent = frameOf(ctx)
	return context.WithValue(ctx, frameKey{}, f)
}

// CallstackDepth returns the depth a mutation on d started with ctx would
// observe. Only invocations of d count.
func (d *Dispatcher) CallstackDepth(ctx context.Context) int {
	depth, _ := d.callDepth(ctx)
	return depth
}

// callDepth walks the synchronous call stack carried by ctx. The call nests
// under the innermost active invocation of d; a suspended frame on the way
// ends the stack, since nothing above it holds a lane for this goroutine.
func (d *Dispatcher) callDepth(ctx context.Context) (depth int, nested bool) {
	for f := frameOf(ctx); f != nil; f = f.parent {
		if !f.active.Load() {
			return 0, false
		}
		if f.d == d {
			return f.depth + 1, true
		}
		if f.detached.Load() {
			return 0, false
		}
	}
	return 0, false
}

func (d *Dispatcher) checkDepth(depth int) error {
	if d.maxDepth > 0 && depth > d.maxDepth {
		return fmt.Errorf("depth %d exceeds %d: %w", depth, d.maxDepth, ErrCallstackTooDeep)
	}
	return nil
}

func (d *Dispatcher) acquire(ctx context.Context) error {
	select {
	case d.lane <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) release() { <-d.lane }

func (d *Dispatcher) chain() []Middleware {
	return slices.Clone(d.middleware)
}

// Mutate runs fn to completion inside one recording scope and one middleware
// pass. Errors from fn are returned unchanged; changes made before the error
// are still committed and delivered to the middleware.
func (d *Dispatcher) Mutate(ctx context.Context, fn MutateFunc, st any) (err error) {
	depth, nested := d.callDepth(ctx)
	if err := d.checkDepth(depth); err != nil {
		return err
	}
	view, err := d.sess.EnsureProxy(st)
	if err != nil {
		return fmt.Errorf("mutate: %w", err)
	}
	if !nested {
		if err := d.acquire(ctx); err != nil {
			return err
		}
		defer d.release()
	}

	ctx, span := d.tracer.Start(ctx, "mutate")
	start := d.clock.Now()
	defer func() {
		d.metrics.Observe(ctx, "mutate", err == nil, d.clock.Now().Sub(start))
		span.End(err)
	}()

	f := &frame{d: d, depth: depth}
	fctx := withFrame(ctx, f)
	dc := &Context{CallstackDepth: depth, Pass: 1}
	mctx, endPass := d.passContext(ctx, depth)
	defer endPass()
	ran := runChain(mctx, d.chain(), dc, func() {
		sc := d.sess.Begin()
		defer func() {
			sc.End()
			dc.Deltas = []track.Batch{sc.Commit()}
		}()
		f.active.Store(true)
		defer f.active.Store(false)
		err = fn(fctx, view)
	})
	if !ran {
		d.logger.Debug("mutation short-circuited by middleware", "depth", depth)
	}
	return err
}

// ExecutingAsyncOperations returns the operations that have suspended at
// least once and not yet finished, in start order.
func (d *Dispatcher) ExecutingAsyncOperations() []*Operation {
	d.mu.Lock()
	ops := make([]*Operation, 0, len(d.executing))
	for op := range d.executing {
		ops = append(ops, op)
	}
	d.mu.Unlock()
	slices.SortFunc(ops, func(a, b *Operation) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	return ops
}

// CancelAllAsyncOperations requests cancellation of every executing operation
// and returns a future that resolves once all of them have been torn down or
// have finished. Waiting on it while holding the lane (from inside mutation
// logic) deadlocks.
func (d *Dispatcher) CancelAllAsyncOperations() *Future {
	ops := d.ExecutingAsyncOperations()
	start := d.clock.Now()
	d.logger.Info("cancelling async operations", "count", len(ops))
	for _, op := range ops {
		op.Cancel()
	}
	all := newFuture()
	go func() {
		// The group is a waiter only: an op's own outcome stays on its future.
		var g errgroup.Group
		for _, op := range ops {
			g.Go(func() error {
				<-op.Done()
				return nil
			})
		}
		_ = g.Wait()
		d.metrics.Observe(context.Background(), "cancel_all", true, d.clock.Now().Sub(start))
		all.resolve(nil)
	}()
	return all
}

func (d *Dispatcher) addExecuting(op *Operation) {
	d.mu.Lock()
	d.executing[op] = struct{}{}
	d.mu.Unlock()
}

func (d *Dispatcher) removeExecuting(op *Operation) {
	d.mu.Lock()
	delete(d.executing, op)
	d.mu.Unlock()
}
