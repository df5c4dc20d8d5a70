package dispatch

import (
	"context"

	"changetrack/pkg/track"
)

// Context describes one middleware pass.
type Context struct {
	// CallstackDepth is the number of mutations active on the call stack when
	// this one started: 0 for a top-level call.
	CallstackDepth int
	// Deltas holds the batch committed by the pass. It is filled in by the
	// time next returns and stays empty when next is never called.
	Deltas []track.Batch
	// Operation is the asynchronous operation the pass belongs to; nil for
	// Mutate.
	Operation *Operation
	// Pass numbers the passes of one invocation from 1.
	Pass int
	// Cancelled marks the final pass of a torn-down operation.
	Cancelled bool
}

// Middleware wraps one pass. Calling next runs the mutation segment and
// commits it; extra calls are ignored. A middleware that does not call next
// short-circuits the invocation: the segment does not run.
type Middleware func(ctx context.Context, dc *Context, next func())

// runChain runs chain around terminal and reports whether terminal ran.
func runChain(ctx context.Context, chain []Middleware, dc *Context, terminal func()) bool {
	ran := false
	var call func(i int)
	call = func(i int) {
		if i == len(chain) {
			ran = true
			terminal()
			return
		}
		called := false
		chain[i](ctx, dc, func() {
			if called {
				return
			}
			called = true
			call(i + 1)
		})
	}
	call(0)
	return ran
}

// passContext marks ctx so that dispatcher calls made by middleware nest under
// the pass. The returned func ends the mark.
func (d *Dispatcher) passContext(ctx context.Context, depth int) (context.Context, func()) {
	f := &frame{d: d, depth: depth}
	f.active.Store(true)
	return withFrame(ctx, f), func() { f.active.Store(false) }
}
