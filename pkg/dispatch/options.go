package dispatch

import (
	"context"
	"time"

	"changetrack/pkg/track"
)

// Logger is the structured logger the dispatcher reports to. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// MetricsRecorder observes the outcome and duration of dispatcher operations:
// "mutate", "mutate_async", "checkpoint" and "cancel_all".
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts a span per dispatcher operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended with the operation's error, nil on success.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMiddleware appends middleware to the chain. Middleware runs in the order
// given; the first one registered is outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(d *Dispatcher) {
		for _, m := range mw {
			if m != nil {
				d.middleware = append(d.middleware, m)
			}
		}
	}
}

// WithLogger sets the logger. A nil logger keeps the no-op default.
func WithLogger(logger Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithClock sets the clock used for durations.
func WithClock(clock Clock) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(d *Dispatcher) {
		if recorder != nil {
			d.metrics = recorder
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) Option {
	return func(d *Dispatcher) {
		if tracer != nil {
			d.tracer = tracer
		}
	}
}

// WithScheduler sets the scheduler that resumes routines paused at a
// checkpoint. The default resumes them immediately.
func WithScheduler(s Scheduler) Option {
	return func(d *Dispatcher) {
		if s != nil {
			d.scheduler = s
		}
	}
}

// WithMaxCallstackDepth bounds reentrancy. Calls deeper than n fail with
// ErrCallstackTooDeep. Zero or less disables the guard.
func WithMaxCallstackDepth(n int) Option {
	return func(d *Dispatcher) {
		d.maxDepth = n
	}
}

// WithSession sets the tracking session. The default is a fresh session.
func WithSession(sess *track.Session) Option {
	return func(d *Dispatcher) {
		if sess != nil {
			d.sess = sess
		}
	}
}
