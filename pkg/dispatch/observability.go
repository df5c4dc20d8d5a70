package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"io"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var expvarSeq uint64

// ExpvarMetricsRecorder publishes per-operation outcome counts and durations
// through expvar. Operations are the dispatcher's own: mutate, mutate_async,
// checkpoint (one per ended segment) and cancel_all.
type ExpvarMetricsRecorder struct {
	name string
	mu   sync.Mutex
	ops  map[string]ExpvarOperationStats
}

// ExpvarOperationStats aggregates one operation name.
type ExpvarOperationStats struct {
	Success int64   `json:"success"`
	Error   int64   `json:"error"`
	TotalMS float64 `json:"total_ms"`
	MaxMS   float64 `json:"max_ms"`
}

// ExpvarMetricsSnapshot is a copy of the recorded metrics.
type ExpvarMetricsSnapshot struct {
	Operations map[string]ExpvarOperationStats `json:"operations"`
	RecordedAt time.Time                       `json:"recorded_at"`
}

// NewExpvarMetricsRecorder publishes a recorder under name, or under a
// generated unique name when name is empty. expvar names are process global;
// publishing the same name twice panics.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		name = fmt.Sprintf("changetrack_dispatch_metrics_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarMetricsRecorder{name: name, ops: make(map[string]ExpvarOperationStats)}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Snapshot returns a copy of the aggregated metrics.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ExpvarMetricsSnapshot{Operations: maps.Clone(r.ops), RecordedAt: time.Now().UTC()}
}

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.ops[operation]
	if success {
		st.Success++
	} else {
		st.Error++
	}
	st.TotalMS += ms
	st.MaxMS = max(st.MaxMS, ms)
	r.ops[operation] = st
}

// PrometheusMetricsRecorder exports dispatcher operations as a counter and a
// duration histogram, both labelled by operation and status.
type PrometheusMetricsRecorder struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder creates the collectors under namespace and
// registers them with reg. Collectors already registered by an earlier
// recorder with the same namespace are reused.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer, namespace string) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "changetrack"
	}
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "operations_total",
		Help:      "Dispatcher operations by operation and status",
	}, []string{"operation", "status"})
	dur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "operation_duration_seconds",
		Help:      "Dispatcher operation duration in seconds",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"operation", "status"})

	var err error
	if ops, err = registerOrReuse(reg, ops); err != nil {
		return nil, fmt.Errorf("register operations counter: %w", err)
	}
	if dur, err = registerOrReuse(reg, dur); err != nil {
		return nil, fmt.Errorf("register duration histogram: %w", err)
	}
	return &PrometheusMetricsRecorder{Operations: ops, Duration: dur}, nil
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := statusLabel(success)
	r.Operations.WithLabelValues(operation, status).Inc()
	r.Duration.WithLabelValues(operation, status).Observe(duration.Seconds())
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// spanStatus separates torn-down operations from failed ones.
func spanStatus(err error) string {
	if errors.Is(err, ErrCancelled) {
		return "cancelled"
	}
	return statusLabel(err == nil)
}

// JSONTraceEntry is one span written by JSONTraceTracer.
type JSONTraceEntry struct {
	Operation string `json:"operation"`
	// OperationID is the async operation the span ran under, if any.
	OperationID string    `json:"operation_id,omitempty"`
	Status      string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTraceTracer writes spans as JSON lines and keeps them for inspection.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
}

// NewJSONTracer returns a tracer writing to w. A nil writer only retains spans.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	var enc *json.Encoder
	if w != nil {
		enc = json.NewEncoder(w)
	}
	return &JSONTraceTracer{enc: enc}
}

// Entries returns a copy of all ended spans.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]JSONTraceEntry(nil), t.entries...)
}

// Start implements Tracer.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	span := &jsonTraceSpan{tracer: t, operation: operation, started: time.Now().UTC()}
	if op, ok := OperationFromContext(ctx); ok {
		span.opID = op.ID().String()
	}
	return ctx, span
}

type jsonTraceSpan struct {
	tracer    *JSONTraceTracer
	operation string
	opID      string
	started   time.Time
}

func (s *jsonTraceSpan) End(err error) {
	ended := time.Now().UTC()
	entry := JSONTraceEntry{
		Operation:   s.operation,
		OperationID: s.opID,
		Status:      spanStatus(err),
		DurationMS:  float64(ended.Sub(s.started)) / float64(time.Millisecond),
		StartedAt:   s.started,
		EndedAt:     ended,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	s.tracer.mu.Lock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
	s.tracer.mu.Unlock()
}
