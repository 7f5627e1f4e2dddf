package core

import (
	"context"
	"time"
)

// Logger is the structured logging surface the store writes to. Key/value
// pairs follow the zap SugaredLogger convention.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NewNoopLogger returns a Logger that discards everything.
func NewNoopLogger() Logger { return noopLogger{} }

// LocalLock serializes access to a local blob shared between processes.
type LocalLock interface {
	Lock(ctx context.Context) error
	Unlock() error
}

// Clock provides the store's notion of now.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// MetricsRecorder observes operation outcomes.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around store and sync operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation's error, if any.
type TraceSpan interface {
	End(err error)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

const (
	defaultSyncTimeout = 30 * time.Second
)

type storeOptions struct {
	clock       Clock
	logger      Logger
	metrics     MetricsRecorder
	tracer      Tracer
	compress    bool
	syncTimeout time.Duration
	recordType  string
	sharedLocal bool
	localLock   LocalLock
}

// Option configures a PlacedObjectStore.
type Option func(*storeOptions)

// WithClock overrides the clock used to stamp timestamps.
func WithClock(c Clock) Option {
	return func(o *storeOptions) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger. Nil keeps the no-op default.
func WithLogger(l Logger) Option {
	return func(o *storeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(o *storeOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(o *storeOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithCompression zstd-compresses the local blob.
func WithCompression(enabled bool) Option {
	return func(o *storeOptions) { o.compress = enabled }
}

// WithSyncTimeout bounds each remote call made by the sync worker.
func WithSyncTimeout(d time.Duration) Option {
	return func(o *storeOptions) {
		if d > 0 {
			o.syncTimeout = d
		}
	}
}

// WithRecordType overrides the remote record type the store syncs under.
func WithRecordType(recordType string) Option {
	return func(o *storeOptions) {
		if recordType != "" {
			o.recordType = recordType
		}
	}
}

// WithSharedLocal marks the local blob as written by other processes too.
// Each remote pull then re-reads the blob before merging so external adds
// and removes are not overwritten by a stale in-memory collection.
func WithSharedLocal(shared bool) Option {
	return func(o *storeOptions) { o.sharedLocal = shared }
}

// WithLocalLock sets the lock a shared-local pull holds while it reads the
// remote, reloads the blob, merges and pushes back.
func WithLocalLock(l LocalLock) Option {
	return func(o *storeOptions) { o.localLock = l }
}
