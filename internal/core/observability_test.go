package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"placekit/internal/remote"
)

type metricsCall struct {
	op      string
	success bool
}

type captureMetrics struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	c.calls = append(c.calls, metricsCall{op: op, success: success})
	c.mu.Unlock()
}

func (c *captureMetrics) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call == (metricsCall{op: op, success: success}) {
			return true
		}
	}
	return false
}

func TestStoreObservability(t *testing.T) {
	ctx := context.Background()
	metrics := &captureMetrics{}
	tracer := NewJSONTracer(nil)
	s := newTestStore(t, newLocal(), WithMetricsRecorder(metrics), WithTracer(tracer))
	a := mustAdd(t, s, object("A", 5))
	_, _ = s.Add(ctx, a)
	r := remote.NewMemory()
	r.SetUnavailable(errOffline)
	if err := s.EnableRemote(ctx, r); err != nil {
		t.Fatalf("enable: %v", err)
	}
	flush(t, s)

	for _, want := range []metricsCall{{"add", true}, {"add", false}, {"enable_remote", true}, {"remote_pull", false}} {
		if !metrics.has(want.op, want.success) {
			t.Fatalf("missing metrics call %+v in %+v", want, metrics.calls)
		}
	}
	var sawFailedPull bool
	for _, e := range tracer.Entries() {
		if e.Operation == "remote_pull" && e.Status == "error" && strings.Contains(e.Error, "offline") {
			sawFailedPull = true
		}
	}
	if !sawFailedPull {
		t.Fatalf("expected failed pull span, got %+v", tracer.Entries())
	}
}

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	if !strings.HasPrefix(rec.Name(), "placekit_store_metrics_") {
		t.Fatalf("unexpected name %s", rec.Name())
	}
	rec.Observe(context.Background(), "add", true, 2*time.Millisecond)
	rec.Observe(context.Background(), "add", false, time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Second)
	snap := rec.Snapshot()
	if snap.Results["add"]["success"] != 1 || snap.Results["add"]["error"] != 1 || snap.DurationsMS["add"] != 3 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(snap.Results) != 1 {
		t.Fatalf("empty operation must be ignored")
	}
	v := expvar.Get(rec.Name())
	if v == nil || !strings.Contains(v.String(), "durations_ms_total") {
		t.Fatalf("expected published expvar, got %v", v)
	}
}

func TestJSONTracerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	tr := NewJSONTracer(&buf)
	_, span := tr.Start(context.Background(), "update")
	span.End(errors.New("boom"))
	_, span = tr.Start(context.Background(), "add")
	span.End(nil)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	var first JSONTraceEntry
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Operation != "update" || first.Status != "error" || first.Error != "boom" {
		t.Fatalf("unexpected entry %+v", first)
	}
	if entries := tr.Entries(); len(entries) != 2 || entries[1].Status != "success" {
		t.Fatalf("unexpected retained entries %+v", entries)
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rec.Observe(context.Background(), "remote_push", true, time.Millisecond)
	rec.Observe(context.Background(), "remote_push", false, time.Millisecond)
	rec.Observe(context.Background(), "remote_push", false, time.Millisecond)
	if got := testutil.ToFloat64(rec.results.WithLabelValues("remote_push", "error")); got != 2 {
		t.Fatalf("expected 2 errors, got %v", got)
	}
	if n := testutil.CollectAndCount(rec.durations); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestSyncStateGaugeFollowsSubscribe(t *testing.T) {
	reg := prometheus.NewRegistry()
	g, err := NewSyncStateGauge(reg)
	if err != nil {
		t.Fatalf("new gauge: %v", err)
	}
	if testutil.ToFloat64(g.gauge.WithLabelValues("idle")) != 1 {
		t.Fatalf("gauge should start idle")
	}
	s := newTestStore(t, nil)
	defer s.Subscribe(g.Set)()
	r := remote.NewMemory()
	r.SetUnavailable(errOffline)
	if err := s.EnableRemote(context.Background(), r); err != nil {
		t.Fatalf("enable: %v", err)
	}
	flush(t, s)
	if testutil.ToFloat64(g.gauge.WithLabelValues("failed")) != 1 || testutil.ToFloat64(g.gauge.WithLabelValues("idle")) != 0 {
		t.Fatalf("gauge should read failed")
	}
}

func TestMultiMetricsRecorderFansOut(t *testing.T) {
	a, b := &captureMetrics{}, &captureMetrics{}
	multi := MultiMetricsRecorder{a, nil, b}
	multi.Observe(context.Background(), "remove", false, time.Millisecond)
	if !a.has("remove", false) || !b.has("remove", false) {
		t.Fatalf("expected both recorders to observe, got %+v %+v", a.calls, b.calls)
	}
}
