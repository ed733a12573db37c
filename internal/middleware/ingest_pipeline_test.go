package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"PricePulse/internal/domain/models"
	domrepo "PricePulse/internal/domain/repository"
)

var errDown = errors.New("downstream down")

type procStub struct {
	mu     sync.Mutex
	events []*models.SalesEvent
	err    error
}

func (p *procStub) Process(_ context.Context, e *models.SalesEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *procStub) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *procStub) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type metricsStub struct {
	mu     sync.Mutex
	errors map[string]int
}

func newMetricsStub() *metricsStub { return &metricsStub{errors: map[string]int{}} }

func (m *metricsStub) RecordEventSent(string, string)  {}
func (m *metricsStub) RecordLastPrice(string, float64) {}
func (m *metricsStub) RecordLatency(string, float64)   {}

func (m *metricsStub) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}

func (m *metricsStub) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

var _ domrepo.Metrics = (*metricsStub)(nil)

func ev(id string) *models.SalesEvent {
	return &models.SalesEvent{ProductID: id, Timestamp: time.Now().Unix(), Units: 2, Price: 50}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not reached within deadline")
}

func TestPipelineForwardsValidEvent(t *testing.T) {
	proc := &procStub{}
	p := NewIngestPipeline(proc, newMetricsStub())

	if err := p.Process(context.Background(), ev("p1")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if proc.count() != 1 {
		t.Fatalf("forwarded = %d, want 1", proc.count())
	}
}

func TestPipelineRejectsInvalidEvents(t *testing.T) {
	proc := &procStub{}
	m := newMetricsStub()
	p := NewIngestPipeline(proc, m)

	bad := []*models.SalesEvent{
		nil,
		{ProductID: "", Timestamp: 1, Units: 1, Price: 1},
		{ProductID: "p1", Timestamp: 0, Units: 1, Price: 1},
		{ProductID: "p1", Timestamp: 1, Units: -1, Price: 1},
		{ProductID: "p1", Timestamp: 1, Units: 1, Price: -1},
	}
	for i, e := range bad {
		if err := p.Process(context.Background(), e); err == nil {
			t.Fatalf("case %d: expected a validation error", i)
		}
	}
	if proc.count() != 0 {
		t.Fatalf("invalid events reached downstream: %d", proc.count())
	}
	if m.errorCount("pipeline_validate") != len(bad) {
		t.Fatalf("validate errors = %d, want %d", m.errorCount("pipeline_validate"), len(bad))
	}
}

func TestPipelineThrottlesPerProduct(t *testing.T) {
	proc := &procStub{}
	m := newMetricsStub()
	p := NewIngestPipeline(proc, m, WithMaxRPS(1))

	if err := p.Process(context.Background(), ev("p1")); err != nil {
		t.Fatalf("first event: %v", err)
	}
	// Second event inside the interval is dropped without an error.
	if err := p.Process(context.Background(), ev("p1")); err != nil {
		t.Fatalf("throttled event returned error: %v", err)
	}
	if proc.count() != 1 {
		t.Fatalf("forwarded = %d, want the burst throttled to 1", proc.count())
	}
	if m.errorCount("pipeline_throttle") != 1 {
		t.Fatalf("throttle count = %d, want 1", m.errorCount("pipeline_throttle"))
	}

	// The throttle window is per product.
	if err := p.Process(context.Background(), ev("p2")); err != nil {
		t.Fatalf("other product: %v", err)
	}
	if proc.count() != 2 {
		t.Fatalf("forwarded = %d, want 2", proc.count())
	}
}

func TestPipelineTransformApplied(t *testing.T) {
	proc := &procStub{}
	p := NewIngestPipeline(proc, newMetricsStub(), WithTransform(func(e *models.SalesEvent) *models.SalesEvent {
		e.Units *= 2
		return e
	}))

	if err := p.Process(context.Background(), ev("p1")); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if proc.count() != 1 || proc.events[0].Units != 4 {
		t.Fatalf("transformed units = %+v", proc.events)
	}
}

func TestPipelineTransformMustStayValid(t *testing.T) {
	proc := &procStub{}
	m := newMetricsStub()
	p := NewIngestPipeline(proc, m, WithTransform(func(e *models.SalesEvent) *models.SalesEvent {
		e.ProductID = ""
		return e
	}))

	if err := p.Process(context.Background(), ev("p1")); err == nil {
		t.Fatalf("expected the transformed event to be rejected")
	}
	if m.errorCount("pipeline_transform_invalid") != 1 {
		t.Fatalf("transform errors = %d, want 1", m.errorCount("pipeline_transform_invalid"))
	}
}

func TestPipelineBuffersAndFlushes(t *testing.T) {
	proc := &procStub{}
	proc.setErr(errDown)
	m := newMetricsStub()
	p := NewIngestPipeline(proc, m, WithBufferSize(10))

	if err := p.Process(context.Background(), ev("p1")); err == nil {
		t.Fatalf("expected the downstream error to surface")
	}
	if m.errorCount("pipeline_process") != 1 {
		t.Fatalf("process errors = %d, want 1", m.errorCount("pipeline_process"))
	}

	// Downstream recovers; the background flusher drains the buffer.
	proc.setErr(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	waitFor(t, func() bool { return proc.count() == 1 })
}

func TestPipelineDropsWhenBufferFull(t *testing.T) {
	proc := &procStub{}
	proc.setErr(errDown)
	m := newMetricsStub()
	p := NewIngestPipeline(proc, m, WithBufferSize(1))

	// Distinct products so the throttle does not interfere.
	if err := p.Process(context.Background(), ev("p1")); err == nil {
		t.Fatalf("expected an error for the first event")
	}
	if err := p.Process(context.Background(), ev("p2")); err == nil {
		t.Fatalf("expected an error for the second event")
	}
	if m.errorCount("pipeline_buffer_full") != 1 {
		t.Fatalf("buffer full count = %d, want 1", m.errorCount("pipeline_buffer_full"))
	}
}
