package observer

import (
	"context"
	"sync"
	"testing"
	"time"

	"go-design-analyzer/pkg/models"
)

// blockingObserver waits until released, proving Publish never blocks.
type blockingObserver struct {
	release chan struct{}
	done    chan struct{}
}

func (o *blockingObserver) OnProgress(ctx context.Context, progress models.PipelineProgress) {
	<-o.release
	close(o.done)
}

func (o *blockingObserver) GetObserverName() string { return "blocking_observer" }

// panickyObserver always panics.
type panickyObserver struct{}

func (panickyObserver) OnProgress(ctx context.Context, progress models.PipelineProgress) {
	panic("observer bug")
}

func (panickyObserver) GetObserverName() string { return "panicky_observer" }

// recordingObserver collects delivered events.
type recordingObserver struct {
	mu     sync.Mutex
	events []models.PipelineProgress
}

func (o *recordingObserver) OnProgress(ctx context.Context, progress models.PipelineProgress) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, progress)
}

func (o *recordingObserver) GetObserverName() string { return "recording_observer" }

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

func progressEvent(runID string, percent float64, budgetUsed int) models.PipelineProgress {
	return models.PipelineProgress{
		RunID:      runID,
		Stage:      "synthesis",
		Percent:    percent,
		BudgetUsed: budgetUsed,
	}
}

func TestPublisher_NeverBlocksCaller(t *testing.T) {
	blocking := &blockingObserver{
		release: make(chan struct{}),
		done:    make(chan struct{}),
	}
	publisher := NewPublisher()
	publisher.Subscribe(blocking)

	start := time.Now()
	publisher.Publish(context.Background(), progressEvent("run-1", 50, 0))
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("Publish blocked for %v", elapsed)
	}

	close(blocking.release)
	select {
	case <-blocking.done:
	case <-time.After(time.Second):
		t.Fatal("observer never received the event")
	}
}

func TestPublisher_PanickingObserverIsIsolated(t *testing.T) {
	recording := &recordingObserver{}
	publisher := NewPublisher()
	publisher.Subscribe(panickyObserver{})
	publisher.Subscribe(recording)

	publisher.Publish(context.Background(), progressEvent("run-1", 50, 0))

	deadline := time.After(time.Second)
	for recording.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("healthy observer never received the event")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPublisher_Unsubscribe(t *testing.T) {
	recording := &recordingObserver{}
	publisher := NewPublisher()
	publisher.Subscribe(recording)
	publisher.Unsubscribe(recording)

	publisher.Publish(context.Background(), progressEvent("run-1", 50, 0))
	time.Sleep(50 * time.Millisecond)

	if recording.count() != 0 {
		t.Error("unsubscribed observer must not receive events")
	}
}

func TestMetricsObserver_Aggregation(t *testing.T) {
	metrics := NewMetricsObserver()
	ctx := context.Background()

	metrics.OnProgress(ctx, progressEvent("run-1", 20, 400))
	metrics.OnProgress(ctx, progressEvent("run-1", 100, 5400))
	metrics.OnProgress(ctx, progressEvent("run-2", 55, 2200))

	got := metrics.GetMetrics()
	if got["total_events"] != int64(3) {
		t.Errorf("expected 3 total events, got %v", got["total_events"])
	}
	if got["runs_observed"] != int64(2) {
		t.Errorf("expected 2 runs observed, got %v", got["runs_observed"])
	}
	if got["completed_runs"] != int64(1) {
		t.Errorf("expected 1 completed run, got %v", got["completed_runs"])
	}
	if got["total_budget_used"] != int64(5400) {
		t.Errorf("budget is counted once at completion, got %v", got["total_budget_used"])
	}
}

func TestMetricsObserver_ConcurrentDelivery(t *testing.T) {
	metrics := NewMetricsObserver()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics.OnProgress(ctx, progressEvent("run-1", 50, 0))
		}()
	}
	wg.Wait()

	if got := metrics.GetMetrics()["total_events"]; got != int64(50) {
		t.Errorf("expected 50 events, got %v", got)
	}
}
