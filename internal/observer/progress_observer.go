package observer

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"go-design-analyzer/internal/logger"
	"go-design-analyzer/pkg/models"
)

// Observer consumes pipeline progress events. Delivery is best effort: an
// observer that blocks, fails or panics can never affect the run emitting
// the events.
type Observer interface {
	OnProgress(ctx context.Context, progress models.PipelineProgress)
	GetObserverName() string
}

// LoggingObserver logs progress events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(log *logrus.Logger) Observer {
	return &LoggingObserver{logger: log}
}

// OnProgress handles progress events by logging them
func (o *LoggingObserver) OnProgress(ctx context.Context, progress models.PipelineProgress) {
	entry := o.logger.WithFields(logrus.Fields{
		"run_id":           progress.RunID,
		"stage":            progress.Stage,
		"percent":          progress.Percent,
		"budget_used":      progress.BudgetUsed,
		"budget_remaining": progress.BudgetRemaining,
	})

	if progress.Percent >= 100 {
		entry.Info("Pipeline run completed")
		return
	}
	entry.Debug(progress.Message)
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver aggregates progress events into run counters
type MetricsObserver struct {
	mu              sync.RWMutex
	totalEvents     int64
	completedRuns   int64
	totalBudgetUsed int64
	seenRuns        map[string]bool
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{
		seenRuns: make(map[string]bool),
	}
}

// OnProgress handles progress events by collecting metrics
func (o *MetricsObserver) OnProgress(ctx context.Context, progress models.PipelineProgress) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.totalEvents++
	o.seenRuns[progress.RunID] = true
	if progress.Percent >= 100 {
		o.completedRuns++
		o.totalBudgetUsed += int64(progress.BudgetUsed)
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return map[string]interface{}{
		"total_events":      o.totalEvents,
		"runs_observed":     int64(len(o.seenRuns)),
		"completed_runs":    o.completedRuns,
		"total_budget_used": o.totalBudgetUsed,
	}
}

// Publisher fans progress events out to subscribed observers. It satisfies
// the pipeline's progress sink contract.
type Publisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewPublisher creates a new progress publisher
func NewPublisher() *Publisher {
	return &Publisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *Publisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *Publisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// Publish delivers one event to all observers. Each observer runs on its own
// goroutine so a slow or panicking subscriber never blocks the pipeline.
func (p *Publisher) Publish(ctx context.Context, progress models.PipelineProgress) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		go func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					logger.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling progress event")
				}
			}()
			obs.OnProgress(ctx, progress)
		}(observer)
	}
}
