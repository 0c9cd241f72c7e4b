package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type PipelineConfig struct {
	Collector     CollectorConfig
	AlertInterval time.Duration
}

// Pipeline is the composition root of the telemetry core. Producers and
// consumers only meet on the event bus.
type Pipeline struct {
	Bus       *EventBus
	Collector *Collector
	Alerts    *AlertEngine
	Hub       *BroadcastHub
	Cache     *SnapshotCache
	log       *slog.Logger

	mu      sync.Mutex
	started bool
}

func NewPipeline(bus *EventBus, collector *Collector, alerts *AlertEngine, hub *BroadcastHub, cache *SnapshotCache, log *slog.Logger) *Pipeline {
	return &Pipeline{Bus: bus, Collector: collector, Alerts: alerts, Hub: hub, Cache: cache, log: log}
}

// Start subscribes the consumers before any producer runs, so the first
// synchronous collection already reaches the hub and the cache
func (p *Pipeline) Start(ctx context.Context, cfg PipelineConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		p.log.Warn("pipeline already started")
		return
	}
	p.started = true

	p.Bus.Subscribe(p.Hub.HandleEvent, TopicMetrics, TopicAlert)
	if p.Cache != nil {
		p.Bus.Subscribe(p.Cache.HandleEvent, TopicMetrics)
	}

	p.Hub.Start(ctx)
	p.Collector.Start(ctx, cfg.Collector)
	p.Alerts.Start(ctx, cfg.AlertInterval)
	p.log.Info("pipeline started")
}

// Shutdown stops the producers, drains the bus into the hub and closes
// every subscriber connection
func (p *Pipeline) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false

	p.Collector.Stop()
	p.Alerts.Stop()
	p.Bus.Close()
	p.Hub.Shutdown()
	p.log.Info("pipeline stopped")
}
