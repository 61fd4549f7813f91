package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"rewardvault/core/events"
)

// EventMetrics counts emitted events by type.
type EventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventOnce     sync.Once
	eventRegistry *EventMetrics
)

// Events returns the lazily-initialised event metrics registry.
func Events() *EventMetrics {
	eventOnce.Do(func() {
		eventRegistry = &EventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardvault",
				Name:      "events_total",
				Help:      "Events emitted by the ledger services segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// EventCounter is an emitter that only counts events.
type EventCounter struct{}

func (EventCounter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	Events().emitted.WithLabelValues(label(evt.EventType())).Inc()
}
