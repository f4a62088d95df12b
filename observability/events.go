package observability

import (
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/market"
)

type marketMetrics struct {
	eventsTotal      *prometheus.CounterVec
	settlementVolume *prometheus.CounterVec
}

var (
	marketMetricsOnce sync.Once
	marketRegistry    *marketMetrics
)

// Market returns the metrics registry tracking marketplace activity.
func Market() *marketMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &marketMetrics{
			eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of marketplace events segmented by type.",
			}, []string{"type"}),
			settlementVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "settlement",
				Name:      "volume_total",
				Help:      "Cumulative settled token volume segmented by settlement path.",
			}, []string{"path"}),
		}
		prometheus.MustRegister(
			marketRegistry.eventsTotal,
			marketRegistry.settlementVolume,
		)
	})
	return marketRegistry
}

// RecordEvent increments the event counter for the supplied event type.
func (m *marketMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.eventsTotal.WithLabelValues(normalized).Inc()
}

// RecordSettlement adds the settled amount for the supplied settlement path.
func (m *marketMetrics) RecordSettlement(path string, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.settlementVolume.WithLabelValues(path).Add(amount)
}

type metricsEmitter struct {
	registry *marketMetrics
}

// NewEmitter returns an event emitter that feeds the Prometheus registry.
// Combine it with other emitters via events.MultiEmitter.
func NewEmitter() events.Emitter {
	return metricsEmitter{registry: Market()}
}

func (e metricsEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	e.registry.RecordEvent(evt.EventType())

	carrier, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	payload := carrier.Event()
	if payload == nil {
		return
	}
	switch payload.Type {
	case market.EventTypeListingPurchased:
		e.registry.RecordSettlement("purchase", attrAmount(payload, "redemptionPrice"))
	case market.EventTypeOfferAccepted:
		e.registry.RecordSettlement("offer", attrAmount(payload, "price"))
	}
}

func attrAmount(evt *types.Event, key string) float64 {
	raw, ok := evt.Attributes[key]
	if !ok {
		return 0
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return amount
}
