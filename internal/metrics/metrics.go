package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmcdole/marquee/internal/rotation"
)

// Metrics holds Prometheus counters and gauges for the slide rotation.
// It listens on the rotation event bus.
type Metrics struct {
	registry         *prometheus.Registry
	rebuildsTotal    *prometheus.CounterVec
	rebuildFailures  prometheus.Counter
	selectionsTotal  *prometheus.CounterVec
	selectedItems    prometheus.Gauge
	slideAdvances    prometheus.Counter
	cycleExpirations prometheus.Counter
	pausesTotal      *prometheus.CounterVec
	plannedSlides    prometheus.Gauge
	createdSlides    prometheus.Gauge
	requestsTotal    prometheus.Counter
	errorsTotal      prometheus.Counter
}

// New creates and registers the rotation metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	rebuildsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_rebuilds_total",
		Help: "Total number of rotation rebuilds started, by reason",
	}, []string{"reason"})
	rebuildFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "marquee_rebuild_failures_total",
		Help: "Total number of rebuilds that ended without a rotation",
	})
	selectionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_selections_total",
		Help: "Total number of slide selections, by source",
	}, []string{"source"})
	selectedItems := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "marquee_selected_items",
		Help: "Number of items returned by the last selection",
	})
	slideAdvances := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "marquee_slide_advances_total",
		Help: "Total number of slides entered",
	})
	cycleExpirations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "marquee_cycle_expirations_total",
		Help: "Total number of cycle deadlines passed",
	})
	pausesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_pauses_total",
		Help: "Total number of pauses, by source",
	}, []string{"source"})
	plannedSlides := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "marquee_planned_slides",
		Help: "Planned slide count of the current rotation",
	})
	createdSlides := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "marquee_created_slides",
		Help: "Slides created for the current rotation",
	})
	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "marquee_http_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "marquee_http_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		rebuildsTotal,
		rebuildFailures,
		selectionsTotal,
		selectedItems,
		slideAdvances,
		cycleExpirations,
		pausesTotal,
		plannedSlides,
		createdSlides,
		requestsTotal,
		errorsTotal,
	)

	return &Metrics{
		registry:         registry,
		rebuildsTotal:    rebuildsTotal,
		rebuildFailures:  rebuildFailures,
		selectionsTotal:  selectionsTotal,
		selectedItems:    selectedItems,
		slideAdvances:    slideAdvances,
		cycleExpirations: cycleExpirations,
		pausesTotal:      pausesTotal,
		plannedSlides:    plannedSlides,
		createdSlides:    createdSlides,
		requestsTotal:    requestsTotal,
		errorsTotal:      errorsTotal,
	}
}

// OnEvent updates the metrics from a rotation event
func (m *Metrics) OnEvent(e rotation.Event) {
	switch ev := e.(type) {
	case rotation.EventSelectionDone:
		m.selectionsTotal.WithLabelValues(ev.Source).Inc()
		m.selectedItems.Set(float64(ev.Count))
	case rotation.EventSlideCreated:
		m.createdSlides.Set(float64(ev.Created))
		m.plannedSlides.Set(float64(ev.Planned))
	case rotation.EventSlideEntered:
		m.slideAdvances.Inc()
	case rotation.EventCycleExpired:
		m.cycleExpirations.Inc()
	case rotation.EventPaused:
		m.pausesTotal.WithLabelValues(string(ev.Source)).Inc()
	case rotation.EventRebuildStarted:
		m.rebuildsTotal.WithLabelValues(ev.Reason).Inc()
	case rotation.EventRebuildFinished:
		if ev.Err != nil || ev.Slides == 0 {
			m.rebuildFailures.Inc()
			m.plannedSlides.Set(0)
			m.createdSlides.Set(0)
		}
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// SetSlides sets the slide gauges.
func (m *Metrics) SetSlides(planned, created int) {
	m.plannedSlides.Set(float64(planned))
	m.createdSlides.Set(float64(created))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
