package detect

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	detections *prometheus.CounterVec
	duration   prometheus.Histogram
	inFlight   prometheus.Gauge
	setlist    *prometheus.CounterVec
}

// NewMetrics creates the detection metrics and registers them with reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barricade",
			Name:      "detections_total",
			Help:      "Finished detections by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "barricade",
			Name:      "detection_duration_seconds",
			Help:      "Time from import start to resolution.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "barricade",
			Name:      "detections_in_flight",
			Help:      "Detections currently importing or matching.",
		}),
		setlist: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "barricade",
			Name:      "setlist_resolutions_total",
			Help:      "Resolved titles by effect on the setlist.",
		}, []string{"effect"}),
	}
	if reg != nil {
		reg.MustRegister(m.detections, m.duration, m.inFlight, m.setlist)
	}
	return m
}

func (m *Metrics) started() {
	if m == nil {
		return
	}
	m.inFlight.Inc()
}

func (m *Metrics) finished(label string, started time.Time) {
	if m == nil {
		return
	}
	m.inFlight.Dec()
	m.detections.WithLabelValues(label).Inc()
	m.duration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) resolved(created bool) {
	if m == nil {
		return
	}
	if created {
		m.setlist.WithLabelValues("created").Inc()
	} else {
		m.setlist.WithLabelValues("attached").Inc()
	}
}
