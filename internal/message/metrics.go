package message

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the messaging subsystem.
type Metrics struct {
	SubmitsTotal       *prometheus.CounterVec
	TransitionsTotal   *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	NotifyDuration     *prometheus.HistogramVec
	SettingsUpdates    prometheus.Counter
}

// NewMetrics registers and returns message metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SubmitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confide_submits_total",
			Help: "Total message submissions by result and category.",
		}, []string{"result", "category"}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confide_transitions_total",
			Help: "Total status transition attempts by target status and result.",
		}, []string{"status", "result"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "confide_notifications_total",
			Help: "Total notification hand-offs by channel and outcome.",
		}, []string{"channel", "outcome"}),
		NotifyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "confide_notify_duration_seconds",
			Help:    "Duration of notification hand-offs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
		}, []string{"channel"}),
		SettingsUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "confide_settings_updates_total",
			Help: "Total successful settings updates.",
		}),
	}

	reg.MustRegister(
		m.SubmitsTotal,
		m.TransitionsTotal,
		m.NotificationsTotal,
		m.NotifyDuration,
		m.SettingsUpdates,
	)

	return m
}

func (m *Metrics) submit(result string, c Category) {
	if m == nil {
		return
	}
	m.SubmitsTotal.WithLabelValues(result, string(c)).Inc()
}

func (m *Metrics) transition(to Status, result string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(string(to), result).Inc()
}

func (m *Metrics) notify(channel string, err error, seconds float64) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.NotificationsTotal.WithLabelValues(channel, outcome).Inc()
	m.NotifyDuration.WithLabelValues(channel).Observe(seconds)
}

func (m *Metrics) settingsUpdated() {
	if m == nil {
		return
	}
	m.SettingsUpdates.Inc()
}
