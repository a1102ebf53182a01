// Package metrics exposes bridge counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/kommander-bridge/internal/bridges/kommander"
)

// Metrics holds a private registry and the bridge meters. It implements
// kommander.MetricsRecorder and kommander.StateObserver.
type Metrics struct {
	Registry *prometheus.Registry

	Commands        *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
	Connection      *prometheus.GaugeVec
	Reconnects      prometheus.Counter
	FacetChanges    *prometheus.CounterVec
	VariableUpdates prometheus.Counter
}

// New creates the registry with the bridge meters plus the Go runtime and
// process collectors.
func New(instance string) *Metrics {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"instance_id": instance}

	m := &Metrics{
		Registry: reg,
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kommander_commands_total",
			Help:        "Commands handed to the device connection.",
			ConstLabels: labels,
		}, []string{"command", "result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kommander_notifications_total",
			Help:        "Notifications received from the device.",
			ConstLabels: labels,
		}, []string{"kind", "result"}),
		Connection: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "kommander_connection_status",
			Help:        "1 for the current connection status, 0 otherwise.",
			ConstLabels: labels,
		}, []string{"status"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "kommander_reconnects_scheduled_total",
			Help:        "Reconnect attempts scheduled after a lost connection.",
			ConstLabels: labels,
		}),
		FacetChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kommander_facet_changes_total",
			Help:        "Device state changes observed.",
			ConstLabels: labels,
		}, []string{"facet"}),
		VariableUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "kommander_variable_updates_total",
			Help:        "Exported variable values that changed.",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(
		m.Commands, m.Notifications, m.Connection, m.Reconnects, m.FacetChanges, m.VariableUpdates,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) CommandSent(tag string) {
	m.Commands.WithLabelValues(tag, "sent").Inc()
}

func (m *Metrics) CommandDropped(tag string) {
	m.Commands.WithLabelValues(tag, "dropped").Inc()
}

func (m *Metrics) NotificationReceived(kind string) {
	m.Notifications.WithLabelValues(kind, "accepted").Inc()
}

func (m *Metrics) NotificationRejected(kind string) {
	m.Notifications.WithLabelValues(kind, "rejected").Inc()
}

// StatusChanged leaves exactly one status series at 1.
func (m *Metrics) StatusChanged(status string) {
	m.Connection.Reset()
	m.Connection.WithLabelValues(status).Set(1)
}

func (m *Metrics) ReconnectScheduled() {
	m.Reconnects.Inc()
}

// FacetChanged counts a state change.
func (m *Metrics) FacetChanged(change kommander.FacetChange) {
	m.FacetChanges.WithLabelValues(string(change.Facet)).Inc()
}

// VariablesChanged counts changed variable values.
func (m *Metrics) VariablesChanged(n int) {
	m.VariableUpdates.Add(float64(n))
}
