package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shaiso/Treeflow/internal/domain"
	"github.com/shaiso/Treeflow/internal/node"
)

// Metrics — Prometheus метрики выполнения узлов.
//
// Metrics реализует node.Observer: достаточно подписать его
// на корневой узел, чтобы получать события всего дерева.
type Metrics struct {
	transitions *prometheus.CounterVec
	activeJobs  prometheus.Gauge
	jobDuration *prometheus.HistogramVec
	runs        *prometheus.CounterVec

	mu      sync.Mutex
	started map[node.Node]time.Time
}

// NewMetrics регистрирует метрики в reg.
// Если reg == nil, используется prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "treeflow_node_transitions_total",
			Help: "Node state transitions by node kind and target state",
		}, []string{"kind", "state"}),
		activeJobs: f.NewGauge(prometheus.GaugeOpts{
			Name: "treeflow_queue_active_jobs",
			Help: "Children currently running inside queues",
		}),
		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "treeflow_job_duration_seconds",
			Help:    "Time from in-progress to a terminal state",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "state"}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "treeflow_runs_total",
			Help: "Finished runs by status",
		}, []string{"status"}),
		started: make(map[node.Node]time.Time),
	}
}

// OnEvent обновляет метрики по событию узла.
func (m *Metrics) OnEvent(e node.Event) {
	switch e.Type {
	case node.EventState:
		kind := e.Node.Common().Kind()
		m.transitions.WithLabelValues(kind, e.State.String()).Inc()
		m.track(e, kind)
	case node.EventJobStart:
		m.activeJobs.Inc()
	case node.EventJobEnd:
		m.activeJobs.Dec()
	}
}

// track считает длительность от in-progress до финального состояния.
func (m *Metrics) track(e node.Event, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.State == node.StateInProgress {
		m.started[e.Node] = e.Time
		return
	}

	start, ok := m.started[e.Node]
	if !ok {
		return
	}
	delete(m.started, e.Node)
	m.jobDuration.WithLabelValues(kind, e.State.String()).Observe(e.Time.Sub(start).Seconds())
}

// ObserveRun учитывает завершённый run.
func (m *Metrics) ObserveRun(status domain.RunStatus) {
	m.runs.WithLabelValues(status.String()).Inc()
}
