package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/agentmesh/breaker"
	"github.com/BaSui01/agentmesh/coordinator"
)

// Collector exposes workflow and breaker metrics. It implements both
// coordinator.Metrics and breaker.EventHandler, so one instance observes the
// whole pipeline.
type Collector struct {
	workflowsTotal   *prometheus.CounterVec
	workflowDuration *prometheus.HistogramVec
	tasksTotal       *prometheus.CounterVec
	taskDuration     *prometheus.HistogramVec

	breakerTransitions *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec

	logger *zap.Logger
}

// NewCollector creates a collector registered with the given registerer.
// Tests pass a fresh prometheus.NewRegistry to avoid global registration
// collisions.
func NewCollector(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(registerer)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.workflowsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_executions_total",
			Help:      "Total number of workflow executions",
		},
		[]string{"strategy", "status"},
	)

	c.workflowDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Workflow execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	c.tasksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_executions_total",
			Help:      "Total number of task executions by terminal status",
		},
		[]string{"status"},
	)

	c.taskDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Agent call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	c.breakerTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		},
		[]string{"breaker", "from", "to"},
	)

	c.breakerState = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Current circuit breaker state (0=closed, 1=open, 2=half_open)",
		},
		[]string{"breaker"},
	)

	return c
}

// ObserveWorkflow records one finished workflow run.
func (c *Collector) ObserveWorkflow(strategy coordinator.Strategy, status coordinator.WorkflowStatus, d time.Duration) {
	c.workflowsTotal.WithLabelValues(string(strategy), string(status)).Inc()
	c.workflowDuration.WithLabelValues(string(strategy)).Observe(d.Seconds())
}

// ObserveTask records one terminal task.
func (c *Collector) ObserveTask(status coordinator.TaskStatus, d time.Duration) {
	c.tasksTotal.WithLabelValues(string(status)).Inc()
	if status == coordinator.TaskSucceeded || status == coordinator.TaskFailed {
		c.taskDuration.WithLabelValues(string(status)).Observe(d.Seconds())
	}
}

// OnStateChange records a breaker transition and updates the state gauge.
func (c *Collector) OnStateChange(event breaker.Event) {
	c.breakerTransitions.WithLabelValues(
		event.Name, event.OldState.String(), event.NewState.String(),
	).Inc()
	c.breakerState.WithLabelValues(event.Name).Set(float64(event.NewState))

	c.logger.Debug("breaker transition recorded",
		zap.String("breaker", event.Name),
		zap.String("from", event.OldState.String()),
		zap.String("to", event.NewState.String()),
	)
}
