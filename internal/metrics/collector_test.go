package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/BaSui01/agentmesh/breaker"
	"github.com/BaSui01/agentmesh/coordinator"
)

// Compile-time checks that the collector plugs into both pipelines.
var (
	_ coordinator.Metrics  = (*Collector)(nil)
	_ breaker.EventHandler = (*Collector)(nil)
)

func newTestCollector() *Collector {
	return NewCollector("agentmesh", prometheus.NewRegistry(), zap.NewNop())
}

func TestCollector_ObserveWorkflow(t *testing.T) {
	c := newTestCollector()

	c.ObserveWorkflow(coordinator.StrategyParallel, coordinator.WorkflowSuccess, 120*time.Millisecond)
	c.ObserveWorkflow(coordinator.StrategyParallel, coordinator.WorkflowSuccess, 80*time.Millisecond)
	c.ObserveWorkflow(coordinator.StrategySequential, coordinator.WorkflowFailed, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.workflowsTotal.WithLabelValues("parallel", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.workflowsTotal.WithLabelValues("sequential", "failed")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.workflowDuration))
}

func TestCollector_ObserveTask(t *testing.T) {
	c := newTestCollector()

	c.ObserveTask(coordinator.TaskSucceeded, 40*time.Millisecond)
	c.ObserveTask(coordinator.TaskFailed, 10*time.Millisecond)
	c.ObserveTask(coordinator.TaskSkipped, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.tasksTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tasksTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.tasksTotal.WithLabelValues("skipped")))

	// Durations are only meaningful for tasks that actually ran.
	assert.Equal(t, 2, testutil.CollectAndCount(c.taskDuration))
}

func TestCollector_OnStateChange(t *testing.T) {
	c := newTestCollector()

	c.OnStateChange(breaker.Event{
		Name:     "billing",
		OldState: breaker.StateClosed,
		NewState: breaker.StateOpen,
	})
	c.OnStateChange(breaker.Event{
		Name:     "billing",
		OldState: breaker.StateOpen,
		NewState: breaker.StateHalfOpen,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.breakerTransitions.WithLabelValues("billing", "closed", "open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.breakerTransitions.WithLabelValues("billing", "open", "half_open")))
	assert.Equal(t, float64(breaker.StateHalfOpen), testutil.ToFloat64(c.breakerState.WithLabelValues("billing")))
}
