package coordinator

import (
	"time"

	"github.com/BaSui01/agentmesh/registry"
	"github.com/BaSui01/agentmesh/types"
)

// TaskStatus is the lifecycle state of a task. Transitions only move
// forward: pending -> running -> {succeeded | failed}, or pending -> skipped.
type TaskStatus string

const (
	// TaskPending means the task has not started.
	TaskPending TaskStatus = "pending"
	// TaskRunning means the task's agent invocation is in flight.
	TaskRunning TaskStatus = "running"
	// TaskSucceeded means the agent returned a result.
	TaskSucceeded TaskStatus = "succeeded"
	// TaskFailed means the invocation or agent resolution failed.
	TaskFailed TaskStatus = "failed"
	// TaskSkipped means the task was never invoked.
	TaskSkipped TaskStatus = "skipped"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskSucceeded, TaskFailed, TaskSkipped:
		return true
	default:
		return false
	}
}

// SkipReason explains why a task was skipped.
type SkipReason string

const (
	// SkipDependencyFailed means a dependency failed or was itself skipped.
	SkipDependencyFailed SkipReason = "dependency_failed"
	// SkipConditionFalse means the task's condition evaluated to false.
	SkipConditionFalse SkipReason = "condition_false"
	// SkipNotSelected means a conditional router chose a different task.
	SkipNotSelected SkipReason = "not_selected"
	// SkipWorkflowTimeout means the workflow deadline elapsed first.
	SkipWorkflowTimeout SkipReason = "workflow_timeout"
)

// Condition decides whether a task should run, given a read-only view of
// completed tasks' outputs. A nil condition is always true. Conditions are
// evaluated only after every dependency succeeded.
type Condition func(wc *WorkflowContext) bool

// AgentTask is one unit of work routed to an agent. A task is owned by a
// single workflow execution and must not be reused across runs.
//
// The target agent is resolved in order of specificity: AgentID directly,
// else Capability via the registry, else Intent via the intent table.
type AgentTask struct {
	// ID uniquely identifies the task within its workflow.
	ID string

	// AgentID targets a specific registered agent.
	AgentID string

	// Capability selects the preferred enabled agent for a capability.
	Capability registry.Capability

	// Intent routes through the fixed intent table.
	Intent string

	// Payload is the opaque input handed to the agent invoker.
	Payload types.Payload

	// DependsOn lists task IDs that must reach a terminal status first.
	DependsOn []string

	// Condition optionally gates execution on prior outputs.
	Condition Condition

	// Timeout bounds the agent call. Zero uses the breaker's request timeout.
	Timeout time.Duration
}

// WorkflowContext is an immutable snapshot of the outputs of tasks that have
// succeeded so far. Conditions receive it instead of live task objects, so a
// predicate can never observe concurrent mutation.
type WorkflowContext struct {
	outputs map[string]types.Payload
}

// Output returns a succeeded task's output payload.
func (wc *WorkflowContext) Output(taskID string) (types.Payload, bool) {
	out, ok := wc.outputs[taskID]
	return out, ok
}

// Has reports whether the task has a recorded output.
func (wc *WorkflowContext) Has(taskID string) bool {
	_, ok := wc.outputs[taskID]
	return ok
}

// OutputNumber returns a numeric field from a succeeded task's output.
func (wc *WorkflowContext) OutputNumber(taskID, key string) (float64, bool) {
	out, ok := wc.outputs[taskID]
	if !ok {
		return 0, false
	}
	return out.Number(key)
}

// OutputString returns a string field from a succeeded task's output.
func (wc *WorkflowContext) OutputString(taskID, key string) (string, bool) {
	out, ok := wc.outputs[taskID]
	if !ok {
		return "", false
	}
	return out.String(key)
}
