package coordinator

import (
	"time"

	"github.com/BaSui01/agentmesh/types"
)

// Strategy selects how a workflow's tasks are scheduled.
type Strategy string

const (
	// StrategySequential runs tasks one at a time in input order.
	StrategySequential Strategy = "sequential"
	// StrategyParallel runs every task as soon as its dependencies finish.
	StrategyParallel Strategy = "parallel"
	// StrategyConditional runs the single task picked by a router.
	StrategyConditional Strategy = "conditional"
)

// WorkflowStatus is the aggregated outcome of a workflow execution.
type WorkflowStatus string

const (
	// WorkflowSuccess means no task failed and none was cut off by the
	// workflow deadline.
	WorkflowSuccess WorkflowStatus = "success"
	// WorkflowPartial means some tasks succeeded while others failed or were
	// skipped by the workflow deadline.
	WorkflowPartial WorkflowStatus = "partial"
	// WorkflowFailed means at least one task failed and none succeeded.
	WorkflowFailed WorkflowStatus = "failed"
)

// TaskResult is the terminal record of one task.
type TaskResult struct {
	TaskID string `json:"task_id"`

	// AgentID is the resolved agent, empty if resolution never happened.
	AgentID string `json:"agent_id,omitempty"`

	Status TaskStatus `json:"status"`

	// Output is the agent's result payload; set only on success.
	Output types.Payload `json:"output,omitempty"`

	// Err is the failure cause; set only on failure.
	Err error `json:"-"`

	// Error mirrors Err for serialized results.
	Error string `json:"error,omitempty"`

	// SkipReason is set only when Status is skipped.
	SkipReason SkipReason `json:"skip_reason,omitempty"`

	// Duration is the wall-clock time of the agent call, zero for tasks that
	// never ran.
	Duration time.Duration `json:"duration"`
}

// WorkflowResult aggregates the terminal results of every task in a run.
type WorkflowResult struct {
	RunID    string                 `json:"run_id"`
	Strategy Strategy               `json:"strategy"`
	Status   WorkflowStatus         `json:"status"`
	Tasks    map[string]*TaskResult `json:"tasks"`
	Duration time.Duration          `json:"duration"`
}

// Task returns the result of one task, or nil if the ID is unknown.
func (r *WorkflowResult) Task(id string) *TaskResult {
	return r.Tasks[id]
}

// CountByStatus tallies task results per status.
func (r *WorkflowResult) CountByStatus() map[TaskStatus]int {
	counts := make(map[TaskStatus]int, 4)
	for _, tr := range r.Tasks {
		counts[tr.Status]++
	}
	return counts
}

// aggregateStatus derives the workflow status from terminal task results.
// Failure dominates when nothing succeeded; a mix of failure and success is
// partial; deadline skips downgrade an otherwise clean run to partial.
func aggregateStatus(tasks map[string]*TaskResult) WorkflowStatus {
	var succeeded, failed, timedOut int
	for _, tr := range tasks {
		switch tr.Status {
		case TaskSucceeded:
			succeeded++
		case TaskFailed:
			failed++
		case TaskSkipped:
			if tr.SkipReason == SkipWorkflowTimeout {
				timedOut++
			}
		}
	}

	switch {
	case failed > 0 && succeeded == 0:
		return WorkflowFailed
	case failed > 0:
		return WorkflowPartial
	case timedOut > 0:
		return WorkflowPartial
	default:
		return WorkflowSuccess
	}
}
