package coordinator

import (
	"sync"
	"time"

	"github.com/BaSui01/agentmesh/types"
)

// execState tracks one workflow execution. Each task owns a done channel
// closed exactly once when the task reaches a terminal status; dependents
// block on those channels instead of polling.
type execState struct {
	mu      sync.Mutex
	results map[string]*TaskResult
	done    map[string]chan struct{}
	outputs map[string]types.Payload
}

func newExecState(tasks []*AgentTask) *execState {
	st := &execState{
		results: make(map[string]*TaskResult, len(tasks)),
		done:    make(map[string]chan struct{}, len(tasks)),
		outputs: make(map[string]types.Payload, len(tasks)),
	}
	for _, t := range tasks {
		st.results[t.ID] = &TaskResult{TaskID: t.ID, Status: TaskPending}
		st.done[t.ID] = make(chan struct{})
	}
	return st
}

func (st *execState) status(id string) TaskStatus {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.results[id].Status
}

func (st *execState) markRunning(id, agentID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	tr := st.results[id]
	tr.Status = TaskRunning
	tr.AgentID = agentID
}

func (st *execState) succeed(id, agentID string, out types.Payload, d time.Duration) {
	st.mu.Lock()
	defer st.mu.Unlock()
	tr := st.results[id]
	if tr.Status.Terminal() {
		return
	}
	tr.Status = TaskSucceeded
	tr.AgentID = agentID
	tr.Output = out
	tr.Duration = d
	st.outputs[id] = out
	close(st.done[id])
}

func (st *execState) fail(id, agentID string, err error, d time.Duration) {
	st.mu.Lock()
	defer st.mu.Unlock()
	tr := st.results[id]
	if tr.Status.Terminal() {
		return
	}
	tr.Status = TaskFailed
	if agentID != "" {
		tr.AgentID = agentID
	}
	tr.Err = err
	if err != nil {
		tr.Error = err.Error()
	}
	tr.Duration = d
	close(st.done[id])
}

func (st *execState) skip(id string, reason SkipReason) {
	st.mu.Lock()
	defer st.mu.Unlock()
	tr := st.results[id]
	if tr.Status.Terminal() {
		return
	}
	tr.Status = TaskSkipped
	tr.SkipReason = reason
	close(st.done[id])
}

// snapshot copies the succeeded outputs into an immutable view for condition
// evaluation.
func (st *execState) snapshot() *WorkflowContext {
	st.mu.Lock()
	defer st.mu.Unlock()

	outputs := make(map[string]types.Payload, len(st.outputs))
	for id, out := range st.outputs {
		outputs[id] = out.Clone()
	}
	return &WorkflowContext{outputs: outputs}
}
