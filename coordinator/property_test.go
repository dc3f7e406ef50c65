package coordinator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/BaSui01/agentmesh/breaker"
	"github.com/BaSui01/agentmesh/registry"
	"github.com/BaSui01/agentmesh/types"
)

// taskSpec is the generated shape of one task: whether its agent fails,
// which earlier tasks it depends on, and whether it carries a condition on
// its first dependency's output.
type taskSpec struct {
	fails bool
	deps  []int
	cond  bool
}

// TestStrategyEquivalence checks that sequential and parallel execution of
// the same acyclic task set produce identical terminal statuses, and that
// both match a straightforward reference evaluation in topological order.
func TestStrategyEquivalence(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "n")

		specs := make([]taskSpec, n)
		for i := range specs {
			specs[i].fails = rapid.Bool().Draw(rt, fmt.Sprintf("fail%d", i))
			if i > 0 {
				maxDeps := i
				if maxDeps > 3 {
					maxDeps = 3
				}
				specs[i].deps = rapid.SliceOfNDistinct(
					rapid.IntRange(0, i-1), 0, maxDeps, rapid.ID[int],
				).Draw(rt, fmt.Sprintf("deps%d", i))
				if len(specs[i].deps) > 0 {
					specs[i].cond = rapid.Bool().Draw(rt, fmt.Sprintf("cond%d", i))
				}
			}
		}

		expected := referenceStatuses(specs)

		seq := runStrategy(rt, specs, StrategySequential)
		par := runStrategy(rt, specs, StrategyParallel)

		for i := 0; i < n; i++ {
			id := taskID(i)
			require.Equal(rt, expected[i], seq.Task(id).Status, "sequential %s", id)
			require.Equal(rt, expected[i], par.Task(id).Status, "parallel %s", id)
			require.Equal(rt, seq.Task(id).SkipReason, par.Task(id).SkipReason, "skip reason %s", id)
		}
		require.Equal(rt, seq.Status, par.Status)
	})
}

func taskID(i int) string { return fmt.Sprintf("t%d", i) }

// referenceStatuses evaluates the specs in index order, which is a valid
// topological order because dependencies only point backwards.
func referenceStatuses(specs []taskSpec) []TaskStatus {
	out := make([]TaskStatus, len(specs))
	for i, spec := range specs {
		depOK := true
		for _, d := range spec.deps {
			if out[d] != TaskSucceeded {
				depOK = false
				break
			}
		}
		switch {
		case !depOK:
			out[i] = TaskSkipped
		case spec.cond && spec.deps[0]%2 != 0:
			out[i] = TaskSkipped
		case spec.fails:
			out[i] = TaskFailed
		default:
			out[i] = TaskSucceeded
		}
	}
	return out
}

func runStrategy(rt *rapid.T, specs []taskSpec, strategy Strategy) *WorkflowResult {
	reg := registry.New(zap.NewNop())
	for _, id := range []string{"ok", "bad"} {
		reg.Register(registry.AgentDescriptor{
			ID: id, Enabled: true, Priority: 1,
			Capabilities: registry.NewCapabilitySet(registry.CapabilityAnalysis),
		})
	}

	inv := invokerFunc(func(_ context.Context, agent *registry.AgentDescriptor, payload types.Payload) (types.Payload, error) {
		if agent.ID == "bad" {
			return nil, errors.New("synthetic failure")
		}
		return payload.Clone(), nil
	})

	// High threshold so breaker state never influences the comparison.
	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: 1 << 20,
		RecoveryTimeout:  time.Hour,
	}, nil, zap.NewNop())
	c := New(reg, breakers, inv, zap.NewNop())

	tasks := make([]*AgentTask, len(specs))
	for i, spec := range specs {
		agent := "ok"
		if spec.fails {
			agent = "bad"
		}
		task := &AgentTask{
			ID:      taskID(i),
			AgentID: agent,
			Payload: types.Payload{"idx": float64(i)},
		}
		for _, d := range spec.deps {
			task.DependsOn = append(task.DependsOn, taskID(d))
		}
		if spec.cond {
			dep := taskID(spec.deps[0])
			task.Condition = func(wc *WorkflowContext) bool {
				idx, ok := wc.OutputNumber(dep, "idx")
				return ok && int(idx)%2 == 0
			}
		}
		tasks[i] = task
	}

	res, err := c.ExecuteWorkflow(context.Background(), tasks, strategy)
	require.NoError(rt, err)
	return res
}
