package coordinator

import (
	"github.com/BaSui01/agentmesh/types"
)

// validateTasks rejects malformed task sets before anything runs: empty or
// duplicate IDs, references to unknown dependencies, and dependency cycles.
func validateTasks(tasks []*AgentTask) error {
	byID := make(map[string]*AgentTask, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			return types.NewError(types.ErrInvalidWorkflow, "task has empty id")
		}
		if _, ok := byID[t.ID]; ok {
			return types.NewError(types.ErrDuplicateTask, "duplicate task id: "+t.ID)
		}
		byID[t.ID] = t
	}

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if _, ok := byID[dep]; !ok {
				return types.NewError(types.ErrUnknownDependency,
					"task "+t.ID+" depends on unknown task: "+dep)
			}
		}
	}

	return detectCycle(tasks, byID)
}

// detectCycle runs a DFS over the dependency graph. A node on the current
// recursion stack reached again closes a cycle.
func detectCycle(tasks []*AgentTask, byID map[string]*AgentTask) error {
	visited := make(map[string]bool, len(tasks))
	onStack := make(map[string]bool, len(tasks))

	var visit func(id string) error
	visit = func(id string) error {
		visited[id] = true
		onStack[id] = true

		for _, dep := range byID[id].DependsOn {
			if onStack[dep] {
				return types.NewError(types.ErrCyclicDependency,
					"dependency cycle through task: "+dep)
			}
			if !visited[dep] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		onStack[id] = false
		return nil
	}

	for _, t := range tasks {
		if !visited[t.ID] {
			if err := visit(t.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
