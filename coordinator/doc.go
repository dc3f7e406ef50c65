// Copyright (c) AgentMesh Authors.
// Licensed under the MIT License.

/*
Package coordinator executes sets of agent tasks with dependency resolution.

A caller builds a task set, the coordinator resolves each task's target agent
through the registry, routes every invocation through that agent's circuit
breaker, feeds results into dependent tasks, and returns an aggregated
WorkflowResult.

Three strategies are supported:

  - Sequential: tasks run one at a time in fixed input order.
  - Parallel: every task whose dependencies are terminal starts immediately;
    readiness is event-driven, never polled.
  - Conditional: a caller-supplied router selects exactly one task to run;
    the rest are skipped.

Dependency graphs must be acyclic; a cycle is a configuration error reported
before any task runs. A task with a failed or skipped dependency is skipped
without evaluating its condition or invoking its agent. A task's own failure
never aborts siblings that do not depend on it.
*/
package coordinator
