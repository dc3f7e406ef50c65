package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/BaSui01/agentmesh/breaker"
	"github.com/BaSui01/agentmesh/registry"
	"github.com/BaSui01/agentmesh/types"
)

// tracerName identifies coordinator spans in exported traces.
const tracerName = "github.com/BaSui01/agentmesh/coordinator"

// AgentInvoker performs the actual call to an agent endpoint. The coordinator
// never dereferences descriptors itself; transport lives behind this
// interface. Implementations must be safe for concurrent use and should
// honor ctx cancellation.
type AgentInvoker interface {
	Invoke(ctx context.Context, agent *registry.AgentDescriptor, payload types.Payload) (types.Payload, error)
}

// RouterFunc picks, for the conditional strategy, the agent ID of the single
// task to execute. Every other task is skipped.
type RouterFunc func(ctx context.Context, tasks []*AgentTask) (string, error)

// Metrics receives execution observations. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ObserveWorkflow(strategy Strategy, status WorkflowStatus, d time.Duration)
	ObserveTask(status TaskStatus, d time.Duration)
}

// Coordinator schedules agent tasks across the registry, guarding every
// invocation with the per-endpoint circuit breaker. A coordinator is
// stateless between runs and safe for concurrent ExecuteWorkflow calls.
type Coordinator struct {
	registry *registry.Registry
	breakers *breaker.Registry
	invoker  AgentInvoker
	logger   *zap.Logger
	tracer   trace.Tracer

	metrics         Metrics
	maxConcurrency  int64
	workflowTimeout time.Duration
	limiters        map[string]*rate.Limiter
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMetrics installs an execution metrics sink.
func WithMetrics(m Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithMaxConcurrency caps the number of agent calls in flight during a
// parallel run. Zero or negative means unbounded.
func WithMaxConcurrency(n int64) Option {
	return func(c *Coordinator) { c.maxConcurrency = n }
}

// WithWorkflowTimeout sets a deadline for the whole run. Tasks not yet
// terminal when it elapses are skipped; tasks already calling an agent finish
// under their own call timeout.
func WithWorkflowTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.workflowTimeout = d }
}

// WithRateLimit throttles calls to one agent. The limiter is shared by every
// workflow the coordinator runs.
func WithRateLimit(agentID string, limit rate.Limit, burst int) Option {
	return func(c *Coordinator) {
		c.limiters[agentID] = rate.NewLimiter(limit, burst)
	}
}

// New creates a coordinator over the given registry, breaker registry, and
// invoker.
func New(reg *registry.Registry, breakers *breaker.Registry, invoker AgentInvoker, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		registry: reg,
		breakers: breakers,
		invoker:  invoker,
		logger:   logger.With(zap.String("component", "coordinator")),
		tracer:   otel.Tracer(tracerName),
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExecuteWorkflow validates the task set and runs it under the given
// strategy. Validation errors (duplicate IDs, unknown dependencies, cycles)
// are returned before any task starts. Task failures do not surface here;
// they are reported per task in the WorkflowResult.
func (c *Coordinator) ExecuteWorkflow(ctx context.Context, tasks []*AgentTask, strategy Strategy) (*WorkflowResult, error) {
	switch strategy {
	case StrategySequential, StrategyParallel:
	case StrategyConditional:
		return nil, types.NewError(types.ErrInvalidWorkflow,
			"conditional strategy requires a router; use ExecuteConditional")
	default:
		return nil, types.NewError(types.ErrInvalidWorkflow, "unknown strategy: "+string(strategy))
	}

	if err := validateTasks(tasks); err != nil {
		return nil, err
	}
	return c.execute(ctx, tasks, strategy, nil)
}

// ExecuteSequential runs the tasks one at a time in input order.
func (c *Coordinator) ExecuteSequential(ctx context.Context, tasks []*AgentTask) (*WorkflowResult, error) {
	return c.ExecuteWorkflow(ctx, tasks, StrategySequential)
}

// ExecuteParallel starts each task as soon as its dependencies are terminal.
func (c *Coordinator) ExecuteParallel(ctx context.Context, tasks []*AgentTask) (*WorkflowResult, error) {
	return c.ExecuteWorkflow(ctx, tasks, StrategyParallel)
}

// ExecuteConditional lets the router select exactly one task by agent ID;
// all other tasks are skipped. The selected task runs regardless of its
// declared dependencies and condition, since those refer to tasks skipped by
// the router's decision.
func (c *Coordinator) ExecuteConditional(ctx context.Context, tasks []*AgentTask, router RouterFunc) (*WorkflowResult, error) {
	if router == nil {
		return nil, types.NewError(types.ErrInvalidWorkflow, "conditional strategy requires a router")
	}
	if err := validateTasks(tasks); err != nil {
		return nil, err
	}
	return c.execute(ctx, tasks, StrategyConditional, router)
}

func (c *Coordinator) execute(ctx context.Context, tasks []*AgentTask, strategy Strategy, router RouterFunc) (*WorkflowResult, error) {
	runID := uuid.NewString()
	logger := c.logger.With(
		zap.String("run_id", runID),
		zap.String("strategy", string(strategy)),
	)

	execCtx := ctx
	cancel := func() {}
	if c.workflowTimeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, c.workflowTimeout)
	}
	defer cancel()

	execCtx, span := c.tracer.Start(execCtx, "coordinator.execute_workflow",
		trace.WithAttributes(
			attribute.String("workflow.run_id", runID),
			attribute.String("workflow.strategy", string(strategy)),
			attribute.Int("workflow.task_count", len(tasks)),
		))
	defer span.End()

	st := newExecState(tasks)
	start := time.Now()
	logger.Info("workflow started", zap.Int("tasks", len(tasks)))

	switch strategy {
	case StrategySequential:
		c.runSequential(execCtx, st, tasks, logger)
	case StrategyParallel:
		c.runParallel(execCtx, st, tasks, logger)
	case StrategyConditional:
		if err := c.runConditional(execCtx, st, tasks, router, logger); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	result := &WorkflowResult{
		RunID:    runID,
		Strategy: strategy,
		Status:   aggregateStatus(st.results),
		Tasks:    st.results,
		Duration: time.Since(start),
	}
	span.SetAttributes(attribute.String("workflow.status", string(result.Status)))
	if c.metrics != nil {
		c.metrics.ObserveWorkflow(strategy, result.Status, result.Duration)
	}

	counts := result.CountByStatus()
	logger.Info("workflow finished",
		zap.String("status", string(result.Status)),
		zap.Duration("duration", result.Duration),
		zap.Int("succeeded", counts[TaskSucceeded]),
		zap.Int("failed", counts[TaskFailed]),
		zap.Int("skipped", counts[TaskSkipped]),
	)
	return result, nil
}

func (c *Coordinator) runSequential(ctx context.Context, st *execState, tasks []*AgentTask, logger *zap.Logger) {
	for _, task := range tasks {
		if ctx.Err() != nil {
			c.finishSkip(st, task.ID, SkipWorkflowTimeout)
			continue
		}
		c.runTask(ctx, st, task, nil, logger)
	}
}

func (c *Coordinator) runParallel(ctx context.Context, st *execState, tasks []*AgentTask, logger *zap.Logger) {
	var sem *semaphore.Weighted
	if c.maxConcurrency > 0 {
		sem = semaphore.NewWeighted(c.maxConcurrency)
	}

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task *AgentTask) {
			defer wg.Done()

			for _, dep := range task.DependsOn {
				select {
				case <-st.done[dep]:
				case <-ctx.Done():
					c.finishSkip(st, task.ID, SkipWorkflowTimeout)
					return
				}
			}
			c.runTask(ctx, st, task, sem, logger)
		}(task)
	}
	wg.Wait()
}

func (c *Coordinator) runConditional(ctx context.Context, st *execState, tasks []*AgentTask, router RouterFunc, logger *zap.Logger) error {
	agentID, err := router(ctx, tasks)
	if err != nil {
		return types.NewError(types.ErrInvalidWorkflow, "router failed").WithCause(err)
	}

	var selected *AgentTask
	for _, task := range tasks {
		if selected == nil && task.AgentID == agentID {
			selected = task
			continue
		}
		c.finishSkip(st, task.ID, SkipNotSelected)
	}
	if selected == nil {
		return types.NewError(types.ErrInvalidWorkflow,
			"router selected agent with no matching task: "+agentID)
	}

	log := logger.With(zap.String("task_id", selected.ID))
	agent, err := c.resolveAgent(selected)
	if err != nil {
		log.Warn("agent resolution failed", zap.Error(err))
		c.finishFail(st, selected.ID, "", err, 0)
		return nil
	}
	c.executeResolved(ctx, st, selected, agent, log)
	return nil
}

// runTask takes one task from dependency check to terminal status. The
// caller guarantees every dependency is already terminal.
func (c *Coordinator) runTask(ctx context.Context, st *execState, task *AgentTask, sem *semaphore.Weighted, logger *zap.Logger) {
	log := logger.With(zap.String("task_id", task.ID))

	for _, dep := range task.DependsOn {
		if status := st.status(dep); status != TaskSucceeded {
			log.Info("task skipped: dependency not satisfied",
				zap.String("dependency", dep),
				zap.String("dependency_status", string(status)),
			)
			c.finishSkip(st, task.ID, SkipDependencyFailed)
			return
		}
	}

	if task.Condition != nil && !task.Condition(st.snapshot()) {
		log.Info("task skipped: condition false")
		c.finishSkip(st, task.ID, SkipConditionFalse)
		return
	}

	agent, err := c.resolveAgent(task)
	if err != nil {
		log.Warn("agent resolution failed", zap.Error(err))
		c.finishFail(st, task.ID, "", err, 0)
		return
	}

	if sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			c.finishSkip(st, task.ID, SkipWorkflowTimeout)
			return
		}
		defer sem.Release(1)
	}

	c.executeResolved(ctx, st, task, agent, log)
}

// executeResolved invokes the resolved agent and records the outcome.
func (c *Coordinator) executeResolved(ctx context.Context, st *execState, task *AgentTask, agent *registry.AgentDescriptor, log *zap.Logger) {
	st.markRunning(task.ID, agent.ID)

	start := time.Now()
	out, err := c.invoke(ctx, agent, task)
	elapsed := time.Since(start)

	if err != nil {
		log.Warn("task failed",
			zap.String("agent_id", agent.ID),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		c.finishFail(st, task.ID, agent.ID, err, elapsed)
		return
	}

	log.Info("task succeeded",
		zap.String("agent_id", agent.ID),
		zap.Duration("duration", elapsed),
	)
	c.finishSucceed(st, task.ID, agent.ID, out, elapsed)
}

// invoke routes one call through the agent's rate limiter and circuit
// breaker. The workflow deadline bounds scheduling only; an admitted call is
// cut off by the per-call timeout alone.
func (c *Coordinator) invoke(ctx context.Context, agent *registry.AgentDescriptor, task *AgentTask) (types.Payload, error) {
	if lim, ok := c.limiters[agent.ID]; ok {
		if err := lim.Wait(ctx); err != nil {
			return nil, types.NewTransient(agent.ID, "rate limit wait aborted").WithCause(err)
		}
	}

	ctx, span := c.tracer.Start(ctx, "coordinator.invoke_agent",
		trace.WithAttributes(
			attribute.String("task.id", task.ID),
			attribute.String("agent.id", agent.ID),
		))
	defer span.End()

	cb := c.breakers.GetOrCreate(agent.ID)
	callCtx := context.WithoutCancel(ctx)
	out, err := cb.CallWithTimeout(callCtx, task.Payload, task.Timeout, func(ctx context.Context) (types.Payload, error) {
		return c.invoker.Invoke(ctx, agent, task.Payload)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}

// resolveAgent maps a task to a registered agent: direct ID first, then
// capability, then the intent table.
func (c *Coordinator) resolveAgent(task *AgentTask) (*registry.AgentDescriptor, error) {
	switch {
	case task.AgentID != "":
		agent, err := c.registry.Get(task.AgentID)
		if err != nil {
			return nil, err
		}
		if !agent.Enabled {
			return nil, types.NewError(types.ErrNoAgentAvailable, "agent is disabled").
				WithAgent(agent.ID)
		}
		return agent, nil

	case task.Capability != "":
		return c.registry.RouteCapability(task.Capability)

	case task.Intent != "":
		return c.registry.Route(task.Intent)

	default:
		return nil, types.NewError(types.ErrInvalidWorkflow,
			"task has no agent id, capability, or intent: "+task.ID)
	}
}

func (c *Coordinator) finishSucceed(st *execState, id, agentID string, out types.Payload, d time.Duration) {
	st.succeed(id, agentID, out, d)
	if c.metrics != nil {
		c.metrics.ObserveTask(TaskSucceeded, d)
	}
}

func (c *Coordinator) finishFail(st *execState, id, agentID string, err error, d time.Duration) {
	st.fail(id, agentID, err, d)
	if c.metrics != nil {
		c.metrics.ObserveTask(TaskFailed, d)
	}
}

func (c *Coordinator) finishSkip(st *execState, id string, reason SkipReason) {
	st.skip(id, reason)
	if c.metrics != nil {
		c.metrics.ObserveTask(TaskSkipped, 0)
	}
}
