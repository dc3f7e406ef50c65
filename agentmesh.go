// Copyright (c) AgentMesh Authors.
// Licensed under the MIT License.

// Package agentmesh assembles the resilience core from configuration: an
// agent registry, per-endpoint circuit breakers, a metrics collector, and a
// workflow coordinator wired together.
//
// Usage:
//
//	cfg := config.MustLoad("agentmesh.yaml")
//	mesh, err := agentmesh.New(cfg, myInvoker)
//	result, err := mesh.ExecuteParallel(ctx, tasks)
package agentmesh

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/agentmesh/breaker"
	"github.com/BaSui01/agentmesh/config"
	"github.com/BaSui01/agentmesh/coordinator"
	"github.com/BaSui01/agentmesh/internal/metrics"
	"github.com/BaSui01/agentmesh/registry"
)

// Mesh is the assembled resilience core. It is safe for concurrent use.
type Mesh struct {
	logger      *zap.Logger
	registry    *registry.Registry
	breakers    *breaker.Registry
	collector   *metrics.Collector
	coordinator *coordinator.Coordinator
}

type options struct {
	logger      *zap.Logger
	registerer  prometheus.Registerer
	coordinator []coordinator.Option
}

// Option configures the mesh assembly.
type Option func(*options)

// WithLogger overrides the logger built from config.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegisterer sets the Prometheus registerer for the metrics collector.
// Defaults to prometheus.DefaultRegisterer.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *options) { o.registerer = r }
}

// WithCoordinatorOptions appends extra coordinator options, for tuning the
// assembly can't express, such as per-agent rate limits.
func WithCoordinatorOptions(opts ...coordinator.Option) Option {
	return func(o *options) { o.coordinator = append(o.coordinator, opts...) }
}

// New builds a mesh from configuration. The invoker carries the transport to
// agent endpoints; the mesh owns everything else.
func New(cfg *config.Config, invoker coordinator.AgentInvoker, opts ...Option) (*Mesh, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if invoker == nil {
		return nil, fmt.Errorf("agentmesh: invoker is required")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = newLogger(cfg.Log)
		if err != nil {
			return nil, fmt.Errorf("agentmesh: build logger: %w", err)
		}
	}

	registerer := o.registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	collector := metrics.NewCollector("agentmesh", registerer, logger)

	reg := registry.New(logger)
	for _, a := range cfg.Agents {
		caps := registry.NewCapabilitySet()
		for _, s := range a.Capabilities {
			c, err := registry.ParseCapability(s)
			if err != nil {
				return nil, fmt.Errorf("agentmesh: agent %s: %w", a.ID, err)
			}
			caps[c] = struct{}{}
		}
		reg.Register(registry.AgentDescriptor{
			ID:           a.ID,
			Endpoint:     a.Endpoint,
			Capabilities: caps,
			Priority:     a.Priority,
			Enabled:      !a.Disabled,
			Metadata:     a.Metadata,
		})
	}

	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold:  cfg.Breaker.FailureThreshold,
		RecoveryTimeout:   cfg.Breaker.RecoveryTimeout,
		SuccessThreshold:  cfg.Breaker.SuccessThreshold,
		RequestTimeout:    cfg.Breaker.RequestTimeout,
		HalfOpenMaxProbes: cfg.Breaker.HalfOpenMaxProbes,
	}, collector, logger)

	coordOpts := []coordinator.Option{
		coordinator.WithMetrics(collector),
		coordinator.WithMaxConcurrency(cfg.Coordinator.MaxConcurrency),
		coordinator.WithWorkflowTimeout(cfg.Coordinator.WorkflowTimeout),
	}
	coordOpts = append(coordOpts, o.coordinator...)

	return &Mesh{
		logger:      logger,
		registry:    reg,
		breakers:    breakers,
		collector:   collector,
		coordinator: coordinator.New(reg, breakers, invoker, logger, coordOpts...),
	}, nil
}

// newLogger builds a zap logger from the log configuration.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Registry exposes the agent registry for runtime registration changes.
func (m *Mesh) Registry() *registry.Registry { return m.registry }

// Breakers exposes the circuit breaker registry.
func (m *Mesh) Breakers() *breaker.Registry { return m.breakers }

// Coordinator exposes the workflow coordinator.
func (m *Mesh) Coordinator() *coordinator.Coordinator { return m.coordinator }

// Logger returns the mesh logger.
func (m *Mesh) Logger() *zap.Logger { return m.logger }

// ExecuteWorkflow runs a task set under the given strategy.
func (m *Mesh) ExecuteWorkflow(ctx context.Context, tasks []*coordinator.AgentTask, strategy coordinator.Strategy) (*coordinator.WorkflowResult, error) {
	return m.coordinator.ExecuteWorkflow(ctx, tasks, strategy)
}

// ExecuteSequential runs tasks one at a time in input order.
func (m *Mesh) ExecuteSequential(ctx context.Context, tasks []*coordinator.AgentTask) (*coordinator.WorkflowResult, error) {
	return m.coordinator.ExecuteSequential(ctx, tasks)
}

// ExecuteParallel runs tasks with dependency-driven concurrency.
func (m *Mesh) ExecuteParallel(ctx context.Context, tasks []*coordinator.AgentTask) (*coordinator.WorkflowResult, error) {
	return m.coordinator.ExecuteParallel(ctx, tasks)
}

// ExecuteConditional runs the single task selected by the router.
func (m *Mesh) ExecuteConditional(ctx context.Context, tasks []*coordinator.AgentTask, router coordinator.RouterFunc) (*coordinator.WorkflowResult, error) {
	return m.coordinator.ExecuteConditional(ctx, tasks, router)
}

// BreakerStates reports every breaker's current snapshot.
func (m *Mesh) BreakerStates() map[string]breaker.Snapshot {
	return m.breakers.Snapshots()
}

// ResetBreakers forces every breaker back to closed.
func (m *Mesh) ResetBreakers() {
	m.breakers.ResetAll()
}
