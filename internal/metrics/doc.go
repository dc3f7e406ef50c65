// Copyright (c) AgentMesh Authors.
// Licensed under the MIT License.

// Package metrics collects Prometheus metrics for workflow execution and
// circuit breaker activity. It is internal; external projects observe
// AgentMesh through the registered Prometheus collectors.
package metrics
