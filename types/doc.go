// Copyright (c) AgentMesh Authors.
// Licensed under the MIT License.

// Package types defines the shared data types and the structured error
// model used across the agentmesh core: error codes, the Error type with
// retryability metadata, and the opaque Payload passed between tasks.
package types
