// Copyright (c) AgentMesh Authors.
// Licensed under the MIT License.

// Package config loads AgentMesh configuration from defaults, an optional
// YAML file, and environment variable overrides, in that order.
package config
