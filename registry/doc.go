// Copyright (c) AgentMesh Authors.
// Licensed under the MIT License.

/*
Package registry provides the in-memory agent registry.

The registry holds descriptors of available conversational agents (capability
set, endpoint reference, priority, enabled flag) and resolves which agent
should handle a given capability or free-form intent. Descriptors are loaded
at process start from configuration and mutated only by explicit Enable and
Disable administrative calls.

The descriptor table is read far more often than written; reads take a shared
lock and return copies, so callers never observe concurrent mutation.
*/
package registry
