// Copyright (c) AgentMesh Authors.
// Licensed under the MIT License.

/*
Package breaker implements a per-endpoint circuit breaker.

Each breaker wraps one remote agent endpoint and enforces a three-state
admission policy:

  - closed: calls pass through; consecutive failures are counted and reaching
    FailureThreshold opens the circuit.
  - open: calls are rejected immediately without touching the endpoint,
    optionally served by a fallback. After RecoveryTimeout the next call
    attempt moves the breaker to half_open before being allowed through.
  - half_open: a limited number of probe calls are allowed. Any failure
    reopens the circuit; SuccessThreshold consecutive successes close it.

Failure and success counters are reset to zero on every state transition.
A call exceeding its timeout counts as a failure and surfaces CALL_TIMEOUT.
The breaker does not distinguish transient from permanent failures when
counting toward the threshold; both open the circuit.

All state mutations happen under a single per-breaker lock, so the same
breaker may be called concurrently from parallel workflow tasks. Breakers
for a process are held in a Registry whose create-or-fetch is synchronized,
guaranteeing one breaker instance per endpoint.
*/
package breaker
