package breaker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentmesh/types"
)

var errBoom = types.NewTransient("test", "boom")

func succeed(ctx context.Context) (types.Payload, error) {
	return types.Payload{"ok": true}, nil
}

func fail(ctx context.Context) (types.Payload, error) {
	return nil, errBoom
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5, cfg.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.RecoveryTimeout)
	assert.Equal(t, 2, cfg.SuccessThreshold)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestNew_ZeroConfigCorrected(t *testing.T) {
	cb := New("a", Config{}, zap.NewNop())
	assert.Equal(t, 5, cb.config.FailureThreshold)
	assert.Equal(t, 30*time.Second, cb.config.RecoveryTimeout)
	assert.Equal(t, 2, cb.config.SuccessThreshold)
	assert.Equal(t, 2, cb.config.HalfOpenMaxProbes)
	assert.Equal(t, StateClosed, cb.State())
}

// ---------------------------------------------------------------------------
// State.String()
// ---------------------------------------------------------------------------

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}

// ---------------------------------------------------------------------------
// Closed -> Open (failure threshold)
// ---------------------------------------------------------------------------

func TestBreaker_ClosedToOpen(t *testing.T) {
	cb := New("payments", Config{
		FailureThreshold: 3,
		RecoveryTimeout:  time.Hour,
	}, zap.NewNop())

	ctx := context.Background()

	// Two failures: still closed.
	for i := 0; i < 2; i++ {
		_, err := cb.Call(ctx, nil, fail)
		require.Error(t, err)
		assert.Equal(t, StateClosed, cb.State())
	}

	// A success resets the consecutive count.
	_, err := cb.Call(ctx, nil, succeed)
	require.NoError(t, err)
	assert.Equal(t, 0, cb.Snapshot().ConsecutiveFailures)

	// Three consecutive failures open the circuit.
	for i := 0; i < 3; i++ {
		_, err = cb.Call(ctx, nil, fail)
		require.Error(t, err)
	}
	assert.Equal(t, StateOpen, cb.State())

	// Counters are zeroed on the transition.
	assert.Equal(t, 0, cb.Snapshot().ConsecutiveFailures)
}

func TestBreaker_OpenRejectsWithoutInvoking(t *testing.T) {
	cb := New("payments", Config{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Hour,
	}, zap.NewNop())

	ctx := context.Background()
	_, err := cb.Call(ctx, nil, fail)
	require.Error(t, err)
	require.Equal(t, StateOpen, cb.State())

	var invocations atomic.Int64
	for i := 0; i < 5; i++ {
		_, err = cb.Call(ctx, nil, func(ctx context.Context) (types.Payload, error) {
			invocations.Add(1)
			return nil, nil
		})
		require.Error(t, err)
		assert.Equal(t, types.ErrCircuitOpen, types.GetErrorCode(err))
	}
	assert.Equal(t, int64(0), invocations.Load())
}

// ---------------------------------------------------------------------------
// Open -> HalfOpen -> Closed (recovery)
// ---------------------------------------------------------------------------

func TestBreaker_Recovery(t *testing.T) {
	cb := New("payments", Config{
		FailureThreshold: 1,
		RecoveryTimeout:  30 * time.Millisecond,
		SuccessThreshold: 2,
	}, zap.NewNop())

	ctx := context.Background()
	_, err := cb.Call(ctx, nil, fail)
	require.Error(t, err)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(40 * time.Millisecond)

	// First call after the recovery timeout is allowed through.
	_, err = cb.Call(ctx, nil, succeed)
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.Equal(t, 1, cb.Snapshot().ConsecutiveSuccesses)

	// Second consecutive success closes the circuit and zeroes counters.
	_, err = cb.Call(ctx, nil, succeed)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
	snap := cb.Snapshot()
	assert.Equal(t, 0, snap.ConsecutiveFailures)
	assert.Equal(t, 0, snap.ConsecutiveSuccesses)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := New("payments", Config{
		FailureThreshold: 1,
		RecoveryTimeout:  20 * time.Millisecond,
		SuccessThreshold: 2,
	}, zap.NewNop())

	ctx := context.Background()
	_, err := cb.Call(ctx, nil, fail)
	require.Error(t, err)

	time.Sleep(30 * time.Millisecond)

	// Probe succeeds once, then fails: straight back to open.
	_, err = cb.Call(ctx, nil, succeed)
	require.NoError(t, err)
	require.Equal(t, StateHalfOpen, cb.State())

	_, err = cb.Call(ctx, nil, fail)
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())

	// The open timer restarted; an immediate call is rejected again.
	_, err = cb.Call(ctx, nil, succeed)
	require.Error(t, err)
	assert.Equal(t, types.ErrCircuitOpen, types.GetErrorCode(err))
}

func TestBreaker_HalfOpenProbeLimit(t *testing.T) {
	cb := New("payments", Config{
		FailureThreshold:  1,
		RecoveryTimeout:   10 * time.Millisecond,
		SuccessThreshold:  3,
		HalfOpenMaxProbes: 1,
	}, zap.NewNop())

	ctx := context.Background()
	_, err := cb.Call(ctx, nil, fail)
	require.Error(t, err)
	time.Sleep(20 * time.Millisecond)

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = cb.Call(ctx, nil, func(ctx context.Context) (types.Payload, error) {
			close(started)
			<-release
			return nil, nil
		})
	}()
	<-started

	// A second call while the only probe slot is busy is rejected.
	_, err = cb.Call(ctx, nil, succeed)
	require.Error(t, err)
	assert.Equal(t, types.ErrCircuitOpen, types.GetErrorCode(err))
	close(release)
}

// ---------------------------------------------------------------------------
// Timeout
// ---------------------------------------------------------------------------

func TestBreaker_CallTimeout(t *testing.T) {
	cb := New("payments", Config{
		FailureThreshold: 2,
		RecoveryTimeout:  time.Hour,
		RequestTimeout:   20 * time.Millisecond,
	}, zap.NewNop())

	ctx := context.Background()
	slow := func(ctx context.Context) (types.Payload, error) {
		select {
		case <-time.After(time.Second):
			return types.Payload{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	_, err := cb.Call(ctx, nil, slow)
	require.Error(t, err)
	assert.Equal(t, types.ErrCallTimeout, types.GetErrorCode(err))

	// Timeouts count as failures toward the threshold.
	assert.Equal(t, 1, cb.Snapshot().ConsecutiveFailures)

	_, err = cb.Call(ctx, nil, slow)
	require.Error(t, err)
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreaker_ExplicitTimeoutOverride(t *testing.T) {
	cb := New("payments", Config{
		FailureThreshold: 5,
		RequestTimeout:   time.Hour,
	}, zap.NewNop())

	_, err := cb.CallWithTimeout(context.Background(), nil, 10*time.Millisecond,
		func(ctx context.Context) (types.Payload, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
	require.Error(t, err)
	assert.Equal(t, types.ErrCallTimeout, types.GetErrorCode(err))
}

// ---------------------------------------------------------------------------
// Fallback
// ---------------------------------------------------------------------------

func TestBreaker_FallbackOnOpen(t *testing.T) {
	cb := New("payments", Config{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Hour,
	}, zap.NewNop(), WithFallback(func(ctx context.Context, payload types.Payload) (types.Payload, error) {
		return types.Payload{"source": "fallback", "echo": payload["q"]}, nil
	}))

	ctx := context.Background()
	_, err := cb.Call(ctx, nil, fail)
	require.Error(t, err)
	require.Equal(t, StateOpen, cb.State())

	out, err := cb.Call(ctx, types.Payload{"q": "hello"}, succeed)
	require.NoError(t, err)
	assert.Equal(t, "fallback", out["source"])
	assert.Equal(t, "hello", out["echo"])

	// Fallback results never touch the counters.
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, 0, cb.Snapshot().ConsecutiveFailures)
}

// ---------------------------------------------------------------------------
// Events / Reset
// ---------------------------------------------------------------------------

type recordingHandler struct {
	mu     sync.Mutex
	events []Event
}

func (h *recordingHandler) OnStateChange(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *recordingHandler) snapshot() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.events...)
}

func TestBreaker_Events(t *testing.T) {
	h := &recordingHandler{}
	cb := New("payments", Config{
		FailureThreshold: 1,
		RecoveryTimeout:  10 * time.Millisecond,
		SuccessThreshold: 1,
	}, zap.NewNop(), WithEventHandler(h))

	ctx := context.Background()
	_, _ = cb.Call(ctx, nil, fail)
	time.Sleep(20 * time.Millisecond)
	_, _ = cb.Call(ctx, nil, succeed)

	require.Eventually(t, func() bool {
		return len(h.snapshot()) == 3
	}, time.Second, 5*time.Millisecond)

	events := h.snapshot()
	assert.Equal(t, StateOpen, events[0].NewState)
	assert.Equal(t, StateHalfOpen, events[1].NewState)
	assert.Equal(t, StateClosed, events[2].NewState)
	for _, e := range events {
		assert.Equal(t, "payments", e.Name)
	}
}

func TestBreaker_Reset(t *testing.T) {
	cb := New("payments", Config{FailureThreshold: 1, RecoveryTimeout: time.Hour}, zap.NewNop())

	_, err := cb.Call(context.Background(), nil, fail)
	require.Error(t, err)
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())

	out, err := cb.Call(context.Background(), nil, succeed)
	require.NoError(t, err)
	assert.Equal(t, true, out["ok"])
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestBreaker_ConcurrentCalls(t *testing.T) {
	cb := New("payments", Config{
		FailureThreshold: 1000,
		RequestTimeout:   time.Second,
	}, zap.NewNop())

	var wg sync.WaitGroup
	var succeeded atomic.Int64
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if i%2 == 0 {
					if _, err := cb.Call(context.Background(), nil, succeed); err == nil {
						succeeded.Add(1)
					}
				} else {
					_, _ = cb.Call(context.Background(), nil, fail)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(16*50), succeeded.Load())
	assert.Equal(t, StateClosed, cb.State())
}
