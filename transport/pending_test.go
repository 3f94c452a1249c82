package transport

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notewire/notewire/jsonrpc"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))

	m.Run()
}

// waiter collects the single settlement of one pending call.
type waiter struct {
	mu     sync.Mutex
	result json.RawMessage
	err    error
	calls  int
	done   chan struct{}
}

func newWaiter() *waiter {
	return &waiter{done: make(chan struct{}, 2)}
}

func (w *waiter) resolve(result json.RawMessage) {
	w.mu.Lock()
	w.result = result
	w.calls++
	w.mu.Unlock()
	w.done <- struct{}{}
}

func (w *waiter) reject(err error) {
	w.mu.Lock()
	w.err = err
	w.calls++
	w.mu.Unlock()
	w.done <- struct{}{}
}

func (w *waiter) wait(t *testing.T) {
	t.Helper()
	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for settlement")
	}
}

func (w *waiter) settledOnce(t *testing.T) {
	t.Helper()
	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Equal(t, 1, w.calls, "pending call settled more than once")
}

func TestPendingSettleMatchesExactID(t *testing.T) {
	p := newPendingCalls()

	a, b := newWaiter(), newWaiter()
	require.NoError(t, p.register("a", a.resolve, a.reject, time.Minute))
	require.NoError(t, p.register("b", b.resolve, b.reject, time.Minute))

	require.True(t, p.settle("b", json.RawMessage(`"second"`), nil))
	b.wait(t)
	assert.Equal(t, `"second"`, string(b.result))
	assert.Zero(t, a.calls)
	assert.Equal(t, 1, p.size())
}

func TestPendingImmediateSettle(t *testing.T) {
	// Register id 7, settle it at once with {ok:true}.
	p := newPendingCalls()
	w := newWaiter()
	require.NoError(t, p.register("7", w.resolve, w.reject, time.Minute))

	require.True(t, p.settle("7", json.RawMessage(`{"ok":true}`), nil))
	w.wait(t)
	require.NoError(t, w.err)
	assert.JSONEq(t, `{"ok":true}`, string(w.result))
	assert.Zero(t, p.size())
}

func TestPendingDuplicateID(t *testing.T) {
	p := newPendingCalls()
	first, second := newWaiter(), newWaiter()
	require.NoError(t, p.register("r1", first.resolve, first.reject, time.Minute))

	err := p.register("r1", second.resolve, second.reject, time.Minute)
	var dup *DuplicateIDError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "r1", dup.ID)

	// The earlier entry must not have been overwritten.
	require.True(t, p.settle("r1", json.RawMessage(`1`), nil))
	first.wait(t)
	assert.Equal(t, `1`, string(first.result))
	assert.Zero(t, second.calls)
}

func TestPendingTimeout(t *testing.T) {
	p := newPendingCalls()
	w := newWaiter()
	require.NoError(t, p.register("r1", w.resolve, w.reject, 50*time.Millisecond))

	time.Sleep(100 * time.Millisecond)
	w.wait(t)

	var timeout *TimeoutError
	require.ErrorAs(t, w.err, &timeout)
	assert.Equal(t, "r1", timeout.ID)
	assert.Equal(t, 50*time.Millisecond, timeout.Timeout)
	assert.Zero(t, p.size())

	// A settle arriving after expiry is a no-op.
	assert.False(t, p.settle("r1", json.RawMessage(`1`), nil))
	w.settledOnce(t)
}

func TestPendingSettleRace(t *testing.T) {
	// Settle just around the timeout window; whichever side wins, the
	// call settles exactly once.
	p := newPendingCalls()
	w := newWaiter()
	require.NoError(t, p.register("race", w.resolve, w.reject, 10*time.Millisecond))

	time.Sleep(10 * time.Millisecond)
	p.settle("race", json.RawMessage(`1`), nil)

	w.wait(t)
	time.Sleep(50 * time.Millisecond)
	w.settledOnce(t)
	assert.Zero(t, p.size())
}

func TestPendingDrain(t *testing.T) {
	p := newPendingCalls()
	a, b := newWaiter(), newWaiter()
	require.NoError(t, p.register("a", a.resolve, a.reject, time.Minute))
	require.NoError(t, p.register("b", b.resolve, b.reject, time.Minute))

	p.drain("shutdown")
	a.wait(t)
	b.wait(t)

	for _, w := range []*waiter{a, b} {
		var closed *ClosedError
		require.ErrorAs(t, w.err, &closed)
		assert.Equal(t, "shutdown", closed.Reason)
	}

	assert.False(t, p.settle("a", json.RawMessage(`1`), nil))
	assert.Zero(t, p.size())
}

func TestPendingDrainReentrant(t *testing.T) {
	// A reject callback that touches the registry mid-drain must not
	// corrupt iteration.
	p := newPendingCalls()
	w := newWaiter()
	require.NoError(t, p.register("outer", func(json.RawMessage) {}, func(error) {
		_ = p.register("inner", w.resolve, w.reject, time.Minute)
	}, time.Minute))

	p.drain("shutdown")

	assert.Equal(t, 1, p.size())
	require.True(t, p.settle("inner", json.RawMessage(`"late"`), nil))
	w.wait(t)
	assert.Equal(t, `"late"`, string(w.result))
}

func TestPendingSettleUnknownID(t *testing.T) {
	p := newPendingCalls()
	assert.False(t, p.settle("ghost", json.RawMessage(`1`), nil))
}

func TestPendingRejectWithErrorObject(t *testing.T) {
	p := newPendingCalls()
	w := newWaiter()
	require.NoError(t, p.register("e", w.resolve, w.reject, time.Minute))

	require.True(t, p.settle("e", nil, &jsonrpc.ErrorObject{Code: -32000, Message: "remote failure"}))
	w.wait(t)

	var errObj *jsonrpc.ErrorObject
	require.ErrorAs(t, w.err, &errObj)
	assert.Equal(t, -32000, errObj.Code)
}
