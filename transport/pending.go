package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/notewire/notewire/jsonrpc"
)

// pendingCall tracks one outstanding correlated request. Entries are owned
// exclusively by their pendingCalls registry and live from register until
// exactly one of: matched response, timeout, drain.
type pendingCall struct {
	id      string
	resolve func(result json.RawMessage)
	reject  func(err error)
	timer   *time.Timer
}

// pendingCalls maps correlation ids to in-flight calls. Every removal goes
// through take, so a firing timeout and a settling response can never both
// believe they own the same entry.
type pendingCalls struct {
	mu    sync.Mutex
	calls map[string]*pendingCall
}

func newPendingCalls() *pendingCalls {
	return &pendingCalls{calls: make(map[string]*pendingCall)}
}

// register parks a call under id and arms its timeout. On expiry the entry
// is removed and rejected with a TimeoutError.
func (p *pendingCalls) register(id string, resolve func(json.RawMessage), reject func(error), timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.calls[id]; ok {
		return &DuplicateIDError{ID: id}
	}

	pc := &pendingCall{id: id, resolve: resolve, reject: reject}
	pc.timer = time.AfterFunc(timeout, func() {
		if expired := p.take(id); expired != nil {
			expired.reject(&TimeoutError{ID: id, Timeout: timeout})
		}
	})
	p.calls[id] = pc
	return nil
}

// take removes and returns the call registered under id, stopping its
// timer. nil means no such call. This is the only removal path.
func (p *pendingCalls) take(id string) *pendingCall {
	p.mu.Lock()
	defer p.mu.Unlock()

	pc, ok := p.calls[id]
	if !ok {
		return nil
	}
	delete(p.calls, id)
	pc.timer.Stop()
	return pc
}

// settle resolves or rejects the call registered under id and reports
// whether one was found. A response with no waiter is not an error; the
// caller logs it and moves on.
func (p *pendingCalls) settle(id string, result json.RawMessage, errObj *jsonrpc.ErrorObject) bool {
	pc := p.take(id)
	if pc == nil {
		return false
	}
	if errObj != nil {
		pc.reject(errObj)
		return true
	}
	pc.resolve(result)
	return true
}

// drain rejects every outstanding call with a ClosedError. The entries are
// snapshotted before any callback runs, so callbacks may register or
// settle freely without corrupting iteration.
func (p *pendingCalls) drain(reason string) {
	p.mu.Lock()
	snapshot := make([]*pendingCall, 0, len(p.calls))
	for _, pc := range p.calls {
		snapshot = append(snapshot, pc)
	}
	p.calls = make(map[string]*pendingCall)
	p.mu.Unlock()

	for _, pc := range snapshot {
		pc.timer.Stop()
		pc.reject(&ClosedError{Reason: reason})
	}
}

func (p *pendingCalls) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
