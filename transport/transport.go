// Package transport turns a stateless, one-shot HTTP POST channel into a
// bidirectional, correlated, timeout-bound message exchange for a
// JSON-RPC-style protocol.
//
// Sending a correlated request here arms the wait for its response; it
// transmits no bytes. Delivery of the request to the remote peer is the
// job of the layer above, and responses come back through the inbound
// hook fed by the Endpoint adapter.
package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/notewire/notewire/jsonrpc"
)

// DefaultRequestTimeout bounds a correlated call when SendOptions carries
// no override.
const DefaultRequestTimeout = 30 * time.Second

type state int

const (
	stateCreated state = iota
	stateStarted
	stateClosed
)

// MessageHandler consumes inbound requests and notifications. Responses
// never reach it; they settle their pending call inside the transport.
type MessageHandler func(ctx context.Context, msg *jsonrpc.Message) error

// Reply is the settled outcome of one correlated request: either the
// opaque result payload or the error that ended the wait (remote error
// object, TimeoutError, or ClosedError).
type Reply struct {
	Result json.RawMessage
	Err    error
}

// SendOptions qualifies one Send call.
type SendOptions struct {
	// AwaitReply must be set when a request expects a correlated
	// response. The transport never infers intent from envelope shape,
	// so a request sent without it parks nothing.
	AwaitReply bool

	// Timeout overrides the transport default for this call.
	Timeout time.Duration

	// OnResumptionToken, when set, is invoked immediately with
	// ResumptionToken. Out-of-band side channel; it never touches
	// correlation state.
	OnResumptionToken func(token string)
	ResumptionToken   string
}

type Option func(t *Transport)

func WithRequestTimeout(d time.Duration) Option {
	return func(t *Transport) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// Transport correlates outbound requests with inbound responses. One
// registry per transport; instances are independent and torn down by
// Close.
type Transport struct {
	sessionID string
	timeout   time.Duration
	log       *slog.Logger
	pending   *pendingCalls

	mu        sync.Mutex
	state     state
	handler   MessageHandler
	onClose   func()
	consumers map[string]func(*jsonrpc.Message)
}

func New(log *slog.Logger, opts ...Option) *Transport {
	if log == nil {
		log = slog.Default()
	}
	t := &Transport{
		sessionID: uuid.NewString(),
		timeout:   DefaultRequestTimeout,
		pending:   newPendingCalls(),
		consumers: make(map[string]func(*jsonrpc.Message)),
	}
	t.log = log.With(slog.String("session", t.sessionID))
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SessionID identifies this transport instance for the session header on
// adapter replies.
func (t *Transport) SessionID() string {
	return t.sessionID
}

// SetMessageHandler installs the upper-layer consumer for inbound requests
// and notifications. Set once, before traffic flows.
func (t *Transport) SetMessageHandler(h MessageHandler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

// SetCloseHandler installs the hook invoked exactly once when the
// transport closes.
func (t *Transport) SetCloseHandler(fn func()) {
	t.mu.Lock()
	t.onClose = fn
	t.mu.Unlock()
}

// Start transitions Created to Started. Pure setup; the HTTP route is
// bound by the host mounting the Endpoint.
func (t *Transport) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateCreated {
		return ErrAlreadyStarted
	}
	t.state = stateStarted
	t.log.Debug("transport started")
	return nil
}

// Send processes one outgoing message.
//
// A request with AwaitReply parks a pending call and returns the channel
// its Reply arrives on. A response is delivered to the consumer registered
// for its id, or discarded. Notifications and fire-and-forget requests are
// bookkeeping no-ops. In every case the returned channel is nil unless a
// wait was armed, and no bytes are transmitted here.
func (t *Transport) Send(msg *jsonrpc.Message, opts SendOptions) (<-chan Reply, error) {
	if opts.OnResumptionToken != nil {
		opts.OnResumptionToken(opts.ResumptionToken)
	}

	switch {
	case msg.IsResponse():
		return nil, t.deliverResponse(msg)

	case msg.IsRequest() && opts.AwaitReply:
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = t.timeout
		}
		id := idKey(msg.ID)
		ch := make(chan Reply, 1)
		resolve := func(result json.RawMessage) { ch <- Reply{Result: result} }
		reject := func(err error) { ch <- Reply{Err: err} }

		t.mu.Lock()
		if t.state != stateStarted {
			t.mu.Unlock()
			return nil, ErrNotStarted
		}
		err := t.pending.register(id, resolve, reject, timeout)
		t.mu.Unlock()
		if err != nil {
			return nil, err
		}
		t.log.Debug("armed correlated wait",
			slog.String("id", id),
			slog.String("method", msg.Method),
			slog.Duration("timeout", timeout))
		return ch, nil

	default:
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.state != stateStarted {
			return nil, ErrNotStarted
		}
		return nil, nil
	}
}

// deliverResponse routes an outbound response to the consumer registered
// for its id. A response with no consumer answers a request this side
// never asked and is dropped.
func (t *Transport) deliverResponse(msg *jsonrpc.Message) error {
	t.mu.Lock()
	if t.state != stateStarted {
		t.mu.Unlock()
		return ErrNotStarted
	}
	if !msg.HasID() {
		t.mu.Unlock()
		t.log.Warn("dropping response without correlation id")
		return nil
	}
	id := idKey(msg.ID)
	consumer, ok := t.consumers[id]
	if ok {
		delete(t.consumers, id)
	}
	t.mu.Unlock()

	if !ok {
		t.log.Warn("dropping response with no registered consumer", slog.String("id", id))
		return nil
	}
	consumer(msg)
	return nil
}

// RegisterConsumer routes the eventual outbound response for an inbound
// request id. One consumer per id, consumed on delivery.
func (t *Transport) RegisterConsumer(id json.RawMessage, fn func(*jsonrpc.Message)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateStarted {
		return ErrNotStarted
	}
	t.consumers[idKey(id)] = fn
	return nil
}

// HandleMessage is the inbound hook fed by the Endpoint adapter. Responses
// settle their pending call; requests and notifications go to the message
// handler. An unset handler is reported as an error, never a panic into
// the adapter's call stack.
func (t *Transport) HandleMessage(ctx context.Context, msg *jsonrpc.Message) error {
	t.mu.Lock()
	if t.state != stateStarted {
		t.mu.Unlock()
		return ErrNotStarted
	}
	handler := t.handler
	t.mu.Unlock()

	if msg.IsResponse() {
		if !msg.HasID() {
			// Protocol-level error with no identifiable origin.
			t.log.Warn("inbound error response without id", slog.Any("error", msg.Error))
			return nil
		}
		id := idKey(msg.ID)
		if !t.pending.settle(id, msg.Result, msg.Error) {
			// Late, duplicate, or answering a fire-and-forget send.
			t.log.Debug("no pending call for inbound response", slog.String("id", id))
		}
		return nil
	}

	if handler == nil {
		return ErrHandlerNotSet
	}
	t.log.Debug("dispatching inbound message",
		slog.String("method", msg.Method),
		slog.String("id", string(msg.ID)))
	return handler(ctx, msg)
}

// Close drains every pending call, then fires the close hook. Idempotent;
// calls after the first are no-ops.
func (t *Transport) Close(reason string) {
	t.mu.Lock()
	if t.state == stateClosed {
		t.mu.Unlock()
		return
	}
	t.state = stateClosed
	onClose := t.onClose
	t.consumers = make(map[string]func(*jsonrpc.Message))
	t.mu.Unlock()

	if reason == "" {
		reason = "transport closed"
	}
	t.pending.drain(reason)
	t.log.Debug("transport closed", slog.String("reason", reason))
	if onClose != nil {
		onClose()
	}
}

// idKey keeps the exact JSON bytes of an id, so string and numeric ids
// never collide after normalization.
func idKey(raw json.RawMessage) string {
	return string(raw)
}
