// Package engine is the protocol layer above the correlated transport.
// It routes inbound methods to handlers and drives outbound calls end to
// end: arm the wait on the transport, hand the bytes to the peer client,
// block on the settled reply.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/notewire/notewire/jsonrpc"
	"github.com/notewire/notewire/transport"
)

// HandlerFunc serves one method. A non-nil error object becomes the error
// member of the response envelope.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, *jsonrpc.ErrorObject)

// Sender delivers one envelope to the remote peer.
type Sender interface {
	Post(ctx context.Context, msg *jsonrpc.Message) error
}

type Engine struct {
	rpc  *transport.Transport
	peer Sender
	log  *slog.Logger

	mu     sync.RWMutex
	routes map[string]HandlerFunc
}

func New(rpc *transport.Transport, peer Sender, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		rpc:    rpc,
		peer:   peer,
		log:    log,
		routes: make(map[string]HandlerFunc),
	}
	rpc.SetMessageHandler(e.handleMessage)
	return e
}

// Handle registers the handler for a method.
func (e *Engine) Handle(method string, fn HandlerFunc) {
	e.mu.Lock()
	e.routes[method] = fn
	e.mu.Unlock()
}

func (e *Engine) handleMessage(ctx context.Context, msg *jsonrpc.Message) error {
	e.mu.RLock()
	fn, ok := e.routes[msg.Method]
	e.mu.RUnlock()

	if msg.IsNotification() {
		if !ok {
			e.log.Debug("unknown notification", slog.String("method", msg.Method))
			return nil
		}
		// Notifications are never answered; the result is discarded.
		fn(ctx, msg.Params)
		return nil
	}

	var resp *jsonrpc.Message
	switch {
	case !ok:
		resp = jsonrpc.NewErrorResponse(msg.ID, &jsonrpc.ErrorObject{
			Code:    jsonrpc.CodeMethodNotFound,
			Message: "method not found: " + msg.Method,
		})
	default:
		result, rpcErr := fn(ctx, msg.Params)
		if rpcErr != nil {
			resp = jsonrpc.NewErrorResponse(msg.ID, rpcErr)
		} else {
			r, err := jsonrpc.NewResponse(msg.ID, result)
			if err != nil {
				return fmt.Errorf("encode result for %s: %w", msg.Method, err)
			}
			resp = r
		}
	}
	return e.respond(ctx, msg.ID, resp)
}

// respond delivers the response for an inbound request through the
// transport's consumer hop, so answers to requests nobody asked are
// dropped there rather than leaking to the peer.
func (e *Engine) respond(ctx context.Context, id json.RawMessage, resp *jsonrpc.Message) error {
	if e.peer == nil {
		e.log.Warn("no peer configured, dropping response", slog.String("id", string(id)))
		return nil
	}

	var deliverErr error
	if err := e.rpc.RegisterConsumer(id, func(m *jsonrpc.Message) {
		deliverErr = e.peer.Post(ctx, m)
	}); err != nil {
		return err
	}
	if _, err := e.rpc.Send(resp, transport.SendOptions{}); err != nil {
		return err
	}
	if deliverErr != nil {
		return fmt.Errorf("deliver response %s: %w", string(id), deliverErr)
	}
	return nil
}

// Call issues a correlated request to the peer and waits for the reply,
// the timeout, or ctx, whichever settles first.
func (e *Engine) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if e.peer == nil {
		return nil, errors.New("engine: no peer configured")
	}

	req, err := jsonrpc.NewRequest(uuid.NewString(), method, params)
	if err != nil {
		return nil, err
	}

	replies, err := e.rpc.Send(req, transport.SendOptions{AwaitReply: true})
	if err != nil {
		return nil, err
	}
	if err := e.peer.Post(ctx, req); err != nil {
		// The armed wait expires by timeout; the id is burned either way.
		return nil, err
	}

	select {
	case rep := <-replies:
		if rep.Err != nil {
			return nil, rep.Err
		}
		return rep.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notify sends a fire-and-forget notification to the peer.
func (e *Engine) Notify(ctx context.Context, method string, params any) error {
	if e.peer == nil {
		return errors.New("engine: no peer configured")
	}

	msg, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return err
	}
	if _, err := e.rpc.Send(msg, transport.SendOptions{}); err != nil {
		return err
	}
	return e.peer.Post(ctx, msg)
}
