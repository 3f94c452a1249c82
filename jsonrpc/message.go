// Package jsonrpc defines the wire envelope exchanged over the notewire
// transport: JSON-RPC 2.0 shaped requests, responses and notifications.
//
// Payloads (params, result, error data) stay opaque json.RawMessage values
// end to end; the transport only ever looks at envelope shape and the
// correlation id.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the protocol version stamped on every envelope.
const Version = "2.0"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

var null = json.RawMessage("null")

// Message is the single envelope shape covering all three message kinds.
// A request carries method and a non-null id, a notification carries
// method and no id, a response carries exactly one of result/error and an
// id that is null only for protocol-level errors with no identifiable
// origin.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is the JSON-RPC error member of a response envelope.
type ErrorObject struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ErrorObject) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// HasID reports whether the envelope carries a usable (non-null)
// correlation id.
func (m *Message) HasID() bool {
	return len(m.ID) > 0 && !bytes.Equal(m.ID, null)
}

// IsRequest reports a method call expecting an answer.
func (m *Message) IsRequest() bool {
	return m.Method != "" && m.HasID()
}

// IsNotification reports a method call that is never answered.
func (m *Message) IsNotification() bool {
	return m.Method != "" && !m.HasID()
}

// IsResponse reports an answer to an earlier request.
func (m *Message) IsResponse() bool {
	return m.Method == "" && (m.Result != nil || m.Error != nil)
}

// Validate checks envelope shape only; payload contents are never
// inspected.
func (m *Message) Validate() error {
	if m.JSONRPC != Version {
		return fmt.Errorf("unsupported protocol version %q", m.JSONRPC)
	}
	if m.Result != nil && m.Error != nil {
		return errors.New("envelope carries both result and error")
	}
	if m.Method != "" && (m.Result != nil || m.Error != nil) {
		return errors.New("envelope mixes method with result/error")
	}
	if m.Method == "" && m.Result == nil && m.Error == nil {
		return errors.New("envelope is neither request, notification nor response")
	}
	return nil
}

// NewRequest builds a request envelope. The id must encode to a string or
// a number, never null.
func NewRequest(id any, method string, params any) (*Message, error) {
	rawID, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("encode request id: %w", err)
	}
	if bytes.Equal(rawID, null) {
		return nil, errors.New("request id must not be null")
	}
	m := &Message{JSONRPC: Version, ID: rawID, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode params: %w", err)
		}
		m.Params = raw
	}
	return m, nil
}

// NewNotification builds a notification envelope.
func NewNotification(method string, params any) (*Message, error) {
	m := &Message{JSONRPC: Version, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode params: %w", err)
		}
		m.Params = raw
	}
	return m, nil
}

// NewResponse builds a success response for the given request id.
func NewResponse(id json.RawMessage, result any) (*Message, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &Message{JSONRPC: Version, ID: id, Result: raw}, nil
}

// NewErrorResponse builds an error response. A missing id becomes null,
// marking a protocol-level error with no identifiable origin.
func NewErrorResponse(id json.RawMessage, errObj *ErrorObject) *Message {
	if len(id) == 0 {
		id = null
	}
	return &Message{JSONRPC: Version, ID: id, Error: errObj}
}

// NewAck is the minimal acknowledgement envelope the HTTP adapter replies
// with on success.
func NewAck() *Message {
	return &Message{JSONRPC: Version, Result: null}
}

// NewInternalError is the adapter's failure envelope: internal error with
// a null id and the failure detail in data.
func NewInternalError(detail string) *Message {
	errObj := &ErrorObject{Code: CodeInternalError, Message: "Internal server error"}
	if detail != "" {
		raw, err := json.Marshal(detail)
		if err == nil {
			errObj.Data = raw
		}
	}
	return &Message{JSONRPC: Version, ID: null, Error: errObj}
}
