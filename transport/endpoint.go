package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/notewire/notewire/jsonrpc"
)

// sessionHeader carries the transport session id on adapter replies.
const sessionHeader = "Mcp-Session-Id"

const maxBodyBytes = 4 << 20

// Endpoint bridges one HTTP POST route to the transport's inbound hook:
// one envelope per body, answered synchronously with an acknowledgement
// or an internal-error envelope. It is a request/acknowledge bridge only;
// correlation lives entirely in Transport.
type Endpoint struct {
	rpc *Transport
	log *slog.Logger
}

func NewEndpoint(rpc *Transport, log *slog.Logger) *Endpoint {
	if log == nil {
		log = slog.Default()
	}
	return &Endpoint{rpc: rpc, log: log}
}

func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeEnvelope(w, http.StatusMethodNotAllowed, jsonrpc.NewErrorResponse(nil, &jsonrpc.ErrorObject{
			Code:    jsonrpc.CodeInvalidRequest,
			Message: "POST required",
		}))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		e.fail(w, fmt.Errorf("read body: %w", err))
		return
	}

	var msg jsonrpc.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		e.fail(w, fmt.Errorf("parse envelope: %w", err))
		return
	}
	if err := msg.Validate(); err != nil {
		e.fail(w, fmt.Errorf("invalid envelope: %w", err))
		return
	}

	if err := e.rpc.HandleMessage(r.Context(), &msg); err != nil {
		e.fail(w, err)
		return
	}

	w.Header().Set(sessionHeader, e.rpc.SessionID())
	writeEnvelope(w, http.StatusOK, jsonrpc.NewAck())
}

func (e *Endpoint) fail(w http.ResponseWriter, err error) {
	e.log.Warn("inbound envelope rejected", slog.String("error", err.Error()))
	writeEnvelope(w, http.StatusInternalServerError, jsonrpc.NewInternalError(err.Error()))
}

func writeEnvelope(w http.ResponseWriter, status int, msg *jsonrpc.Message) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(msg)
}
