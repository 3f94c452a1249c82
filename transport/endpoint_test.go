package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notewire/notewire/jsonrpc"
)

func postEnvelope(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) *jsonrpc.Message {
	t.Helper()
	var msg jsonrpc.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	return &msg
}

func TestEndpointAcknowledgesNotification(t *testing.T) {
	tr := startedTransport(t)
	tr.SetMessageHandler(func(_ context.Context, _ *jsonrpc.Message) error { return nil })
	ep := NewEndpoint(tr, nil)

	rec := postEnvelope(t, ep, `{"jsonrpc":"2.0","method":"progress","params":{"done":1}}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tr.SessionID(), rec.Header().Get("Mcp-Session-Id"))
	msg := decodeEnvelope(t, rec)
	assert.Equal(t, "null", string(msg.Result))
	assert.Nil(t, msg.Error)
}

func TestEndpointMalformedBody(t *testing.T) {
	// No handler registered yet; a garbage body still gets a clean 500
	// envelope, never a crash.
	tr := startedTransport(t)
	ep := NewEndpoint(tr, nil)

	rec := postEnvelope(t, ep, `{"jsonrpc":`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	msg := decodeEnvelope(t, rec)
	require.NotNil(t, msg.Error)
	assert.Equal(t, jsonrpc.CodeInternalError, msg.Error.Code)
	assert.Equal(t, "null", string(msg.ID))
}

func TestEndpointHandlerNotSet(t *testing.T) {
	tr := startedTransport(t)
	ep := NewEndpoint(tr, nil)

	rec := postEnvelope(t, ep, `{"jsonrpc":"2.0","method":"ping","id":1}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	msg := decodeEnvelope(t, rec)
	require.NotNil(t, msg.Error)
	assert.Equal(t, jsonrpc.CodeInternalError, msg.Error.Code)
	assert.Contains(t, string(msg.Error.Data), "handler not set")
}

func TestEndpointHandlerFailure(t *testing.T) {
	tr := startedTransport(t)
	tr.SetMessageHandler(func(_ context.Context, _ *jsonrpc.Message) error {
		return errors.New("kaboom")
	})
	ep := NewEndpoint(tr, nil)

	rec := postEnvelope(t, ep, `{"jsonrpc":"2.0","method":"ping","id":1}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	msg := decodeEnvelope(t, rec)
	require.NotNil(t, msg.Error)
	assert.Contains(t, string(msg.Error.Data), "kaboom")
}

func TestEndpointRejectsNonPost(t *testing.T) {
	tr := startedTransport(t)
	ep := NewEndpoint(tr, nil)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	ep.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestEndpointSettlesPendingCall(t *testing.T) {
	// Full loop: arm a correlated wait, then feed the response through
	// the HTTP route the way the remote peer would.
	tr := startedTransport(t)
	tr.SetMessageHandler(func(_ context.Context, _ *jsonrpc.Message) error { return nil })
	srv := httptest.NewServer(NewEndpoint(tr, nil))
	defer srv.Close()

	req := mustRequest(t, "r7", "images.search")
	replies, err := tr.Send(req, SendOptions{AwaitReply: true})
	require.NoError(t, err)

	resp, err := http.Post(srv.URL, "application/json",
		bytes.NewBufferString(`{"jsonrpc":"2.0","id":"r7","result":{"hits":2}}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case rep := <-replies:
		require.NoError(t, rep.Err)
		assert.JSONEq(t, `{"hits":2}`, string(rep.Result))
	case <-time.After(2 * time.Second):
		t.Fatal("reply never settled")
	}
}

func TestEndpointConcurrentPosts(t *testing.T) {
	tr := startedTransport(t)
	tr.SetMessageHandler(func(_ context.Context, _ *jsonrpc.Message) error { return nil })
	srv := httptest.NewServer(NewEndpoint(tr, nil))
	defer srv.Close()

	done := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			resp, err := http.Post(srv.URL, "application/json",
				bytes.NewBufferString(`{"jsonrpc":"2.0","method":"progress"}`))
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					err = errors.New("unexpected status")
				}
			}
			done <- err
		}()
	}
	for i := 0; i < 10; i++ {
		require.NoError(t, <-done)
	}
}
