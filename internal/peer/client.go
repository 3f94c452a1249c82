// Package peer delivers envelopes to the remote endpoint over one-shot
// HTTP POSTs. The correlated transport itself never touches the network;
// this client is the layer above that does.
package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/notewire/notewire/jsonrpc"
)

type Client struct {
	url  string
	http *http.Client
	log  *slog.Logger
}

func NewClient(url string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		url:  url,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log.With(slog.String("peer", url)),
	}
}

// Post delivers exactly one envelope and checks the synchronous
// acknowledgement. The correlated reply, if any, arrives later through
// the peer's own POST back to us.
func (c *Client) Post(ctx context.Context, msg *jsonrpc.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("deliver envelope: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var ack struct {
			Error *struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&ack); err == nil && ack.Error != nil {
			return fmt.Errorf("peer rejected envelope: %d %s", ack.Error.Code, ack.Error.Message)
		}
		return fmt.Errorf("peer rejected envelope: status %d", resp.StatusCode)
	}

	c.log.Debug("delivered envelope", slog.Int("bytes", len(body)))
	return nil
}
