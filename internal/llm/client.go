// Package llm talks to the local completion endpoint: plain POST/JSON for
// one-shot completions and a streaming-body variant that hands chunks to
// a callback as they arrive.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const streamDone = "[DONE]"

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
		url: url,
		// No overall timeout: streams stay open as long as the model
		// keeps producing. Callers bound the wait with ctx.
		http: &http.Client{},
		log:  log.With(slog.String("llm", url)),
	}
}

type completionRequest struct {
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream,omitempty"`
}

type completionChunk struct {
	Content string `json:"content"`
}

func (c *Client) post(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	body, err := json.Marshal(completionRequest{Prompt: prompt, Stream: stream})
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("completion: status %d", resp.StatusCode)
	}
	return resp, nil
}

// Complete runs one prompt to completion and returns the whole content.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.post(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out completionChunk
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("completion: decode: %w", err)
	}
	c.log.Debug("completion done", slog.Duration("took", time.Since(start)))
	return out.Content, nil
}

// CompleteStream runs one prompt with a streaming body, invoking fn for
// every content chunk. A non-nil error from fn aborts the stream.
func (c *Client) CompleteStream(ctx context.Context, prompt string, fn func(chunk string) error) error {
	resp, err := c.post(ctx, prompt, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == streamDone {
			return nil
		}
		var chunk completionChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return fmt.Errorf("completion stream: decode chunk: %w", err)
		}
		if err := fn(chunk.Content); err != nil {
			return err
		}
	}
	return sc.Err()
}
