package main

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/notewire/notewire/internal/cite"
	"github.com/notewire/notewire/internal/engine"
	"github.com/notewire/notewire/internal/imagesearch"
	"github.com/notewire/notewire/internal/llm"
	"github.com/notewire/notewire/jsonrpc"
)

func invalidParams(err error) *jsonrpc.ErrorObject {
	return &jsonrpc.ErrorObject{Code: jsonrpc.CodeInvalidParams, Message: err.Error()}
}

func internalError(err error) *jsonrpc.ErrorObject {
	return &jsonrpc.ErrorObject{Code: jsonrpc.CodeInternalError, Message: err.Error()}
}

// registerMethods wires the assistant methods the editor plugin calls.
// Clients whose endpoint is not configured simply don't register theirs.
func registerMethods(eng *engine.Engine, cfg appConfig, log *slog.Logger) {
	eng.Handle("ping", func(_ context.Context, _ json.RawMessage) (any, *jsonrpc.ErrorObject) {
		return map[string]string{"status": "ok"}, nil
	})

	eng.Handle("cite.rewrite", func(_ context.Context, params json.RawMessage) (any, *jsonrpc.ErrorObject) {
		var p struct {
			Markdown string            `json:"markdown"`
			Mapping  map[string]string `json:"mapping"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, invalidParams(err)
		}
		return map[string]any{
			"markdown": cite.Rewrite(p.Markdown, p.Mapping),
			"keys":     cite.Keys(p.Markdown),
		}, nil
	})

	if cfg.ImageAPIURL != "" {
		images := imagesearch.NewClient(cfg.ImageAPIURL, cfg.ImageAPIKey, log)
		eng.Handle("images.search", func(ctx context.Context, params json.RawMessage) (any, *jsonrpc.ErrorObject) {
			var p struct {
				Query string `json:"query"`
				Limit int    `json:"limit"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams(err)
			}
			hits, err := images.Search(ctx, p.Query, p.Limit)
			if err != nil {
				return nil, internalError(err)
			}
			return map[string]any{"images": hits}, nil
		})
	}

	if cfg.LLMURL != "" {
		model := llm.NewClient(cfg.LLMURL, log)
		eng.Handle("llm.complete", func(ctx context.Context, params json.RawMessage) (any, *jsonrpc.ErrorObject) {
			var p struct {
				Prompt string `json:"prompt"`
			}
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, invalidParams(err)
			}
			content, err := model.Complete(ctx, p.Prompt)
			if err != nil {
				return nil, internalError(err)
			}
			return map[string]string{"content": content}, nil
		})
	}
}
