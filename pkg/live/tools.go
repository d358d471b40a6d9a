package live

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Abhi001vj/InterviewBuddy.AI/pkg/live/protocol"
)

// ToolHandler executes one host-side tool invocation and returns its result
// payload. A returned error becomes an error-shaped result for that call;
// it never fails the batch.
type ToolHandler func(ctx context.Context, call protocol.ToolCall) (json.RawMessage, error)

// ToolBridge routes remote tool-call batches to registered host handlers.
// Every call in a batch produces exactly one result, keyed by the call id,
// so the remote agent can always resume.
type ToolBridge struct {
	handlers map[string]ToolHandler
	logger   *slog.Logger
}

// NewToolBridge creates a bridge with the given handler table. Tools not in
// the table are acknowledged with an empty confirmation.
func NewToolBridge(handlers map[string]ToolHandler, logger *slog.Logger) *ToolBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolBridge{handlers: handlers, logger: logger}
}

// Dispatch executes every call in the batch and returns one result per call,
// in batch order. Succeeded is false if any call errored.
func (b *ToolBridge) Dispatch(ctx context.Context, calls []protocol.ToolCall) (results []protocol.ClientToolResult, succeeded bool) {
	results = make([]protocol.ClientToolResult, 0, len(calls))
	succeeded = true

	for _, call := range calls {
		handler := b.handlers[call.Name]
		if handler == nil {
			// Unknown tool: confirm receipt so the agent is not left
			// waiting on a call the host cannot serve.
			b.logger.Debug("no handler for tool, acknowledging", "tool", call.Name, "id", call.ID)
			results = append(results, protocol.ClientToolResult{
				Type:   "tool_result",
				ID:     call.ID,
				Result: json.RawMessage(`{}`),
			})
			continue
		}

		payload, err := handler(ctx, call)
		if err != nil {
			b.logger.Warn("tool handler failed", "tool", call.Name, "id", call.ID, "err", err)
			succeeded = false
			results = append(results, protocol.ClientToolResult{
				Type:    "tool_result",
				ID:      call.ID,
				IsError: true,
				Message: err.Error(),
			})
			continue
		}
		if payload == nil {
			payload = json.RawMessage(`{}`)
		}
		results = append(results, protocol.ClientToolResult{
			Type:   "tool_result",
			ID:     call.ID,
			Result: payload,
		})
	}
	return results, succeeded
}
