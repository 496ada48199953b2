package rpc

import (
	"context"
	"encoding/json"
	"strings"

	"nextgen-mcp/tools"
)

const ProtocolVersion = "2024-11-05"

// ServerInfo identifies this server in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type toolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type textContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callResult struct {
	Content           []textContent    `json:"content"`
	IsError           bool             `json:"isError"`
	StructuredContent *tools.ErrorInfo `json:"structuredContent,omitempty"`
}

// RegisterTools exposes the gateway through the tool protocol methods
// initialize, tools/list, tools/call and ping.
func RegisterTools(s *Server, gateway *tools.Gateway, info ServerInfo) {
	s.Register("initialize", func(_ context.Context, _ json.RawMessage) (any, *Error) {
		return map[string]any{
			"protocolVersion": ProtocolVersion,
			"serverInfo":      info,
			"capabilities": map[string]any{
				"tools": map[string]any{"listChanged": false},
			},
		}, nil
	})

	s.Register("ping", func(_ context.Context, _ json.RawMessage) (any, *Error) {
		return map[string]any{}, nil
	})

	s.Register("tools/list", func(_ context.Context, _ json.RawMessage) (any, *Error) {
		all := gateway.Tools()
		list := make([]toolDescriptor, 0, len(all))
		for _, tool := range all {
			list = append(list, toolDescriptor{
				Name:        tool.Name(),
				Description: tool.Description(),
				InputSchema: tool.Parameters(),
			})
		}
		return map[string]any{"tools": list}, nil
	})

	s.Register("tools/call", func(ctx context.Context, params json.RawMessage) (any, *Error) {
		var p callParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &Error{Code: CodeInvalidParams, Message: "invalid params: " + err.Error()}
		}
		if strings.TrimSpace(p.Name) == "" {
			return nil, &Error{Code: CodeInvalidParams, Message: "invalid params: name is required"}
		}
		if p.Arguments == nil {
			p.Arguments = map[string]any{}
		}

		res := gateway.Invoke(ctx, p.Name, p.Arguments)
		return callResult{
			Content:           []textContent{{Type: "text", Text: res.Text}},
			IsError:           res.Error != nil,
			StructuredContent: res.Error,
		}, nil
	})
}
