// Package agent provides the agentic loop that connects the LLM to the
// analysis tools.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"nextgen-mcp/logging"
	"nextgen-mcp/tools"
)

const maxToolCalls = 8

const systemPrompt = `You are a writing assistant with access to text analysis tools.

TOOLS:
- rewrite: Rewrite text to match a style guide, dialect and tone
- check: Score text for quality, clarity, grammar, style guide compliance, tone and terminology
- suggestions: List concrete issues with suggested replacements
- workflow_status: Look up a workflow that timed out earlier

HOW TO CHOOSE:
- "Make this better", "fix this", "rewrite" -> rewrite
- "How good is this", "score this", "check" -> check
- "What should I change", "any issues" -> suggestions
- An earlier call reported WORKFLOW_TIMEOUT with a workflow id -> workflow_status

ARGUMENTS:
- Always pass the user's text verbatim as 'text'
- Only set dialect, tone or style_guide when the user asks for them

CRITICAL:
- Call exactly one analysis tool per request unless the user asks for more
- When you get a report back, STOP and summarize it for the user
- If a tool returns an ERROR, explain it plainly; do not retry validation errors`

// Invoker runs tools by name. *tools.Gateway satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) tools.Result
	Registry() *tools.Registry
}

// Agent handles conversations with the LLM and executes tool calls.
type Agent struct {
	model   string
	url     string
	invoker Invoker
	client  *http.Client
	logger  *slog.Logger
}

// Message represents a chat message in the conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall represents a tool invocation requested by the LLM.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall contains the function name and arguments.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []Message        `json:"messages"`
	Tools    []map[string]any `json:"tools,omitempty"`
	Stream   bool             `json:"stream"`
}

type chatResponse struct {
	Message Message `json:"message"`
}

// New creates a new Agent with the given model, URL, and tool invoker.
func New(model, url string, invoker Invoker, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Agent{
		model:   model,
		url:     url,
		invoker: invoker,
		client: &http.Client{
			Timeout: 120 * time.Second, // LLM responses can be slow
		},
		logger: logger.With("component", "agent"),
	}
}

// Chat sends a message and handles any tool calls in a loop.
// The context is used for cancellation and passed to tool executions.
func (a *Agent) Chat(ctx context.Context, userMessage string) (string, error) {
	messages := []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userMessage},
	}

	for i := 0; i < maxToolCalls; i++ {
		resp, err := a.sendRequest(ctx, messages)
		if err != nil {
			return "", err
		}

		// If no tool calls, check if model output XML-style tool call as text
		if len(resp.Message.ToolCalls) == 0 {
			if toolName, args, ok := parseXMLToolCall(resp.Message.Content); ok {
				if _, exists := a.invoker.Registry().Get(toolName); exists {
					a.logger.Info("agent.parsed_tool_call", "tool", toolName, "args", len(args))
					result := a.invoker.Invoke(ctx, toolName, args)

					messages = append(messages, Message{Role: "assistant", Content: resp.Message.Content})
					messages = append(messages, Message{Role: "tool", Content: result.Text, ToolCallID: "parsed"})
					continue
				}
			}

			return cleanResponse(resp.Message.Content), nil
		}

		messages = append(messages, resp.Message)

		for _, tc := range resp.Message.ToolCalls {
			messages = append(messages, Message{
				Role:       "tool",
				Content:    a.executeTool(ctx, tc),
				ToolCallID: tc.ID,
			})
		}
	}

	return "", fmt.Errorf("exceeded maximum tool calls (%d)", maxToolCalls)
}

func (a *Agent) sendRequest(ctx context.Context, messages []Message) (*chatResponse, error) {
	reqBody := chatRequest{
		Model:    a.model,
		Messages: messages,
		Tools:    a.invoker.Registry().ToOllamaFormat(),
		Stream:   false,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling Ollama: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	a.logger.Debug("agent.response",
		"role", chatResp.Message.Role,
		"content_len", len(chatResp.Message.Content),
		"tool_calls", len(chatResp.Message.ToolCalls),
		"content", logging.Truncate(chatResp.Message.Content, 500),
	)
	for i, tc := range chatResp.Message.ToolCalls {
		a.logger.Debug("agent.tool_call", "index", i, "tool", tc.Function.Name)
	}

	return &chatResp, nil
}

// executeTool always yields text for the model; failures become the
// gateway's error report.
func (a *Agent) executeTool(ctx context.Context, tc ToolCall) string {
	var args map[string]any
	if len(tc.Function.Arguments) > 0 {
		if err := json.Unmarshal(tc.Function.Arguments, &args); err != nil {
			// Some models send the arguments object as a JSON string.
			var encoded string
			if json.Unmarshal(tc.Function.Arguments, &encoded) != nil || json.Unmarshal([]byte(encoded), &args) != nil {
				return fmt.Sprintf("Error: parsing tool arguments: %v", err)
			}
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	return a.invoker.Invoke(ctx, tc.Function.Name, args).Text
}

// parseXMLToolCall attempts to parse XML-style tool calls that some models output as text
// Returns the tool name, arguments map, and whether parsing succeeded
func parseXMLToolCall(content string) (string, map[string]any, bool) {
	// Look for <function=toolname> pattern
	if !strings.Contains(content, "<function=") {
		return "", nil, false
	}

	// Extract tool name
	start := strings.Index(content, "<function=")
	if start == -1 {
		return "", nil, false
	}

	nameStart := start + len("<function=")
	nameEnd := strings.Index(content[nameStart:], ">")
	if nameEnd == -1 {
		return "", nil, false
	}
	toolName := content[nameStart : nameStart+nameEnd]

	// Extract parameters
	args := make(map[string]any)
	paramPattern := "<parameter="
	remaining := content[nameStart+nameEnd:]

	for {
		paramStart := strings.Index(remaining, paramPattern)
		if paramStart == -1 {
			break
		}

		// Get parameter name
		nameStart := paramStart + len(paramPattern)
		nameEnd := strings.Index(remaining[nameStart:], ">")
		if nameEnd == -1 {
			break
		}
		paramName := remaining[nameStart : nameStart+nameEnd]

		// Get parameter value (content until </parameter>)
		valueStart := nameStart + nameEnd + 1
		valueEnd := strings.Index(remaining[valueStart:], "</parameter>")
		if valueEnd == -1 {
			break
		}
		paramValue := strings.TrimSpace(remaining[valueStart : valueStart+valueEnd])

		args[paramName] = paramValue
		remaining = remaining[valueStart+valueEnd+len("</parameter>"):]
	}

	if len(args) == 0 {
		return "", nil, false
	}

	return toolName, args, true
}

// cleanResponse removes any tool call syntax that the model incorrectly included in its text response
func cleanResponse(content string) string {
	// If there's content before the function call, return that
	if idx := strings.Index(content, "<function="); idx > 0 {
		before := strings.TrimSpace(content[:idx])
		if before != "" {
			return before
		}
	}

	// Otherwise indicate the issue
	if strings.Contains(content, "<function=") {
		return "I tried to run an analysis but encountered an issue. Please try rephrasing your request."
	}

	return content
}
