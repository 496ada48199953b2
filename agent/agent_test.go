package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nextgen-mcp/tools"
)

type recordingInvoker struct {
	mu       sync.Mutex
	registry *tools.Registry
	calls    []string
	args     []map[string]any
}

func (r *recordingInvoker) Invoke(_ context.Context, name string, args map[string]any) tools.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	r.args = append(r.args, args)
	return tools.Result{Text: "STATUS: completed\nWorkflow ID: abc123"}
}

func (r *recordingInvoker) Registry() *tools.Registry {
	return r.registry
}

type namedTool struct{ name string }

func (n namedTool) Name() string { return n.name }

func (n namedTool) Description() string { return n.name }

func (n namedTool) Parameters() map[string]any { return map[string]any{"type": "object"} }

func (n namedTool) Execute(context.Context, map[string]any) (string, error) { return "", nil }

func newInvoker() *recordingInvoker {
	registry := tools.NewRegistry()
	registry.Register(namedTool{name: "check"})
	return &recordingInvoker{registry: registry}
}

// ollamaStub replies with the given messages in order.
func ollamaStub(t *testing.T, replies ...Message) *httptest.Server {
	t.Helper()

	var mu sync.Mutex
	idx := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "system", req.Messages[0].Role)

		mu.Lock()
		reply := replies[idx]
		if idx < len(replies)-1 {
			idx++
		}
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(chatResponse{Message: reply})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestChat_ExecutesToolCalls(t *testing.T) {
	t.Parallel()

	server := ollamaStub(t,
		Message{Role: "assistant", ToolCalls: []ToolCall{{
			ID:       "call-1",
			Type:     "function",
			Function: FunctionCall{Name: "check", Arguments: json.RawMessage(`{"text":"The cat sits."}`)},
		}}},
		Message{Role: "assistant", Content: "Your text scored well."},
	)
	invoker := newInvoker()
	a := New("test-model", server.URL, invoker, nil)

	reply, err := a.Chat(context.Background(), "How good is: The cat sits.")

	require.NoError(t, err)
	assert.Equal(t, "Your text scored well.", reply)
	assert.Equal(t, []string{"check"}, invoker.calls)
	assert.Equal(t, "The cat sits.", invoker.args[0]["text"])
}

func TestChat_StringEncodedArguments(t *testing.T) {
	t.Parallel()

	server := ollamaStub(t,
		Message{Role: "assistant", ToolCalls: []ToolCall{{
			Function: FunctionCall{Name: "check", Arguments: json.RawMessage(`"{\"text\":\"hi\"}"`)},
		}}},
		Message{Role: "assistant", Content: "done"},
	)
	invoker := newInvoker()

	_, err := New("test-model", server.URL, invoker, nil).Chat(context.Background(), "check hi")

	require.NoError(t, err)
	require.Len(t, invoker.args, 1)
	assert.Equal(t, "hi", invoker.args[0]["text"])
}

func TestChat_XMLToolCall(t *testing.T) {
	t.Parallel()

	server := ollamaStub(t,
		Message{Role: "assistant", Content: "<function=check><parameter=text>The cat sits.</parameter></function>"},
		Message{Role: "assistant", Content: "Looks fine."},
	)
	invoker := newInvoker()

	reply, err := New("test-model", server.URL, invoker, nil).Chat(context.Background(), "check it")

	require.NoError(t, err)
	assert.Equal(t, "Looks fine.", reply)
	assert.Equal(t, []string{"check"}, invoker.calls)
}

func TestChat_StopsAfterMaxToolCalls(t *testing.T) {
	t.Parallel()

	server := ollamaStub(t, Message{Role: "assistant", ToolCalls: []ToolCall{{
		Function: FunctionCall{Name: "check", Arguments: json.RawMessage(`{"text":"x"}`)},
	}}})
	invoker := newInvoker()

	_, err := New("test-model", server.URL, invoker, nil).Chat(context.Background(), "loop")

	assert.Error(t, err)
	assert.Len(t, invoker.calls, maxToolCalls)
}

func TestChat_OllamaError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	_, err := New("test-model", server.URL, newInvoker(), nil).Chat(context.Background(), "hi")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestParseXMLToolCall(t *testing.T) {
	t.Parallel()

	name, args, ok := parseXMLToolCall("<function=rewrite>\n<parameter=text>\nHello there\n</parameter>\n<parameter=tone>casual</parameter>\n</function>")
	require.True(t, ok)
	assert.Equal(t, "rewrite", name)
	assert.Equal(t, map[string]any{"text": "Hello there", "tone": "casual"}, args)

	_, _, ok = parseXMLToolCall("plain answer")
	assert.False(t, ok)
}

func TestCleanResponse(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Here you go.", cleanResponse("Here you go. <function=check>"))
	assert.Contains(t, cleanResponse("<function=check>"), "encountered an issue")
	assert.Equal(t, "All good.", cleanResponse("All good."))
}
