package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nextgen-mcp/analysis"
	"nextgen-mcp/tools"
)

// serve runs the server over input and returns the responses keyed by id.
func serve(t *testing.T, input string, setup func(*Server)) map[string]Response {
	t.Helper()

	var output bytes.Buffer
	server := NewServer(strings.NewReader(input), &output, nil)
	setup(server)

	require.NoError(t, server.Serve(context.Background()))
	require.NoError(t, server.Wait(context.Background()))

	responses := make(map[string]Response)
	scanner := bufio.NewScanner(&output)
	for scanner.Scan() {
		var resp Response
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		id := string(resp.ID)
		if id == "" {
			id = "null"
		}
		responses[id] = resp
	}
	return responses
}

func TestServer_HandlesRequest(t *testing.T) {
	t.Parallel()

	responses := serve(t, `{"jsonrpc":"2.0","id":1,"method":"Ping"}`+"\n", func(s *Server) {
		s.Register("Ping", func(context.Context, json.RawMessage) (any, *Error) {
			return map[string]any{"pong": true}, nil
		})
	})

	resp, ok := responses["1"]
	require.True(t, ok)
	assert.Nil(t, resp.Error)
	assert.Equal(t, map[string]any{"pong": true}, resp.Result)
}

func TestServer_ProtocolErrors(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`not json`,
		`{"jsonrpc":"1.0","id":2,"method":"x"}`,
		`{"jsonrpc":"2.0","id":3,"method":"missing"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		``,
		`{"jsonrpc":"2.0","id":4,"method":"fails"}`,
	}, "\n")

	responses := serve(t, input, func(s *Server) {
		s.Register("fails", func(context.Context, json.RawMessage) (any, *Error) {
			return nil, &Error{Message: "boom"}
		})
	})

	require.Len(t, responses, 4)
	assert.Equal(t, CodeParseError, responses["null"].Error.Code)
	assert.Equal(t, CodeInvalidRequest, responses["2"].Error.Code)
	assert.Equal(t, CodeMethodNotFound, responses["3"].Error.Code)
	assert.Equal(t, CodeInternalError, responses["4"].Error.Code)
	assert.Equal(t, "boom", responses["4"].Error.Message)
}

type echoTool struct{}

func (echoTool) Name() string { return "check" }

func (echoTool) Description() string { return "Check text" }

func (echoTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "required": []string{"text"}}
}

func (echoTool) Execute(_ context.Context, args map[string]any) (string, error) {
	text, _ := args["text"].(string)
	if text == "" {
		return "", &analysis.ValidationError{Field: "text", Message: "text must not be empty"}
	}
	return "STATUS: completed\n" + text, nil
}

func toolServer(s *Server) {
	registry := tools.NewRegistry()
	registry.Register(echoTool{})
	RegisterTools(s, tools.NewGateway(registry, nil), ServerInfo{Name: "nextgen-mcp", Version: "test"})
}

func TestRegisterTools_InitializeAndList(t *testing.T) {
	t.Parallel()

	input := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n"

	responses := serve(t, input, toolServer)

	handshake := responses["1"].Result.(map[string]any)
	assert.Equal(t, ProtocolVersion, handshake["protocolVersion"])
	assert.Equal(t, "nextgen-mcp", handshake["serverInfo"].(map[string]any)["name"])

	list := responses["2"].Result.(map[string]any)["tools"].([]any)
	require.Len(t, list, 1)
	tool := list[0].(map[string]any)
	assert.Equal(t, "check", tool["name"])
	assert.Equal(t, "Check text", tool["description"])
	assert.NotNil(t, tool["inputSchema"])
}

func TestRegisterTools_Call(t *testing.T) {
	t.Parallel()

	input := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"check","arguments":{"text":"The cat sits."}}}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"check"}}` + "\n" +
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"arguments":{}}}` + "\n"

	responses := serve(t, input, toolServer)

	ok := responses["1"].Result.(map[string]any)
	assert.Equal(t, false, ok["isError"])
	content := ok["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "text", content["type"])
	assert.Equal(t, "STATUS: completed\nThe cat sits.", content["text"])

	failed := responses["2"].Result.(map[string]any)
	assert.Equal(t, true, failed["isError"])
	structured := failed["structuredContent"].(map[string]any)
	assert.Equal(t, tools.CodeValidationFailed, structured["error_code"])

	assert.Equal(t, CodeInvalidParams, responses["3"].Error.Code)
}

func TestServer_WaitRejectsLateRequests(t *testing.T) {
	t.Parallel()

	var output bytes.Buffer
	server := NewServer(strings.NewReader(`{"jsonrpc":"2.0","id":7,"method":"Ping"}`+"\n"), &output, nil)
	server.Register("Ping", func(context.Context, json.RawMessage) (any, *Error) {
		return "pong", nil
	})

	require.NoError(t, server.Wait(context.Background()))
	require.NoError(t, server.Serve(context.Background()))

	var resp Response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(output.Bytes()), &resp))
	assert.Equal(t, "7", string(resp.ID))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInternalError, resp.Error.Code)
}

func TestServer_WaitBoundedByContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	var output bytes.Buffer
	server := NewServer(strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"Block"}`+"\n"), &output, nil)
	server.Register("Block", func(context.Context, json.RawMessage) (any, *Error) {
		<-release
		return nil, nil
	})
	require.NoError(t, server.Serve(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, server.Wait(ctx), context.DeadlineExceeded)
}
