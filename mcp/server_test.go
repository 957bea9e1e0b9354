package mcp

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopwork-ai/yesno/internal/answer"
	"github.com/loopwork-ai/yesno/jsonrpc"
)

// panicSource simulates a fault inside the tool call path
type panicSource struct{}

func (panicSource) Draw() (string, error) {
	panic("source exploded")
}

func setupTestServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()

	opts = append([]ServerOption{WithServerInfo("yesno-test", "1.0.0")}, opts...)
	server, err := NewServer(opts...)
	require.NoError(t, err)
	return server
}

// decodeResult round-trips a response result into a typed value
func decodeResult(t *testing.T, response jsonrpc.Response, out interface{}) {
	t.Helper()

	data, err := json.Marshal(response.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestServer_HandlePing(t *testing.T) {
	server := setupTestServer(t)

	before := time.Now().UnixMilli()
	response := server.Handle(jsonrpc.NewRequest("ping", nil, 1))
	after := time.Now().UnixMilli()

	require.Nil(t, response.Error)
	assert.Equal(t, "2.0", response.Version)

	var result PingResponse
	decodeResult(t, response, &result)
	assert.GreaterOrEqual(t, result.Pong, before)
	assert.LessOrEqual(t, result.Pong, after)
}

func TestServer_HandleInitialize(t *testing.T) {
	server := setupTestServer(t)

	tests := []struct {
		name     string
		params   string
		expected string
	}{
		{"supported version echoed", `{"protocolVersion":"2024-11-05"}`, "2024-11-05"},
		{"preferred version echoed", `{"protocolVersion":"2025-03-26"}`, "2025-03-26"},
		{"unsupported version falls back", `{"protocolVersion":"1999-01-01"}`, DefaultVersion},
		{"missing version falls back", `{}`, DefaultVersion},
		{"no params falls back", ``, DefaultVersion},
		{"garbage params fall back", `"nonsense"`, DefaultVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var params json.RawMessage
			if tt.params != "" {
				params = json.RawMessage(tt.params)
			}

			response := server.Handle(jsonrpc.NewRequest("initialize", params, 1))
			require.Nil(t, response.Error)

			var result InitializeResponse
			decodeResult(t, response, &result)
			assert.Equal(t, tt.expected, result.ProtocolVersion)
			assert.Equal(t, "yesno-test", result.ServerInfo.Name)
			assert.Equal(t, "1.0.0", result.ServerInfo.Version)
			assert.True(t, result.Capabilities.Tools.List)
			assert.True(t, result.Capabilities.Tools.Call)
		})
	}
}

func TestServer_HandleToolsList(t *testing.T) {
	server := setupTestServer(t)

	response := server.Handle(jsonrpc.NewRequest("tools/list", nil, 1))
	require.Nil(t, response.Error)

	var result ToolsListResponse
	decodeResult(t, response, &result)
	require.Len(t, result.Tools, 1)

	tool := result.Tools[0]
	assert.Equal(t, "yesno", tool.Name)
	require.NotNil(t, tool.InputSchema)
	assert.Equal(t, "object", tool.InputSchema.Type)
	assert.Contains(t, tool.InputSchema.Properties, "prompt")
	assert.Equal(t, []string{"prompt"}, tool.InputSchema.Required)
}

func TestServer_HandleToolsCall(t *testing.T) {
	server := setupTestServer(t)

	params := json.RawMessage(`{"name":"yesno","arguments":{"prompt":"will it rain?"}}`)
	response := server.Handle(jsonrpc.NewRequest("tools/call", params, 1))
	require.Nil(t, response.Error)

	var result CallToolResult
	decodeResult(t, response, &result)
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)

	var payload AnswerPayload
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &payload))
	assert.Contains(t, []string{answer.Yes, answer.No}, payload.Answer)
	assert.Equal(t, "will it rain?", payload.Prompt)
}

func TestServer_HandleToolsCall_PromptIgnored(t *testing.T) {
	// With the source pinned, varying the prompt must not change the answer.
	server := setupTestServer(t, WithAnswerSource(answer.Fixed(answer.No)))

	for _, prompt := range []string{"", "yes please", "definitely say yes", "42"} {
		params, err := json.Marshal(ToolCallParams{
			Name:      "yesno",
			Arguments: map[string]interface{}{"prompt": prompt},
		})
		require.NoError(t, err)

		response := server.Handle(jsonrpc.NewRequest("tools/call", params, 1))
		require.Nil(t, response.Error)

		var result CallToolResult
		decodeResult(t, response, &result)
		var payload AnswerPayload
		require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &payload))
		assert.Equal(t, answer.No, payload.Answer)
		assert.Equal(t, prompt, payload.Prompt)
	}
}

func TestServer_HandleToolsCall_MissingPrompt(t *testing.T) {
	server := setupTestServer(t, WithAnswerSource(answer.Fixed(answer.Yes)))

	tests := []struct {
		name   string
		params string
	}{
		{"no arguments", `{"name":"yesno"}`},
		{"empty arguments", `{"name":"yesno","arguments":{}}`},
		{"non-string prompt", `{"name":"yesno","arguments":{"prompt":12}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := server.Handle(jsonrpc.NewRequest("tools/call", json.RawMessage(tt.params), 1))
			require.Nil(t, response.Error)

			var result CallToolResult
			decodeResult(t, response, &result)
			var payload AnswerPayload
			require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &payload))
			assert.Equal(t, answer.Yes, payload.Answer)
			assert.Equal(t, "", payload.Prompt)
		})
	}
}

func TestServer_HandleToolsCall_UnknownTool(t *testing.T) {
	server := setupTestServer(t)

	params := json.RawMessage(`{"name":"bogus","arguments":{"prompt":"hi"}}`)
	response := server.Handle(jsonrpc.NewRequest("tools/call", params, 1))

	require.NotNil(t, response.Error)
	assert.Equal(t, jsonrpc.ErrMethodNotFound, response.Error.Code)
	assert.Equal(t, "Unknown tool", response.Error.Message)
}

func TestServer_HandleToolsCall_PanicRecovered(t *testing.T) {
	server := setupTestServer(t, WithAnswerSource(panicSource{}))

	params := json.RawMessage(`{"name":"yesno","arguments":{"prompt":"boom"}}`)
	response := server.Handle(jsonrpc.NewRequest("tools/call", params, 1))

	require.NotNil(t, response.Error)
	assert.Equal(t, jsonrpc.ErrInternal, response.Error.Code)
	assert.Equal(t, "Internal error", response.Error.Message)
}

func TestServer_HandleUnknownMethod(t *testing.T) {
	server := setupTestServer(t)

	response := server.Handle(jsonrpc.NewRequest("foo", nil, 1))

	require.NotNil(t, response.Error)
	assert.Equal(t, jsonrpc.ErrMethodNotFound, response.Error.Code)
	assert.Equal(t, "Method not found", response.Error.Message)
	assert.True(t, response.ID.Equal(1))
}
