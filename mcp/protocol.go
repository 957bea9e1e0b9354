package mcp

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// SupportedVersions lists the protocol versions this server can speak,
// most preferred first.
var SupportedVersions = []string{"2025-03-26", "2024-11-05"}

// DefaultVersion is echoed back when a client proposes a version the server
// does not know.
const DefaultVersion = "2025-03-26"

// NegotiateVersion picks the protocol version for a session: the client's
// proposal when it is among the supported versions, DefaultVersion otherwise.
func NegotiateVersion(proposed string, supported []string) string {
	for _, v := range supported {
		if v == proposed {
			return proposed
		}
	}
	return DefaultVersion
}

// Initialize
type (
	// ServerInfo identifies this implementation to the client
	ServerInfo struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}

	// ToolCapabilities advertises the tool operations the server answers
	ToolCapabilities struct {
		List bool `json:"list"`
		Call bool `json:"call"`
	}

	// ServerCapabilities represents the server's supported capabilities
	ServerCapabilities struct {
		Tools ToolCapabilities `json:"tools"`
	}

	// InitializeParams carries the client's proposal for an initialize call
	InitializeParams struct {
		ProtocolVersion string      `json:"protocolVersion"`
		ClientInfo      *ServerInfo `json:"clientInfo,omitempty"`
	}

	// InitializeResponse represents the server's response to an initialize request
	InitializeResponse struct {
		ProtocolVersion string             `json:"protocolVersion"`
		ServerInfo      ServerInfo         `json:"serverInfo"`
		Capabilities    ServerCapabilities `json:"capabilities"`
	}
)

// Ping
type (
	// PingResponse carries the server's wall clock in epoch milliseconds
	PingResponse struct {
		Pong int64 `json:"pong"`
	}
)

// Tools
type (
	// Tool represents a single tool in the tools/list catalog
	Tool struct {
		Name        string             `json:"name"`
		Description string             `json:"description,omitempty"`
		InputSchema *jsonschema.Schema `json:"inputSchema"`
	}

	// ToolsListResponse represents the response for the tools/list method
	ToolsListResponse struct {
		Tools []Tool `json:"tools"`
	}

	// ToolCallParams represents the parameters for the tools/call method
	ToolCallParams struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments,omitempty"`
	}

	// Content is one entry of a tool call result
	Content struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	}

	// CallToolResult represents the server's response to a tool call
	CallToolResult struct {
		Content []Content `json:"content"`
		IsError bool      `json:"isError"`
	}
)

// NewTextContent creates a text content entry
func NewTextContent(text string) Content {
	return Content{
		Type: "text",
		Text: text,
	}
}

// AnswerPayload is the JSON document embedded in a yesno tool result
type AnswerPayload struct {
	Answer string `json:"answer"`
	Prompt string `json:"prompt"`
}

// YesNoTool describes the one tool this server exposes. The prompt is
// declared required in the schema, but the call path tolerates its absence.
func YesNoTool() Tool {
	return Tool{
		Name:        "yesno",
		Description: "Answers any question with an unbiased random \"yes\" or \"no\". The prompt does not influence the outcome.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"prompt": {
					Type:        "string",
					Description: "The question to answer",
				},
			},
			Required: []string{"prompt"},
		},
	}
}
