package mcp

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/loopwork-ai/yesno/internal/answer"
	"github.com/loopwork-ai/yesno/jsonrpc"
)

// Server processes JSON-RPC requests for the yesno tool. It holds no
// per-request state; the catalog and version list are immutable after
// construction, so any number of requests may be handled concurrently.
type Server struct {
	info     ServerInfo
	source   answer.Source
	tools    []Tool
	versions []string
	logger   *slog.Logger
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithLogger sets the logger for the server
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServerInfo sets the name and version reported on initialize
func WithServerInfo(name, version string) ServerOption {
	return func(s *Server) {
		s.info = ServerInfo{Name: name, Version: version}
	}
}

// WithAnswerSource sets the random source consulted by tools/call
func WithAnswerSource(source answer.Source) ServerOption {
	return func(s *Server) {
		s.source = source
	}
}

// WithProtocolVersions overrides the supported version list, most
// preferred first
func WithProtocolVersions(versions ...string) ServerOption {
	return func(s *Server) {
		s.versions = versions
	}
}

// NewServer creates a new server instance
func NewServer(opts ...ServerOption) (*Server, error) {
	s := &Server{
		info:     ServerInfo{Name: "yesno", Version: "dev"},
		source:   answer.CryptoSource{},
		tools:    []Tool{YesNoTool()},
		versions: SupportedVersions,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.versions) == 0 {
		return nil, fmt.Errorf("no protocol versions configured")
	}
	return s, nil
}

var _ jsonrpc.Handler = &Server{}

// Handle processes a single JSON-RPC request and returns a response
func (s *Server) Handle(request jsonrpc.Request) jsonrpc.Response {
	s.logger.Debug("handling request", "method", request.Method, "id", request.Id)

	switch request.Method {
	case "ping":
		return s.handlePing(request)
	case "initialize":
		return s.handleInitialize(request)
	case "tools/list":
		return s.handleToolsList(request)
	case "tools/call":
		return s.handleToolsCall(request)
	default:
		return jsonrpc.NewResponse(request.Id, nil, jsonrpc.NewError(jsonrpc.ErrMethodNotFound, nil))
	}
}

func (s *Server) handlePing(request jsonrpc.Request) jsonrpc.Response {
	return jsonrpc.NewResponse(request.Id, PingResponse{Pong: time.Now().UnixMilli()}, nil)
}

func (s *Server) handleInitialize(request jsonrpc.Request) jsonrpc.Response {
	var params InitializeParams
	if len(request.Params) > 0 {
		// A proposal we cannot decode negotiates like an unknown version.
		_ = json.Unmarshal(request.Params, &params)
	}

	result := InitializeResponse{
		ProtocolVersion: NegotiateVersion(params.ProtocolVersion, s.versions),
		ServerInfo:      s.info,
		Capabilities: ServerCapabilities{
			Tools: ToolCapabilities{List: true, Call: true},
		},
	}
	return jsonrpc.NewResponse(request.Id, result, nil)
}

func (s *Server) handleToolsList(request jsonrpc.Request) jsonrpc.Response {
	return jsonrpc.NewResponse(request.Id, ToolsListResponse{Tools: s.tools}, nil)
}

func (s *Server) handleToolsCall(request jsonrpc.Request) (response jsonrpc.Response) {
	// A fault anywhere on the call path degrades to a per-message internal
	// error; it must never take down the batch or the process.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during tool call", "panic", r)
			response = jsonrpc.NewResponse(request.Id, nil, jsonrpc.NewError(jsonrpc.ErrInternal, nil))
		}
	}()

	var params ToolCallParams
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			return jsonrpc.NewResponse(request.Id, nil, jsonrpc.NewError(jsonrpc.ErrInvalidParams, err.Error()))
		}
	}

	if params.Name != "yesno" {
		return jsonrpc.NewResponse(request.Id, nil, jsonrpc.NewErrorWithMessage(jsonrpc.ErrMethodNotFound, "Unknown tool"))
	}

	// The schema declares prompt required, but a missing or non-string
	// prompt is accepted as empty.
	prompt, _ := params.Arguments["prompt"].(string)

	drawn, err := s.source.Draw()
	if err != nil {
		s.logger.Error("error drawing answer", "error", err)
		return jsonrpc.NewResponse(request.Id, nil, jsonrpc.NewError(jsonrpc.ErrInternal, nil))
	}

	payload, err := json.Marshal(AnswerPayload{Answer: drawn, Prompt: prompt})
	if err != nil {
		return jsonrpc.NewResponse(request.Id, nil, jsonrpc.NewError(jsonrpc.ErrInternal, nil))
	}

	result := CallToolResult{
		Content: []Content{NewTextContent(string(payload))},
		IsError: false,
	}
	return jsonrpc.NewResponse(request.Id, result, nil)
}
