package mcp

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/loopwork-ai/yesno/jsonrpc"
)

// maxBodySize caps a single POST body, mirroring the line cap of a stdio
// transport.
const maxBodySize = 1024 * 1024

// HTTPTransport accepts JSON-RPC over HTTP POST and writes the shaped
// reply: 200 with a mirrored object or array, or 202 with no body when the
// request carried only notifications.
type HTTPTransport struct {
	processor *jsonrpc.Processor
	logger    *slog.Logger
}

// NewHTTPTransport creates an HTTP transport dispatching to handler
func NewHTTPTransport(handler jsonrpc.Handler, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HTTPTransport{
		processor: jsonrpc.NewProcessor(handler, logger),
		logger:    logger,
	}
}

var _ http.Handler = &HTTPTransport{}

func (t *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		// An unreadable or oversized body answers like unparseable JSON.
		t.logger.Warn("error reading request body", "error", err)
		body = nil
	}

	reply := t.processor.Process(body)

	if reply.Empty() {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	data, err := json.Marshal(reply)
	if err != nil {
		t.logger.Error("error encoding reply", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		t.logger.Warn("error writing reply", "error", err)
	}
}
