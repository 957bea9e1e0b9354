package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
)

// Processor applies a Handler to raw JSON-RPC bodies, one transport call at
// a time. A body may hold a single request object or an ordered batch of
// them; the Reply mirrors that shape.
type Processor struct {
	handler Handler
	logger  *slog.Logger
}

// NewProcessor creates a Processor. A nil logger discards notification
// outcomes.
func NewProcessor(handler Handler, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Processor{
		handler: handler,
		logger:  logger,
	}
}

// Process decodes the body, dispatches every message in order, and collects
// responses for every message that is a request. Notifications are handled
// but never produce a response entry; their failures are only logged.
func (p *Processor) Process(body []byte) Reply {
	raws, single, err := splitBody(body)
	if err != nil {
		return Reply{
			responses: []Response{NewResponse(nil, nil, NewError(ErrParse, nil))},
			single:    true,
		}
	}

	responses := make([]Response, 0, len(raws))
	for _, raw := range raws {
		var request Request
		if err := json.Unmarshal(raw, &request); err != nil || request.Method == "" {
			// A malformed message answers with Invalid Request only when it
			// carries a usable id; otherwise it is treated as a broken
			// notification and elided.
			if id := probeID(raw); id != nil {
				responses = append(responses, NewResponse(id, nil, NewError(ErrInvalidRequest, nil)))
			} else {
				p.logger.Debug("dropping malformed notification")
			}
			continue
		}

		if request.IsNotification() {
			response := p.handler.Handle(request)
			if response.Error != nil {
				p.logger.Warn("notification failed",
					"method", request.Method,
					"code", response.Error.Code,
					"message", response.Error.Message)
			}
			continue
		}

		responses = append(responses, p.handler.Handle(request))
	}

	return Reply{responses: responses, single: single}
}

// splitBody separates a body into its messages, remembering whether the
// original was a lone object so the output shape can mirror it.
func splitBody(body []byte) (raws []json.RawMessage, single bool, err error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, false, err
		}
		return raws, false, nil
	}

	if !json.Valid(trimmed) {
		return nil, true, errors.New("invalid JSON body")
	}
	return []json.RawMessage{trimmed}, true, nil
}

// probeID extracts a present, non-null id from a message that failed to
// decode as a request.
func probeID(raw json.RawMessage) interface{} {
	var probe struct {
		Id interface{} `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil
	}
	switch probe.Id.(type) {
	case string, float64:
		return probe.Id
	default:
		return nil
	}
}

// Reply is the shaped outcome of processing one body: a single response, an
// ordered batch of responses, or nothing at all when every message was a
// notification.
type Reply struct {
	responses []Response
	single    bool
}

// Empty reports whether no response entry was produced. Transports answer
// an empty Reply with an empty-body acknowledgement instead of JSON.
func (r Reply) Empty() bool {
	return len(r.responses) == 0
}

// Responses returns the response entries in input order.
func (r Reply) Responses() []Response {
	return r.responses
}

var _ json.Marshaler = Reply{}

// MarshalJSON renders the reply in the shape of its input: a lone object
// stays a lone object, a batch stays an array.
func (r Reply) MarshalJSON() ([]byte, error) {
	if r.single && len(r.responses) == 1 {
		return json.Marshal(r.responses[0])
	}
	return json.Marshal(r.responses)
}
