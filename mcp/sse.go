package mcp

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultKeepAliveInterval is short enough to beat common proxy idle
// timeouts (usually 30-60s).
const DefaultKeepAliveInterval = 15 * time.Second

// SSEAnnouncer serves the event-stream channel that tells a client where to
// POST its JSON-RPC calls. It carries no JSON-RPC traffic itself: one
// endpoint announcement, then keep-alive comments until the client hangs up.
type SSEAnnouncer struct {
	// BaseURL, when set, overrides scheme and host derived from the
	// request. Set it when running behind a TLS-terminating proxy.
	BaseURL string

	// EndpointPath is the POST path announced to clients.
	EndpointPath string

	// KeepAliveInterval is the period between idle comments.
	KeepAliveInterval time.Duration

	// Announce controls whether the endpoint event is emitted at all.
	// Disable it for clients that know the POST endpoint out-of-band.
	Announce bool

	logger *slog.Logger
}

// NewSSEAnnouncer creates an announcer for the given POST endpoint path
func NewSSEAnnouncer(logger *slog.Logger) *SSEAnnouncer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SSEAnnouncer{
		EndpointPath:      "/mcp",
		KeepAliveInterval: DefaultKeepAliveInterval,
		Announce:          true,
		logger:            logger,
	}
}

var _ http.Handler = &SSEAnnouncer{}

func (a *SSEAnnouncer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Commit headers before anything that could block, so the client's
	// connection timeout cannot fire while they sit in a buffer.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	endpoint := a.endpointURL(r)
	a.logger.Info("sse client connected", "remote", r.RemoteAddr, "endpoint", endpoint)

	if a.Announce {
		// The payload is the bare URL, not JSON. Sent twice: a client that
		// loses the first delivery to a buffering race still gets one, and
		// a duplicate is harmless.
		for i := 0; i < 2; i++ {
			if _, err := fmt.Fprintf(w, "event: endpoint\ndata: %s\n\n", endpoint); err != nil {
				a.logger.Warn("error announcing endpoint", "error", err)
				return
			}
			flusher.Flush()
		}
	}

	interval := a.KeepAliveInterval
	if interval <= 0 {
		interval = DefaultKeepAliveInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			a.logger.Info("sse client disconnected", "remote", r.RemoteAddr)
			return
		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": ping %d\n\n", time.Now().UnixMilli()); err != nil {
				a.logger.Info("sse client gone", "remote", r.RemoteAddr)
				return
			}
			flusher.Flush()
		}
	}
}

// endpointURL computes the absolute POST URL announced to the client. A
// configured base URL always wins; otherwise scheme and host come from the
// incoming request.
func (a *SSEAnnouncer) endpointURL(r *http.Request) string {
	base := a.BaseURL
	if base == "" {
		scheme := "http"
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return strings.TrimSuffix(base, "/") + a.EndpointPath
}
