// Package rest serves the plain HTTP answer routes.
package rest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/loopwork-ai/yesno/internal/answer"
)

// Handler answers the fixed and random REST routes. These are one-line
// wrappers around the answer source; all protocol logic lives elsewhere.
type Handler struct {
	source answer.Source
	logger *slog.Logger
	start  time.Time
}

// NewHandler creates a REST handler drawing from source
func NewHandler(source answer.Source, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		source: source,
		logger: logger,
		start:  time.Now(),
	}
}

// Register mounts the REST routes on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /yes", h.yes)
	mux.HandleFunc("GET /no", h.no)
	mux.HandleFunc("GET /answer", h.answer)
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(h.start).Round(time.Second).String(),
	})
}

func (h *Handler) yes(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"answer": answer.Yes})
}

func (h *Handler) no(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]string{"answer": answer.No})
}

func (h *Handler) answer(w http.ResponseWriter, r *http.Request) {
	prompt := r.URL.Query().Get("prompt")

	drawn, err := h.source.Draw()
	if err != nil {
		h.logger.Error("error drawing answer", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{
		"answer": drawn,
		"prompt": prompt,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("error encoding response", "error", err)
	}
}
