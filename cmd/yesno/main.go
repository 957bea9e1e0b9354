package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/loopwork-ai/yesno/internal/answer"
	"github.com/loopwork-ai/yesno/internal/config"
	"github.com/loopwork-ai/yesno/internal/rest"
	"github.com/loopwork-ai/yesno/mcp"
)

var rootCmd = &cobra.Command{
	Use:   "yesno",
	Short: "A yes/no answer server speaking REST and MCP-style JSON-RPC",
	Long: `yesno serves an unbiased random yes/no answer two ways: plain REST routes
(/yes, /no, /answer) and a single "yesno" tool behind a JSON-RPC 2.0
dispatcher, bootstrapped over an SSE channel that announces the POST
endpoint to connecting clients.

Configuration comes from the environment (PORT, BASE_URL,
CORS_ALLOW_ORIGIN, ENVIRONMENT, with .env support); flags override it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}
		if port != 0 {
			cfg.Port = port
		}
		if baseURL != "" {
			cfg.BaseURL = baseURL
		}
		if corsOrigin != "" {
			cfg.AllowOrigin = corsOrigin
		}

		logger := newLogger(cfg.IsDevelopment())

		server, err := mcp.NewServer(
			mcp.WithLogger(logger),
			mcp.WithServerInfo("yesno", version),
			mcp.WithAnswerSource(answer.CryptoSource{}),
		)
		if err != nil {
			return fmt.Errorf("error creating server: %w", err)
		}

		transport := mcp.NewHTTPTransport(server, logger)

		announcer := mcp.NewSSEAnnouncer(logger)
		announcer.BaseURL = cfg.BaseURL
		if keepAlive > 0 {
			announcer.KeepAliveInterval = keepAlive
		}

		mux := newRouter(transport, announcer, rest.NewHandler(answer.CryptoSource{}, logger))

		httpServer := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Port),
			Handler: rest.Secure(mux, cfg.AllowOrigin),
		}

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			logger.Info("listening", "addr", httpServer.Addr, "environment", cfg.Environment)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("error serving: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		})

		return g.Wait()
	},
}

// newRouter mounts the JSON-RPC transport, the SSE announcer, and the REST
// routes. Quirky clients POST to / or /sse instead of /mcp, so those are
// dispatcher aliases; trailing slashes are accepted too. GET on a POST-only
// path gets 405 from the mux.
func newRouter(transport *mcp.HTTPTransport, announcer *mcp.SSEAnnouncer, restHandler *rest.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("POST /{$}", transport)
	mux.Handle("POST /mcp", transport)
	mux.Handle("POST /mcp/{$}", transport)
	mux.Handle("POST /sse", transport)
	mux.Handle("POST /sse/{$}", transport)

	mux.Handle("GET /sse", announcer)
	mux.Handle("GET /sse/{$}", announcer)

	restHandler.Register(mux)

	return mux
}

func newLogger(development bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose || development {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

var (
	port       int
	baseURL    string
	corsOrigin string
	keepAlive  time.Duration
	verbose    bool

	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func init() {
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides PORT)")
	rootCmd.Flags().StringVar(&baseURL, "base-url", "", "Public base URL announced to SSE clients (overrides BASE_URL)")
	rootCmd.Flags().StringVar(&corsOrigin, "cors-origin", "", "CORS allow-origin value (overrides CORS_ALLOW_ORIGIN)")
	rootCmd.Flags().DurationVar(&keepAlive, "keep-alive", 0, "SSE keep-alive interval (default 15s)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging to stderr")

	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built at: %s)", version, commit, date)

	rootCmd.AddCommand(askCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
