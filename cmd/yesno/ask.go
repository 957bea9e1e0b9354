package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/cobra"

	"github.com/loopwork-ai/yesno/internal"
	"github.com/loopwork-ai/yesno/jsonrpc"
	"github.com/loopwork-ai/yesno/mcp"
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Ask a running yesno server for an answer",
	Long: `ask connects to a yesno server, initializes a protocol session, calls the
yesno tool, and prints the answer.

With --sse the POST endpoint is discovered from the server's SSE channel
instead of being assumed to live at <server>/mcp.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), askTimeout)
		defer cancel()

		var prompt string
		if len(args) > 0 {
			prompt = args[0]
		}

		retryClient := retryablehttp.NewClient()
		retryClient.RetryMax = askRetries
		retryClient.RetryWaitMin = 1 * time.Second
		retryClient.RetryWaitMax = 30 * time.Second
		retryClient.Logger = nil

		client := retryClient.StandardClient()
		client.Transport = &internal.HeaderTransport{
			Base: client.Transport,
			Headers: http.Header{
				"Accept":     []string{"application/json"},
				"User-Agent": []string{"yesno/" + version},
			},
		}

		endpoint := strings.TrimSuffix(askServer, "/") + "/mcp"
		if askSSE {
			discovered, err := discoverEndpoint(ctx, askServer)
			if err != nil {
				return fmt.Errorf("error discovering endpoint: %w", err)
			}
			endpoint = discovered
		}

		params, err := json.Marshal(mcp.InitializeParams{ProtocolVersion: mcp.DefaultVersion})
		if err != nil {
			return err
		}
		if _, err := call(ctx, client, endpoint, jsonrpc.NewRequest("initialize", params, 1)); err != nil {
			return fmt.Errorf("error initializing: %w", err)
		}

		params, err = json.Marshal(mcp.ToolCallParams{
			Name:      "yesno",
			Arguments: map[string]interface{}{"prompt": prompt},
		})
		if err != nil {
			return err
		}
		raw, err := call(ctx, client, endpoint, jsonrpc.NewRequest("tools/call", params, 2))
		if err != nil {
			return fmt.Errorf("error calling tool: %w", err)
		}

		var result mcp.CallToolResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return fmt.Errorf("error decoding tool result: %w", err)
		}
		if len(result.Content) == 0 {
			return fmt.Errorf("empty tool result")
		}

		var payload mcp.AnswerPayload
		if err := json.Unmarshal([]byte(result.Content[0].Text), &payload); err != nil {
			return fmt.Errorf("error decoding answer: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), payload.Answer)
		return nil
	},
}

// call POSTs one JSON-RPC request and returns the raw result, or the
// server's error as a Go error.
func call(ctx context.Context, client *http.Client, endpoint string, request jsonrpc.Request) (json.RawMessage, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var response struct {
		Result json.RawMessage `json:"result"`
		Error  *jsonrpc.Error  `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, err
	}
	if response.Error != nil {
		return nil, response.Error
	}
	return response.Result, nil
}

// discoverEndpoint reads the server's SSE channel until the first endpoint
// event and returns its payload, a bare URL.
func discoverEndpoint(ctx context.Context, server string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(server, "/")+"/sse", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	var inEndpoint bool
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "event: endpoint":
			inEndpoint = true
		case line == "":
			inEndpoint = false
		case inEndpoint && strings.HasPrefix(line, "data: "):
			return strings.TrimPrefix(line, "data: "), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("connection closed before endpoint event")
}

var (
	askServer  string
	askSSE     bool
	askTimeout time.Duration
	askRetries int
)

func init() {
	askCmd.Flags().StringVarP(&askServer, "server", "s", "http://localhost:8080", "Base URL of the yesno server")
	askCmd.Flags().BoolVar(&askSSE, "sse", false, "Discover the POST endpoint from the SSE channel")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 30*time.Second, "Overall request timeout")
	askCmd.Flags().IntVar(&askRetries, "retries", 3, "Maximum number of retries for failed requests")
}
