package mcp

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readEvent reads one SSE block (until a blank line) and returns its lines
func readEvent(t *testing.T, r *bufio.Reader) []string {
	t.Helper()

	var lines []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return lines
		}
		lines = append(lines, line)
	}
}

func TestSSEAnnouncer_EndpointAnnouncedTwice(t *testing.T) {
	announcer := NewSSEAnnouncer(nil)
	announcer.KeepAliveInterval = time.Minute

	ts := httptest.NewServer(announcer)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/sse")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	reader := bufio.NewReader(resp.Body)

	// Two identical endpoint events, payload a bare URL, not JSON.
	expected := []string{
		"event: endpoint",
		"data: " + ts.URL + "/mcp",
	}

	first := readEvent(t, reader)
	second := readEvent(t, reader)
	assert.Equal(t, expected, first)
	assert.Equal(t, expected, second)
}

func TestSSEAnnouncer_BaseURLOverride(t *testing.T) {
	announcer := NewSSEAnnouncer(nil)
	announcer.BaseURL = "https://public.example.com/"
	announcer.KeepAliveInterval = time.Minute

	ts := httptest.NewServer(announcer)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/sse")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	event := readEvent(t, reader)

	// The configured base always beats the request host, and its trailing
	// slash does not double up.
	require.Len(t, event, 2)
	assert.Equal(t, "data: https://public.example.com/mcp", event[1])
}

func TestSSEAnnouncer_ForwardedProto(t *testing.T) {
	announcer := NewSSEAnnouncer(nil)
	announcer.KeepAliveInterval = time.Minute

	ts := httptest.NewServer(announcer)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/sse", nil)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-Proto", "https")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	event := readEvent(t, reader)
	require.Len(t, event, 2)
	assert.True(t, strings.HasPrefix(event[1], "data: https://"), "got %q", event[1])
}

func TestSSEAnnouncer_KeepAlive(t *testing.T) {
	announcer := NewSSEAnnouncer(nil)
	announcer.KeepAliveInterval = 25 * time.Millisecond

	ts := httptest.NewServer(announcer)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/sse")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	readEvent(t, reader) // first announcement
	readEvent(t, reader) // duplicate announcement

	// Keep-alives are comment lines carrying the server clock.
	before := time.Now().UnixMilli()
	ping := readEvent(t, reader)
	require.Len(t, ping, 1)
	require.True(t, strings.HasPrefix(ping[0], ": ping "), "got %q", ping[0])

	ms, err := strconv.ParseInt(strings.TrimPrefix(ping[0], ": ping "), 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, before, ms, 5000)

	// And they keep coming.
	again := readEvent(t, reader)
	require.Len(t, again, 1)
	assert.True(t, strings.HasPrefix(again[0], ": ping "))
}

func TestSSEAnnouncer_AnnouncementSuppressed(t *testing.T) {
	announcer := NewSSEAnnouncer(nil)
	announcer.Announce = false
	announcer.KeepAliveInterval = 25 * time.Millisecond

	ts := httptest.NewServer(announcer)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/sse")
	require.NoError(t, err)
	defer resp.Body.Close()

	// The first write is a keep-alive, not an endpoint event.
	reader := bufio.NewReader(resp.Body)
	event := readEvent(t, reader)
	require.Len(t, event, 1)
	assert.True(t, strings.HasPrefix(event[0], ": ping "))
}

func TestSSEAnnouncer_DisconnectReleasesHandler(t *testing.T) {
	announcer := NewSSEAnnouncer(nil)
	announcer.KeepAliveInterval = 10 * time.Millisecond

	done := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		announcer.ServeHTTP(w, r)
		close(done)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/sse", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	reader := bufio.NewReader(resp.Body)
	readEvent(t, reader)
	readEvent(t, reader)

	cancel()
	resp.Body.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}
}

func TestSSEAnnouncer_PostNotAllowed(t *testing.T) {
	announcer := NewSSEAnnouncer(nil)

	req := httptest.NewRequest(http.MethodPost, "/sse", nil)
	w := httptest.NewRecorder()
	announcer.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
