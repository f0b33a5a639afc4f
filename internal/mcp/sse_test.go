package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func startTestSSEServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewSSE(newTestServer(t)).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealthEndpoint(t *testing.T) {
	ts := startTestSSEServer(t)
	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		t.Fatal(err)
	}
	if data["status"] != "ok" {
		t.Errorf("expected status ok, got %v", data["status"])
	}
}

func TestSSERoundTrip(t *testing.T) {
	ts := startTestSSEServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/sse", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("SSE connect failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Fatalf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}

	events := bufio.NewReader(resp.Body)
	endpoint := readEvent(t, events)
	if !strings.HasPrefix(endpoint, "event: endpoint") {
		t.Fatalf("expected endpoint event, got %q", endpoint)
	}
	messageURL := strings.TrimPrefix(strings.Split(endpoint, "\n")[1], "data: ")

	body := `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"screens.list"}}`
	post, err := http.Post(messageURL, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	var inline JSONRPCResponse
	if err := json.NewDecoder(post.Body).Decode(&inline); err != nil {
		t.Fatal(err)
	}
	post.Body.Close()
	if inline.Error != nil {
		t.Fatalf("unexpected error: %v", inline.Error)
	}

	msg := readEvent(t, events)
	if !strings.HasPrefix(msg, "event: message") || !strings.Contains(msg, "company_maintenance") || !strings.Contains(msg, `"id":7`) {
		t.Errorf("unexpected streamed message %q", msg)
	}
}

func TestMessageParseError(t *testing.T) {
	ts := startTestSSEServer(t)
	resp, err := http.Post(ts.URL+"/message", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewSSE(newTestServer(t)).ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

// readEvent reads one SSE event block.
func readEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading event: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			if len(lines) > 0 {
				return strings.Join(lines, "\n")
			}
			continue
		}
		lines = append(lines, line)
	}
}
