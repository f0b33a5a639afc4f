package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	chi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// sseClient is one connected SSE stream.
type sseClient struct {
	id     string
	events chan []byte
}

// SSE serves the MCP protocol over server-sent events: clients open /sse,
// receive an endpoint event and POST requests to /message.
type SSE struct {
	server  *Server
	mu      sync.Mutex
	clients map[string]*sseClient
	nextID  int
}

// NewSSE wraps s in the SSE transport.
func NewSSE(s *Server) *SSE {
	return &SSE{server: s, clients: make(map[string]*sseClient)}
}

// Handler returns the transport's routes.
func (t *SSE) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/sse", t.handleStream)
	r.Post("/message", t.handleMessage)
	r.Get("/health", t.handleHealth)
	return r
}

// ListenAndServe serves the transport on addr until ctx is canceled.
func (t *SSE) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: t.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		t.server.logger().Info("mcp sse listening", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (t *SSE) handleHealth(w http.ResponseWriter, r *http.Request) {
	t.mu.Lock()
	count := len(t.clients)
	t.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":          "ok",
		"connectedAgents": count,
	})
}

func (t *SSE) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	t.mu.Lock()
	t.nextID++
	client := &sseClient{
		id:     fmt.Sprintf("client-%d", t.nextID),
		events: make(chan []byte, 64),
	}
	t.clients[client.id] = client
	t.mu.Unlock()

	log := t.server.logger().With(zap.String("client", client.id))
	log.Info("sse client connected")

	// Responses for this client are routed by the sessionId in the URL.
	fmt.Fprintf(w, "event: endpoint\ndata: http://%s/message?sessionId=%s\n\n", r.Host, client.id)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			t.mu.Lock()
			delete(t.clients, client.id)
			t.mu.Unlock()
			log.Info("sse client disconnected")
			return
		case data := <-client.events:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (t *SSE) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(&JSONRPCResponse{
			JSONRPC: "2.0",
			Error:   &RPCError{Code: -32700, Message: "Parse error"},
		})
		return
	}
	if isNotification(req) {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	respData, _ := json.Marshal(t.server.handle(r.Context(), req))

	if sessionID := r.URL.Query().Get("sessionId"); sessionID != "" {
		t.mu.Lock()
		client, ok := t.clients[sessionID]
		t.mu.Unlock()
		if ok {
			select {
			case client.events <- respData:
			default:
				t.server.logger().Warn("sse client buffer full, dropping message", zap.String("client", sessionID))
			}
		}
	}

	// Answered inline too, for request/response clients.
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(respData)
}
