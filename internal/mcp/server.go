// Package mcp exposes screen validation and automation as Model Context
// Protocol tools over stdio or SSE.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stevehiehn/greenscreen/internal/screen"
	"github.com/stevehiehn/greenscreen/internal/session"
	"github.com/stevehiehn/greenscreen/internal/store"
)

// JSONRPCRequest is a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse is a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Source supplies screen definitions to the tools.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Get(ctx context.Context, name string) (*screen.Screen, error)
}

type dirSource struct{ dir screen.Dir }

// FromDir serves the YAML screens in a directory.
func FromDir(path string) Source { return dirSource{screen.Dir{Path: path}} }

func (d dirSource) List(context.Context) ([]string, error) { return d.dir.List() }
func (d dirSource) Get(_ context.Context, name string) (*screen.Screen, error) {
	return d.dir.Get(name)
}

type storeSource struct{ st *store.Store }

// FromStore serves the screens in the SQLite catalog.
func FromStore(st *store.Store) Source { return storeSource{st} }

func (s storeSource) List(ctx context.Context) ([]string, error) { return s.st.ListScreenNames(ctx) }
func (s storeSource) Get(ctx context.Context, name string) (*screen.Screen, error) {
	return s.st.GetScreen(ctx, name)
}

// Server answers MCP requests.
type Server struct {
	Source Source
	// Open connects a terminal for screen.run. Nil disables running.
	Open func(ctx context.Context) (session.Session, error)
	// Params are default runtime parameters, typically credentials.
	Params       map[string]string
	ArtifactsDir string
	Logger       *zap.Logger
	Version      string
	// Sleep replaces time.Sleep for step waits.
	Sleep func(time.Duration)

	// One terminal conversation at a time.
	runMu sync.Mutex
}

func (s *Server) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Serve reads newline-delimited requests from in and writes responses to
// out until in is exhausted.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var req JSONRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			writeResponse(out, &JSONRPCResponse{
				JSONRPC: "2.0",
				Error:   &RPCError{Code: -32700, Message: "Parse error"},
			})
			continue
		}
		if isNotification(req) {
			continue
		}
		writeResponse(out, s.handle(ctx, req))
	}
	return scanner.Err()
}

func (s *Server) handle(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	resp := s.dispatch(ctx, req)
	resp.JSONRPC = "2.0"
	resp.ID = req.ID
	return resp
}

func isNotification(req JSONRPCRequest) bool {
	return req.ID == nil && strings.HasPrefix(req.Method, "notifications/")
}

func writeResponse(w io.Writer, resp *JSONRPCResponse) {
	data, _ := json.Marshal(resp)
	fmt.Fprintf(w, "%s\n", data)
}
