package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/stevehiehn/greenscreen/internal/engine"
	"github.com/stevehiehn/greenscreen/internal/field"
	"github.com/stevehiehn/greenscreen/internal/screen"
	"github.com/stevehiehn/greenscreen/internal/session"
	"github.com/stevehiehn/greenscreen/internal/template"
)

type toolDef struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

func submitSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"screen": map[string]any{"type": "string", "description": "Screen name"},
			"data":   map[string]any{"type": "object", "description": "Field values keyed by field name"},
			"params": map[string]any{"type": "object", "description": "Runtime parameters such as company_id"},
		},
		"required": []string{"screen"},
	}
}

var builtinTools = []toolDef{
	{Name: "screens.list", Description: "List configured screens", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{}}},
	{Name: "screen.show", Description: "Show a screen's fields and navigation steps", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{"screen": map[string]any{"type": "string"}}, "required": []string{"screen"}}},
	{Name: "screen.validate", Description: "Validate field values for a screen without connecting", InputSchema: submitSchema()},
	{Name: "screen.explain", Description: "Show the keystrokes a submission would send, without connecting", InputSchema: submitSchema()},
	{Name: "screen.run", Description: "Navigate to the screen on the host, fill it and classify the result", InputSchema: submitSchema()},
	{Name: "screen.schema", Description: "Return the screen YAML schema", InputSchema: map[string]any{
		"type": "object", "properties": map[string]any{}}},
}

// screenTools generates one tool per configured screen so that agents can
// call a screen directly with its fields as arguments.
func (s *Server) screenTools(ctx context.Context) []toolDef {
	names, err := s.Source.List(ctx)
	if err != nil {
		s.logger().Warn("listing screens for tools", zap.Error(err))
		return nil
	}
	var tools []toolDef
	for _, name := range names {
		sc, err := s.Source.Get(ctx, name)
		if err != nil {
			s.logger().Warn("skipping screen tool", zap.String("screen", name), zap.Error(err))
			continue
		}
		tools = append(tools, screenToToolDef(sc))
	}
	return tools
}

// screenToToolDef converts a Screen into an MCP tool definition. Fields and
// the runtime parameters the steps reference share one argument namespace.
func screenToToolDef(sc *screen.Screen) toolDef {
	properties := map[string]any{}
	var required []string

	for _, r := range sc.Fields {
		prop := map[string]any{"type": "string", "maxLength": r.MaxLength}
		if r.Description != "" {
			prop["description"] = r.Description
		}
		if len(r.AllowedValues) > 0 {
			prop["enum"] = r.AllowedValues
		}
		if r.Kind == field.KindDigits {
			prop["pattern"] = "^[0-9]*$"
		}
		properties[r.Name] = prop
		if r.Required {
			required = append(required, r.Name)
		}
	}
	for _, name := range paramNames(sc) {
		if _, clash := properties[name]; clash {
			continue
		}
		prop := map[string]any{"type": "string", "description": "Runtime parameter"}
		if def, ok := sc.Params[name]; ok {
			prop["default"] = def
		}
		properties[name] = prop
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	desc := sc.Description
	if desc == "" {
		desc = "Fill and submit the " + sc.Name + " screen"
	}
	return toolDef{Name: sc.Name, Description: desc, InputSchema: schema}
}

// paramNames lists the runtime parameters a screen uses, sorted.
func paramNames(sc *screen.Screen) []string {
	seen := map[string]bool{sc.Identifier(): true}
	for _, st := range sc.Steps {
		if st.Action == screen.ActionCredentials {
			continue
		}
		for _, ref := range template.Refs(st.Value) {
			seen[template.Key(ref)] = true
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *Server) dispatch(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	switch req.Method {
	case "initialize":
		version := s.Version
		if version == "" {
			version = "dev"
		}
		return &JSONRPCResponse{Result: map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": "greenscreen", "version": version},
		}}
	case "tools/list":
		allTools := append([]toolDef{}, builtinTools...)
		allTools = append(allTools, s.screenTools(ctx)...)
		return &JSONRPCResponse{Result: map[string]any{"tools": allTools}}
	case "tools/call":
		return s.handleToolCall(ctx, req.Params)
	case "notifications/initialized", "ping":
		return &JSONRPCResponse{Result: map[string]any{}}
	default:
		return &JSONRPCResponse{Error: &RPCError{Code: -32601, Message: "Method not found"}}
	}
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type submitArgs struct {
	Screen string            `json:"screen"`
	Data   map[string]string `json:"data"`
	Params map[string]string `json:"params"`
}

func (s *Server) handleToolCall(ctx context.Context, params json.RawMessage) *JSONRPCResponse {
	var tc toolCallParams
	if err := json.Unmarshal(params, &tc); err != nil {
		return &JSONRPCResponse{Error: &RPCError{Code: -32602, Message: "Invalid params"}}
	}

	var args submitArgs
	if len(tc.Arguments) > 0 {
		if err := json.Unmarshal(tc.Arguments, &args); err != nil && isBuiltin(tc.Name) {
			return &JSONRPCResponse{Error: &RPCError{Code: -32602, Message: "Invalid arguments: " + err.Error()}}
		}
	}

	switch tc.Name {
	case "screens.list":
		names, err := s.Source.List(ctx)
		if err != nil {
			return toolFailure(err.Error())
		}
		return jsonContent(map[string]any{"screens": names}, false)
	case "screen.show":
		sc, err := s.Source.Get(ctx, args.Screen)
		if err != nil {
			return toolFailure(err.Error())
		}
		return jsonContent(map[string]any{"screen": sc, "warnings": screen.Warnings(sc)}, false)
	case "screen.validate":
		return s.toolValidate(ctx, args)
	case "screen.explain":
		return s.toolExecute(ctx, args, engine.ModeExplain)
	case "screen.run":
		return s.toolExecute(ctx, args, engine.ModeRun)
	case "screen.schema":
		return &JSONRPCResponse{Result: toolContent(schemaText, false)}
	default:
		return s.toolExecuteScreen(ctx, tc.Name, tc.Arguments)
	}
}

func isBuiltin(name string) bool {
	for _, t := range builtinTools {
		if t.Name == name {
			return true
		}
	}
	return false
}

func (s *Server) toolValidate(ctx context.Context, args submitArgs) *JSONRPCResponse {
	sc, err := s.Source.Get(ctx, args.Screen)
	if err != nil {
		return toolFailure(err.Error())
	}
	result, err := engine.Execute(sc, s.submission(args), s.runContext(s.logger()), engine.ModeExplain)
	if err != nil {
		return toolFailure("Validation failed: " + err.Error())
	}
	if !result.Success {
		return toolFailure(strings.Join(result.Messages, "\n"))
	}
	text := "Submission is valid."
	if warnings := screen.Warnings(sc); len(warnings) > 0 {
		text += "\nWarnings:\n- " + strings.Join(warnings, "\n- ")
	}
	return &JSONRPCResponse{Result: toolContent(text, false)}
}

func (s *Server) toolExecute(ctx context.Context, args submitArgs, mode engine.Mode) *JSONRPCResponse {
	sc, err := s.Source.Get(ctx, args.Screen)
	if err != nil {
		return toolFailure(err.Error())
	}
	sub := s.submission(args)
	rc := s.runContext(s.logger().With(zap.String("screen", sc.Name)))

	result, err := engine.Execute(sc, sub, rc, engine.ModeExplain)
	if err != nil {
		return toolFailure(err.Error())
	}
	if mode == engine.ModeExplain || !result.Success {
		return jsonContent(result, !result.Success)
	}

	if s.Open == nil {
		return toolFailure("running screens is disabled: no terminal session is configured")
	}
	s.runMu.Lock()
	defer s.runMu.Unlock()
	err = session.With(ctx, s.Open, func(term session.Terminal) error {
		rc.Terminal = term
		var runErr error
		result, runErr = engine.Execute(sc, sub, rc, engine.ModeRun)
		return runErr
	}, rc.Logger)
	if err != nil {
		return toolFailure(err.Error())
	}
	return jsonContent(result, !result.Success)
}

// toolExecuteScreen runs a screen called by name. Arguments matching a field
// become data, everything else a runtime parameter.
func (s *Server) toolExecuteScreen(ctx context.Context, name string, rawArgs json.RawMessage) *JSONRPCResponse {
	sc, err := s.Source.Get(ctx, name)
	if err != nil {
		return &JSONRPCResponse{Error: &RPCError{Code: -32602, Message: "Unknown tool: " + name}}
	}

	var flat map[string]string
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &flat); err != nil {
			return &JSONRPCResponse{Error: &RPCError{Code: -32602, Message: "Invalid arguments: " + err.Error()}}
		}
	}
	fields := map[string]bool{}
	for _, r := range sc.Fields {
		fields[r.Name] = true
	}
	args := submitArgs{Screen: sc.Name, Data: map[string]string{}, Params: map[string]string{}}
	for k, v := range flat {
		if fields[k] {
			args.Data[k] = v
		} else {
			args.Params[k] = v
		}
	}
	return s.toolExecute(ctx, args, engine.ModeRun)
}

func (s *Server) submission(args submitArgs) engine.Submission {
	params := map[string]string{}
	for k, v := range s.Params {
		params[k] = v
	}
	for k, v := range args.Params {
		params[k] = v
	}
	return engine.Submission{Screen: args.Screen, Values: args.Data, Params: params}
}

func (s *Server) runContext(logger *zap.Logger) *engine.RunContext {
	rc := engine.NewRunContext(nil, s.ArtifactsDir, logger)
	if s.Sleep != nil {
		rc.Sleep = s.Sleep
		rc.Filler.Sleep = s.Sleep
	}
	return rc
}

func toolContent(text string, isError bool) map[string]any {
	result := map[string]any{"content": []map[string]any{{"type": "text", "text": text}}}
	if isError {
		result["isError"] = true
	}
	return result
}

func toolFailure(text string) *JSONRPCResponse {
	return &JSONRPCResponse{Result: toolContent(text, true)}
}

func jsonContent(v any, isError bool) *JSONRPCResponse {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolFailure(fmt.Sprintf("encoding result: %v", err))
	}
	return &JSONRPCResponse{Result: toolContent(string(data), isError)}
}

const schemaText = `Screen YAML Schema:
  name: string (required)
  description: string
  option: string (menu option reaching the screen)
  identifier_param: string (default: company_id)
  params:
    <name>: string (default runtime parameter)
  fields: (declaration order is the on-screen tab order)
    - name: string (required, unique)
      max_length: int (required, > 0)
      required: bool
      type: text | digits (default: text)
      valid_values: [string]
      tabs_needed: int (default: 1, sent after a value shorter than max_length)
      tabs_needed_empty: int (sent for an empty value, default: tabs_needed)
  steps:
    - order: int (unique, ascending)
      screen_contains: string (step runs only when the screen shows this text)
      action: credentials | enter | command | option | option_with_id | form_fill
      value: string ({NAME} placeholders resolve from runtime parameters)
      wait: int (seconds after the action)
  Note: form_fill should be the last step; it submits the form and classifies the result`
