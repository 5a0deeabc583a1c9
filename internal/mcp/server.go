// Package mcp provides an MCP (Model Context Protocol) server for carve.
// This lets agents extract, redact and locate C/C++ entities through MCP
// tools instead of CLI commands.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hargabyte/carve/internal/config"
	"github.com/hargabyte/carve/internal/isolate"
	"github.com/hargabyte/carve/internal/syntax"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server with carve-specific functionality
type Server struct {
	mcpServer    *server.MCPServer
	engine       *isolate.Engine
	defaults     *config.Config
	tools        map[string]bool
	lastActivity time.Time
	timeout      time.Duration
	mu           sync.RWMutex
}

// Config holds server configuration
type Config struct {
	Tools    []string        // Which tools to expose (empty = all)
	Timeout  time.Duration   // Inactivity timeout (0 = no timeout)
	Engine   *isolate.Engine // Engine that runs the requests
	Defaults *config.Config  // Defaults for optional arguments (nil = built-in defaults)
}

// AllTools lists all available tools
var AllTools = []string{"carve_extract", "carve_redact", "carve_locate", "carve_strip_main"}

// New creates a new MCP server for carve
func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("mcp server requires an engine")
	}
	defaults := cfg.Defaults
	if defaults == nil {
		defaults = config.DefaultConfig()
	}

	s := &Server{
		mcpServer: server.NewMCPServer(
			"carve",
			"1.0.0",
			server.WithToolCapabilities(false),
		),
		engine:       cfg.Engine,
		defaults:     defaults,
		tools:        make(map[string]bool),
		lastActivity: time.Now(),
		timeout:      cfg.Timeout,
	}

	toolsToRegister := cfg.Tools
	if len(toolsToRegister) == 0 {
		toolsToRegister = AllTools
	}

	for _, name := range toolsToRegister {
		if err := s.registerTool(name); err != nil {
			return nil, fmt.Errorf("failed to register tool %s: %w", name, err)
		}
		s.tools[name] = true
	}

	return s, nil
}

// registerTool registers a single tool with the MCP server
func (s *Server) registerTool(name string) error {
	var tool mcp.Tool
	switch name {
	case "carve_extract":
		tool = mcp.NewTool(name,
			mcp.WithDescription(toolSchemaRegistry[name].Description),
			mcp.WithString("path", mcp.Required(), mcp.Description("C/C++ source file to read")),
			mcp.WithString("names", mcp.Required(), mcp.Description("Comma-separated entity names to extract")),
			mcp.WithString("output", mcp.Description("File to write the extraction to")),
			mcp.WithString("kind", mcp.Description("Entity kind: function (default), variable, using-directive, using-declaration")),
			mcp.WithBoolean("follow_calls", mcp.Description("Also extract same-file functions reachable through calls")),
			mcp.WithBoolean("include_directives", mcp.Description("Copy #include lines (default: true)")),
		)
	case "carve_redact":
		tool = mcp.NewTool(name,
			mcp.WithDescription(toolSchemaRegistry[name].Description),
			mcp.WithString("path", mcp.Required(), mcp.Description("C/C++ source file to read")),
			mcp.WithString("names", mcp.Description("Comma-separated entity names to remove (default: main)")),
			mcp.WithString("output", mcp.Description("File to write the redacted copy to")),
			mcp.WithString("kind", mcp.Description("Entity kind: function (default), variable, using-directive, using-declaration")),
		)
	case "carve_locate":
		tool = mcp.NewTool(name,
			mcp.WithDescription(toolSchemaRegistry[name].Description),
			mcp.WithString("path", mcp.Required(), mcp.Description("C/C++ source file to read")),
			mcp.WithString("names", mcp.Required(), mcp.Description("Comma-separated entity names to locate")),
			mcp.WithString("kind", mcp.Description("Entity kind: function (default), variable, using-directive, using-declaration")),
			mcp.WithBoolean("follow_calls", mcp.Description("Also locate same-file functions reachable through calls")),
		)
	case "carve_strip_main":
		tool = mcp.NewTool(name,
			mcp.WithDescription(toolSchemaRegistry[name].Description),
			mcp.WithString("path", mcp.Required(), mcp.Description("C/C++ source file to read")),
			mcp.WithString("output", mcp.Required(), mcp.Description("File to write the copy without main to")),
		)
	default:
		return fmt.Errorf("unknown tool: %s", name)
	}

	s.mcpServer.AddTool(tool, s.handler(name))
	return nil
}

// handler adapts CallTool to an MCP tool handler.
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.updateActivity()

		result, err := s.CallTool(name, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(result), nil
	}
}

// ServeStdio starts the server using stdio transport
func (s *Server) ServeStdio() error {
	if s.timeout > 0 {
		go s.timeoutChecker()
	}

	return server.ServeStdio(s.mcpServer)
}

// timeoutChecker monitors for inactivity and exits if timeout exceeded
func (s *Server) timeoutChecker() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.RLock()
		elapsed := time.Since(s.lastActivity)
		s.mu.RUnlock()

		if elapsed > s.timeout {
			fmt.Fprintf(os.Stderr, "carve serve: timeout after %v of inactivity\n", s.timeout)
			os.Exit(0)
		}
	}
}

// updateActivity updates the last activity timestamp
func (s *Server) updateActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// ListTools returns the sorted list of registered tools
func (s *Server) ListTools() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]string, 0, len(s.tools))
	for t := range s.tools {
		tools = append(tools, t)
	}
	sort.Strings(tools)
	return tools
}

// ToolSchema describes a tool's name, description, and parameters.
type ToolSchema struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Parameters  []ParameterSchema `json:"parameters" yaml:"parameters"`
}

// ParameterSchema describes a single tool parameter.
type ParameterSchema struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Required    bool   `json:"required" yaml:"required"`
}

// toolSchemaRegistry holds the schema definitions for all tools.
// These mirror the mcp.NewTool() definitions in registerTool.
var toolSchemaRegistry = map[string]ToolSchema{
	"carve_extract": {
		Name:        "carve_extract",
		Description: "Extract named entities from a C/C++ file together with its includes and top-level globals.",
		Parameters: []ParameterSchema{
			{Name: "path", Type: "string", Description: "C/C++ source file to read", Required: true},
			{Name: "names", Type: "string", Description: "Comma-separated entity names to extract", Required: true},
			{Name: "output", Type: "string", Description: "File to write the extraction to"},
			{Name: "kind", Type: "string", Description: "Entity kind: function (default), variable, using-directive, using-declaration"},
			{Name: "follow_calls", Type: "boolean", Description: "Also extract same-file functions reachable through calls"},
			{Name: "include_directives", Type: "boolean", Description: "Copy #include lines (default: true)"},
		},
	},
	"carve_redact": {
		Name:        "carve_redact",
		Description: "Remove named entities from a copy of a C/C++ file. All other bytes are preserved.",
		Parameters: []ParameterSchema{
			{Name: "path", Type: "string", Description: "C/C++ source file to read", Required: true},
			{Name: "names", Type: "string", Description: "Comma-separated entity names to remove (default: main)"},
			{Name: "output", Type: "string", Description: "File to write the redacted copy to"},
			{Name: "kind", Type: "string", Description: "Entity kind: function (default), variable, using-directive, using-declaration"},
		},
	},
	"carve_locate": {
		Name:        "carve_locate",
		Description: "Report the exact byte ranges and lines of named entities without changing anything.",
		Parameters: []ParameterSchema{
			{Name: "path", Type: "string", Description: "C/C++ source file to read", Required: true},
			{Name: "names", Type: "string", Description: "Comma-separated entity names to locate", Required: true},
			{Name: "kind", Type: "string", Description: "Entity kind: function (default), variable, using-directive, using-declaration"},
			{Name: "follow_calls", Type: "boolean", Description: "Also locate same-file functions reachable through calls"},
		},
	},
	"carve_strip_main": {
		Name:        "carve_strip_main",
		Description: "Copy a C/C++ file without its main function so a test driver can link against it.",
		Parameters: []ParameterSchema{
			{Name: "path", Type: "string", Description: "C/C++ source file to read", Required: true},
			{Name: "output", Type: "string", Description: "File to write the copy without main to", Required: true},
		},
	},
}

// GetToolSchemas returns schemas for all registered tools, sorted by name.
func (s *Server) GetToolSchemas() []ToolSchema {
	names := s.ListTools()
	schemas := make([]ToolSchema, 0, len(names))
	for _, name := range names {
		if schema, ok := toolSchemaRegistry[name]; ok {
			schemas = append(schemas, schema)
		}
	}
	return schemas
}

// toolResult adds the produced text to the engine result.
type toolResult struct {
	*isolate.Result
	Text string `json:"text,omitempty"`
}

// CallTool dispatches a tool call by name with the given arguments.
// Returns the JSON result string or an error.
func (s *Server) CallTool(name string, args map[string]interface{}) (string, error) {
	s.mu.RLock()
	registered := s.tools[name]
	s.mu.RUnlock()

	if !registered {
		return "", fmt.Errorf("unknown tool: %s (run 'carve call --list' to see available tools)", name)
	}

	path, _ := args["path"].(string)
	if path == "" {
		return "", fmt.Errorf("path parameter is required")
	}
	output, _ := args["output"].(string)

	switch name {
	case "carve_extract":
		targets, err := targetsFrom(args, nil)
		if err != nil {
			return "", err
		}
		res, err := s.engine.Extract(isolate.Request{
			Path:              path,
			Output:            output,
			Targets:           targets,
			FollowCalls:       boolArg(args, "follow_calls", s.defaults.Extract.FollowCallsOrDefault()),
			IncludeDirectives: boolArg(args, "include_directives", s.defaults.Extract.IncludeDirectivesOrDefault()),
		})
		if err != nil {
			return "", err
		}
		return toJSON(toolResult{Result: res, Text: res.Text})

	case "carve_redact":
		targets, err := targetsFrom(args, s.defaults.Redact.DefaultTargets)
		if err != nil {
			return "", err
		}
		res, err := s.engine.Redact(isolate.Request{Path: path, Output: output, Targets: targets})
		if err != nil {
			return "", err
		}
		return toJSON(toolResult{Result: res, Text: res.Text})

	case "carve_locate":
		targets, err := targetsFrom(args, nil)
		if err != nil {
			return "", err
		}
		res, err := s.engine.Locate(isolate.Request{
			Path:        path,
			Targets:     targets,
			FollowCalls: boolArg(args, "follow_calls", s.defaults.Extract.FollowCallsOrDefault()),
		})
		if err != nil {
			return "", err
		}
		return toJSON(res)

	case "carve_strip_main":
		if output == "" {
			return "", fmt.Errorf("output parameter is required")
		}
		res, err := s.engine.Redact(isolate.Request{Path: path, Output: output, Targets: isolate.Functions("main")})
		if err != nil {
			return "", err
		}
		return toJSON(res)

	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// targetsFrom builds targets from the "names" and "kind" arguments. names may
// be a comma-separated string or a JSON array of strings.
func targetsFrom(args map[string]interface{}, fallback []string) ([]isolate.Target, error) {
	var names []string
	switch v := args["names"].(type) {
	case string:
		for _, n := range strings.Split(v, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	case []interface{}:
		for _, item := range v {
			if n, ok := item.(string); ok && strings.TrimSpace(n) != "" {
				names = append(names, strings.TrimSpace(n))
			}
		}
	}
	if len(names) == 0 {
		names = fallback
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("names parameter is required")
	}

	kindName, _ := args["kind"].(string)
	kind, err := syntax.ParseKind(kindName)
	if err != nil {
		return nil, err
	}

	targets := make([]isolate.Target, 0, len(names))
	for _, n := range names {
		targets = append(targets, isolate.Target{Kind: kind, Name: n})
	}
	return targets, nil
}

func boolArg(args map[string]interface{}, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func toJSON(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
