package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hargabyte/carve/internal/mcp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	callList bool
	callPipe bool
)

var callCmd = &cobra.Command{
	Use:   "call [tool] [json-args]",
	Short: "Call an MCP tool directly with JSON arguments",
	Long: `Call any carve tool with structured JSON input/output, without starting
an MCP server.

Modes:
  carve call --list                          List all tools and parameters
  carve call <tool> '{"key":"value"}'        Call a tool with JSON args
  carve call --pipe                          Read JSON lines from stdin

Tool names accept shorthand: "extract" is equivalent to "carve_extract".`,
	Example: `  carve call --list
  carve call extract '{"path":"solution.c","names":"add","output":"add.c"}'
  carve call locate '{"path":"solution.c","names":["add","main"]}'
  carve call strip_main '{"path":"solution.c","output":"lib.c"}'
  echo '{"tool":"carve_redact","args":{"path":"solution.c"}}' | carve call --pipe`,
	Args: cobra.MaximumNArgs(2),
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)
	callCmd.Flags().BoolVar(&callList, "list", false, "List all available tools and their parameters")
	callCmd.Flags().BoolVar(&callPipe, "pipe", false, "Read JSON lines from stdin (pipe mode)")
}

func runCall(cmd *cobra.Command, args []string) error {
	if callList {
		return runCallList(cmd)
	}
	if !callPipe && len(args) == 0 {
		return fmt.Errorf("tool name required (run 'carve call --list' to see available tools)")
	}

	srv, err := newCallServer(cmd)
	if err != nil {
		return err
	}
	if callPipe {
		return runCallPipe(cmd, srv)
	}
	return runCallSingle(cmd, srv, args)
}

// newCallServer builds a tool server with every tool, configured like
// 'carve serve'.
func newCallServer(cmd *cobra.Command) (*mcp.Server, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	engine, err := newEngine(cmd, cfg, "")
	if err != nil {
		return nil, err
	}

	srv, err := mcp.New(mcp.Config{Tools: mcp.AllTools, Engine: engine, Defaults: cfg})
	if err != nil {
		return nil, fmt.Errorf("create server: %w", err)
	}
	return srv, nil
}

func runCallList(cmd *cobra.Command) error {
	srv, err := newCallServer(cmd)
	if err != nil {
		return err
	}

	schemas := srv.GetToolSchemas()
	out := cmd.OutOrStdout()

	switch outputFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(schemas)
	case "jsonl":
		enc := json.NewEncoder(out)
		for _, s := range schemas {
			if err := enc.Encode(s); err != nil {
				return err
			}
		}
		return nil
	default: // yaml
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(schemas)
	}
}

func runCallSingle(cmd *cobra.Command, srv *mcp.Server, args []string) error {
	toolName := normalizeToolName(args[0])

	toolArgs := make(map[string]interface{})
	if len(args) >= 2 {
		if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
			return fmt.Errorf("invalid JSON args: %w", err)
		}
	}

	result, err := srv.CallTool(toolName, toolArgs)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result)
	return nil
}

// pipeRequest is the JSON format for pipe mode input.
type pipeRequest struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args"`
}

// pipeResponse is the JSON format for pipe mode output.
type pipeResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func runCallPipe(cmd *cobra.Command, srv *mcp.Server) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	scanner := bufio.NewScanner(cmd.InOrStdin())
	// Allow larger lines (1MB)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req pipeRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			enc.Encode(pipeResponse{Error: fmt.Sprintf("invalid JSON: %v", err)})
			continue
		}

		if req.Args == nil {
			req.Args = make(map[string]interface{})
		}

		result, err := srv.CallTool(normalizeToolName(req.Tool), req.Args)
		if err != nil {
			enc.Encode(pipeResponse{Error: err.Error()})
			continue
		}
		enc.Encode(pipeResponse{Result: json.RawMessage(result)})
	}

	return scanner.Err()
}

// normalizeToolName converts shorthand names to full tool names.
// "extract" -> "carve_extract", "strip-main" -> "carve_strip_main"
func normalizeToolName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "-", "_")
	if !strings.HasPrefix(name, "carve_") {
		return "carve_" + name
	}
	return name
}
