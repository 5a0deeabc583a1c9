package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeToolName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"extract", "carve_extract"},
		{"carve_extract", "carve_extract"},
		{"redact", "carve_redact"},
		{"locate", "carve_locate"},
		{"strip-main", "carve_strip_main"},
		{"strip_main", "carve_strip_main"},
		{" locate ", "carve_locate"},
		{"nonexistent", "carve_nonexistent"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeToolName(tt.input), "normalizeToolName(%q)", tt.input)
	}
}

func TestCallCmd_RequiresToolOrFlag(t *testing.T) {
	_, _, err := execute(t, "call")
	assert.ErrorContains(t, err, "tool name required")
}

func TestCallCmd_List(t *testing.T) {
	stdout, _, err := execute(t, "call", "--list", "--format", "json")
	require.NoError(t, err)

	var schemas []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &schemas))

	var names []string
	for _, s := range schemas {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"carve_extract", "carve_locate", "carve_redact", "carve_strip_main"}, names)
}

func TestCallCmd_Single(t *testing.T) {
	path := writeSource(t, t.TempDir(), "solution.c")
	args, err := json.Marshal(map[string]interface{}{"path": path, "names": "add"})
	require.NoError(t, err)

	stdout, _, err := execute(t, "call", "locate", string(args))
	require.NoError(t, err)
	assert.Contains(t, stdout, `"name": "add"`)
	assert.Contains(t, stdout, `"lines": "5-7"`)
}

func TestCallCmd_InvalidJSON(t *testing.T) {
	_, _, err := execute(t, "call", "locate", "{not json")
	assert.ErrorContains(t, err, "invalid JSON args")
}

func TestCallCmd_Pipe(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "solution.c")
	out := filepath.Join(dir, "lib.c")

	lines := []string{
		`{"tool":"strip_main","args":{"path":"` + path + `","output":"` + out + `"}}`,
		`not json`,
		`{"tool":"carve_nope"}`,
	}

	resetFlags(rootCmd)
	var stdout strings.Builder
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&strings.Builder{})
	rootCmd.SetIn(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	rootCmd.SetArgs([]string{"--config", filepath.Join(dir, "absent.yaml"), "call", "--pipe"})
	require.NoError(t, rootCmd.Execute())

	responses := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, responses, 3)

	var first pipeResponse
	require.NoError(t, json.Unmarshal([]byte(responses[0]), &first))
	assert.Empty(t, first.Error)
	assert.NotEmpty(t, first.Result)

	assert.Contains(t, responses[1], "invalid JSON")
	assert.Contains(t, responses[2], "unknown tool")

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(written), "int main")
}
