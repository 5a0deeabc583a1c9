package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cmdSource = `#include <stdio.h>

int total = 0;

int add(int a, int b) {
    return a + b;
}

int twice(int x) {
    return add(x, x);
}

int main(void) {
    total = twice(3);
    printf("%d\n", total);
    return 0;
}
`

// resetFlags restores every flag to its default so commands can be executed
// repeatedly in one process.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs carve with args and a config path that does not exist, so
// built-in defaults apply regardless of the environment.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(""))
	full := append([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}, args...)
	rootCmd.SetArgs(full)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(cmdSource), 0o644))
	return path
}

func TestExtractCmd_PrintsText(t *testing.T) {
	path := writeSource(t, t.TempDir(), "solution.c")

	stdout, _, err := execute(t, "extract", path, "add", "--includes=false")
	require.NoError(t, err)

	want := "int total = 0;\n\nint add(int a, int b) {\n    return a + b;\n}\n"
	assert.Equal(t, want, stdout)
}

func TestExtractCmd_WritesFileAndReport(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "solution.c")
	out := filepath.Join(dir, "unit.c")

	stdout, _, err := execute(t, "extract", path, "main", "--follow-calls", "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "mode: extract")
	assert.Contains(t, stdout, "name: twice")

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	text := string(written)
	assert.True(t, strings.HasPrefix(text, "#include <stdio.h>\n\nint total = 0;\n\n"))
	assert.Contains(t, text, "int add(int a, int b)")
	assert.Contains(t, text, "int twice(int x)")
	assert.Contains(t, text, "int main(void)")
}

func TestExtractCmd_Errors(t *testing.T) {
	path := writeSource(t, t.TempDir(), "solution.c")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"bad kind", []string{"extract", path, "add", "--kind", "class"}, "invalid entity kind"},
		{"bad lang", []string{"extract", path, "add", "--lang", "rust"}, "unsupported language"},
		{"missing file", []string{"extract", path + ".gone", "add"}, "parse"},
		{"bad format", []string{"extract", path, "add", "-o", path + ".out", "--format", "xml"}, "invalid format"},
		{"blank names", []string{"extract", path, " "}, "no entity names"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRedactCmd_DefaultTargets(t *testing.T) {
	path := writeSource(t, t.TempDir(), "solution.c")

	stdout, _, err := execute(t, "redact", path)
	require.NoError(t, err)

	assert.NotContains(t, stdout, "int main")
	assert.Contains(t, stdout, "int twice(int x)")
	assert.True(t, strings.HasPrefix(stdout, "#include <stdio.h>\n"))
}

func TestRedactCmd_Variable(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "solution.c")
	out := filepath.Join(dir, "out.c")

	stdout, _, err := execute(t, "redact", path, "total", "--kind", "variable", "-o", out, "--format", "json")
	require.NoError(t, err)

	var report struct {
		Mode     string `json:"mode"`
		Entities []struct {
			Kind string `json:"kind"`
			Name string `json:"name"`
		} `json:"entities"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "redact", report.Mode)
	require.Len(t, report.Entities, 1)
	assert.Equal(t, "variable", report.Entities[0].Kind)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, strings.Replace(cmdSource, "int total = 0;", "", 1), string(written))
	assert.NotContains(t, string(written), "\n;\n")
}

func TestStripMainCmd(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "solution.c")
	out := filepath.Join(dir, "lib.c")

	_, _, err := execute(t, "strip-main", path, out)
	require.NoError(t, err)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.NotContains(t, string(written), "int main")
	assert.Contains(t, string(written), "int add(int a, int b)")

	// running again on the output copies it unchanged
	again := filepath.Join(dir, "lib2.c")
	_, stderr, err := execute(t, "strip-main", out, again)
	require.NoError(t, err)
	assert.Contains(t, stderr, "no main")

	second, err := os.ReadFile(again)
	require.NoError(t, err)
	assert.Equal(t, string(written), string(second))
}

func TestLocateCmd(t *testing.T) {
	path := writeSource(t, t.TempDir(), "solution.c")

	stdout, _, err := execute(t, "locate", path, "twice", "--follow-calls", "--format", "json")
	require.NoError(t, err)

	var report struct {
		Mode     string `json:"mode"`
		Entities []struct {
			Name      string `json:"name"`
			Lines     string `json:"lines"`
			Requested bool   `json:"requested"`
		} `json:"entities"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "locate", report.Mode)
	require.Len(t, report.Entities, 2)

	assert.Equal(t, "add", report.Entities[0].Name)
	assert.Equal(t, "5-7", report.Entities[0].Lines)
	assert.False(t, report.Entities[0].Requested)

	assert.Equal(t, "twice", report.Entities[1].Name)
	assert.Equal(t, "9-11", report.Entities[1].Lines)
	assert.True(t, report.Entities[1].Requested)
}

func TestBatchCmd(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "alice/solution.c")
	writeSource(t, root, "bob/solution.c")
	writeSource(t, root, "build/generated.c")
	outDir := filepath.Join(t.TempDir(), "out")

	stdout, _, err := execute(t, "batch", root, "--mode", "redact", "--names", "main", "--out-dir", outDir, "--format", "json")
	require.NoError(t, err)

	var report struct {
		Processed int `json:"processed"`
		Failed    int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 0, report.Failed)

	for _, who := range []string{"alice", "bob"} {
		written, err := os.ReadFile(filepath.Join(outDir, who, "solution.c"))
		require.NoError(t, err)
		assert.NotContains(t, string(written), "int main")
	}
	assert.NoFileExists(t, filepath.Join(outDir, "build", "generated.c"))
}

func TestBatchCmd_Failures(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "good.c")
	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.c"), []byte("int x = '\xe9';\n"), 0o644))

	stdout, _, err := execute(t, "batch", root, "--mode", "extract", "--names", "add")
	assert.ErrorContains(t, err, "1 of 2 files failed")
	assert.Contains(t, stdout, "stage: parse")
}

func TestBatchCmd_RedactIgnoresExtractFollowCalls(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "alice/solution.c")
	outDir := filepath.Join(t.TempDir(), "out")
	cfgPath := filepath.Join(t.TempDir(), "carve.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("extract:\n  follow_calls: true\n"), 0o644))

	resetFlags(rootCmd)
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"--config", cfgPath, "batch", root, "--mode", "redact", "--names", "main", "--out-dir", outDir})
	require.NoError(t, rootCmd.Execute())

	written, err := os.ReadFile(filepath.Join(outDir, "alice", "solution.c"))
	require.NoError(t, err)
	assert.NotContains(t, string(written), "int main")
	assert.Contains(t, string(written), "int add(int a, int b)")
	assert.Contains(t, string(written), "int twice(int x)")

	// the same config still widens extractions
	units := filepath.Join(t.TempDir(), "units")
	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"--config", cfgPath, "batch", root, "--mode", "extract", "--names", "main", "--out-dir", units})
	require.NoError(t, rootCmd.Execute())

	extracted, err := os.ReadFile(filepath.Join(units, "alice", "solution.c"))
	require.NoError(t, err)
	assert.Contains(t, string(extracted), "int add(int a, int b)")
}

func TestBatchCmd_InvalidMode(t *testing.T) {
	_, _, err := execute(t, "batch", t.TempDir(), "--mode", "locate", "--names", "main")
	assert.ErrorContains(t, err, "invalid mode")
}

func TestInitCmd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	stdout, _, err := execute(t, "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Initialized carve config")
	assert.FileExists(t, filepath.Join(dir, ".carve", "config.yaml"))

	stdout, _, err = execute(t, "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Already initialized")

	stdout, _, err = execute(t, "init", "--force")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Initialized carve config")
}

func TestConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "solution.c")
	cfgPath := filepath.Join(dir, "carve.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("extract:\n  include_directives: false\n"), 0o644))

	resetFlags(rootCmd)
	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"--config", cfgPath, "extract", path, "add"})
	require.NoError(t, rootCmd.Execute())

	assert.NotContains(t, stdout.String(), "#include")

	// an explicit flag wins over the file
	resetFlags(rootCmd)
	stdout.Reset()
	rootCmd.SetArgs([]string{"--config", cfgPath, "extract", path, "add", "--includes"})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, stdout.String(), "#include <stdio.h>")
}

func TestInvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "solution.c")
	cfgPath := filepath.Join(dir, "carve.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("extract:\n  max_drift: 500\n"), 0o644))

	resetFlags(rootCmd)
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"--config", cfgPath, "locate", path, "add"})

	assert.ErrorContains(t, rootCmd.Execute(), "max_drift")
}
