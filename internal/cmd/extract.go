package cmd

import (
	"fmt"

	"github.com/hargabyte/carve/internal/isolate"
	"github.com/spf13/cobra"
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract FILE NAME...",
	Short: "Copy named entities into a standalone file",
	Long: `Extract copies the named entities out of a C/C++ file.

The output holds, in order:
  1. the file's #include lines (unless --includes=false)
  2. every top-level global variable and using declaration
  3. the text of each selected entity, in source order

Sections are separated by a blank line. Names that are not found are skipped.
With --follow-calls every function reachable from the selection through calls
resolved in the same file is extracted as well.

Without -o the extracted text is printed. With -o it is written to that file
and a report of the selected entities is printed instead (use --print to
print the text as well).`,
	Example: `  carve extract solution.c add -o add.c
  carve extract solution.c main --follow-calls -o program.c
  carve extract solution.cpp counter --kind variable --includes=false
  carve extract solution.c add --format json -o add.c`,
	Args: cobra.MinimumNArgs(2),
	RunE: runExtract,
}

var (
	extractOutput      string
	extractFollowCalls bool
	extractIncludes    bool
	extractKind        string
	extractPrint       bool
	extractLang        string
)

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "File to write the extraction to")
	extractCmd.Flags().BoolVar(&extractFollowCalls, "follow-calls", false, "Also extract same-file functions reachable through calls")
	extractCmd.Flags().BoolVar(&extractIncludes, "includes", true, "Copy #include lines")
	extractCmd.Flags().StringVar(&extractKind, "kind", "function", "Entity kind (function|variable|using-directive|using-declaration)")
	extractCmd.Flags().BoolVar(&extractPrint, "print", false, "Print the extracted text even when writing to a file")
	extractCmd.Flags().StringVar(&extractLang, "lang", "", "Force grammar (c|cpp, default: from extension)")
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	targets, err := buildTargets(extractKind, args[1:])
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("no entity names given")
	}

	engine, err := newEngine(cmd, cfg, extractLang)
	if err != nil {
		return err
	}

	res, err := engine.Extract(isolate.Request{
		Path:              args[0],
		Output:            extractOutput,
		Targets:           targets,
		FollowCalls:       flagBool(cmd, "follow-calls", extractFollowCalls, cfg.Extract.FollowCallsOrDefault()),
		IncludeDirectives: flagBool(cmd, "includes", extractIncludes, cfg.Extract.IncludeDirectivesOrDefault()),
	})
	if err != nil {
		return err
	}

	if extractOutput == "" || extractPrint {
		return printText(cmd, res.Text, args[0])
	}
	return writeReport(cmd, cfg, res)
}
