package cmd

import (
	"fmt"

	"github.com/hargabyte/carve/internal/isolate"
	"github.com/spf13/cobra"
)

// redactCmd represents the redact command
var redactCmd = &cobra.Command{
	Use:   "redact FILE [NAME...]",
	Short: "Copy a file with named entities removed",
	Long: `Redact writes a copy of a C/C++ file without the named entities.

Every byte outside the removed entities is preserved, so the output can be
diffed against the input. Running redact on its own output is a no-op.
When no names are given, redact.default_targets from the config is used
(main by default).

Without -o the redacted text is printed. With -o it is written to that file
and a report of the removed entities is printed instead.`,
	Example: `  carve redact solution.c helper -o skeleton.c
  carve redact solution.c -o without_main.c
  carve redact solution.cpp total --kind variable --print -o out.cpp`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRedact,
}

var (
	redactOutput      string
	redactKind        string
	redactFollowCalls bool
	redactPrint       bool
	redactLang        string
)

// stripMainCmd represents the strip-main command
var stripMainCmd = &cobra.Command{
	Use:   "strip-main TARGET OUTPUT",
	Short: "Copy a file without its main function",
	Long: `Strip-main copies TARGET to OUTPUT with main removed, so a test driver
with its own main can be compiled and linked against the rest of the file.

It is redact with the single target "main".`,
	Example: `  carve strip-main solution.c solution_lib.c`,
	Args:    cobra.ExactArgs(2),
	RunE:    runStripMain,
}

func init() {
	rootCmd.AddCommand(redactCmd)
	rootCmd.AddCommand(stripMainCmd)

	redactCmd.Flags().StringVarP(&redactOutput, "output", "o", "", "File to write the redacted copy to")
	redactCmd.Flags().StringVar(&redactKind, "kind", "function", "Entity kind (function|variable|using-directive|using-declaration)")
	redactCmd.Flags().BoolVar(&redactFollowCalls, "follow-calls", false, "Also remove same-file functions reachable through calls")
	redactCmd.Flags().BoolVar(&redactPrint, "print", false, "Print the redacted text even when writing to a file")
	redactCmd.Flags().StringVar(&redactLang, "lang", "", "Force grammar (c|cpp, default: from extension)")
}

func runRedact(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	names := args[1:]
	if len(names) == 0 {
		names = cfg.Redact.DefaultTargets
	}
	targets, err := buildTargets(redactKind, names)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("no entity names given and redact.default_targets is empty")
	}

	engine, err := newEngine(cmd, cfg, redactLang)
	if err != nil {
		return err
	}

	res, err := engine.Redact(isolate.Request{
		Path:        args[0],
		Output:      redactOutput,
		Targets:     targets,
		FollowCalls: redactFollowCalls,
	})
	if err != nil {
		return err
	}

	if redactOutput == "" || redactPrint {
		return printText(cmd, res.Text, args[0])
	}
	return writeReport(cmd, cfg, res)
}

func runStripMain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, err := newEngine(cmd, cfg, "")
	if err != nil {
		return err
	}

	res, err := engine.Redact(isolate.Request{
		Path:    args[0],
		Output:  args[1],
		Targets: isolate.Functions("main"),
	})
	if err != nil {
		return err
	}

	if len(res.Entities) == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "carve: no main in %s, copied unchanged\n", args[0])
	}
	return nil
}
