package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"tlang/core/eval"
	"tlang/core/parser"
	"tlang/core/registry"
	"tlang/internal/config"
	"tlang/internal/logging"
)

var okStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run a T program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := args[0]

		cfg := config.Get()
		if unsafeFlag {
			cfg.Pipeline.Unsafe = true
		}

		src, err := os.ReadFile(filename)
		if err != nil {
			fmt.Fprintln(os.Stderr, errStyle.Render("tlang: "+err.Error()))
			os.Exit(1)
		}

		prog, diags := parser.Parse(filename, string(src))
		if diags.HasErrors() {
			fmt.Fprintln(os.Stderr, errStyle.Render(diags.Error()))
			os.Exit(1)
		}

		root, reg := registry.Root()
		logging.Debug("registry built")

		ev := eval.New(reg)
		result, err := ev.EvalProgram(prog, root.ChildEnv())
		if err != nil {
			fmt.Fprintln(os.Stderr, errStyle.Render("tlang: "+err.Error()))
			os.Exit(1)
		}

		if result.IsError() {
			fmt.Fprintln(os.Stderr, errStyle.Render(result.String()))
			os.Exit(1)
		}

		fmt.Println(okStyle.Render(result.String()))
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&unsafeFlag, "unsafe", false, "allow filesystem access from inside pipeline node expressions")
}
