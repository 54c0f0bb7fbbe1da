// Package cmd provides the CLI commands for the tlang interpreter.
package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"tlang/internal/config"
	"tlang/internal/logging"
)

var (
	cfgFile    string
	verbose    bool
	unsafeFlag bool
)

var errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "tlang",
	Short: "Run T, a tidyverse-flavored data-analysis language",
	Long: `tlang is the interpreter for T: piped data verbs over DataFrames,
NA-aware semantics, formulas, and declarative pipeline{}/intent{} blocks
that compile to a reproducible, time-travelable dependency graph on disk.

Examples:
  tlang run analysis.t
  tlang run --unsafe analysis.t`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (JSON); built-in defaults are used when omitted")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, errStyle.Render("Error loading config: "+err.Error()))
			os.Exit(1)
		}
		config.Set(cfg)
	}

	cfg := config.Get()
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("Error initializing logging: "+err.Error()))
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("tlang version 0.1.0")
	},
}
