package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "alx",
	Short: "Checker-aware solution chat backed by a hosted LLM",
	Long: `alx forwards problem statements, prefixed with an instructional template, to a
text-generation provider and renders the markdown answer.

Examples:
  alx serve                             Start the web chat on the configured port
  alx ask "Solve two-sum"               Send a single prompt from the terminal
  alx ask --copy "Solve two-sum"        Also copy the first code block
  alx prompts legacy                    Print the legacy checker template`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "",
		"path to config.yaml (default: <user config dir>/alx/config.yaml)")

	rootCmd.AddCommand(serveCmd, askCmd, promptsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
