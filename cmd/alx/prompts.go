package main

import (
	"fmt"

	"github.com/MegaGrindStone/alx/internal/prompts"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var defaultNameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))

var promptsCmd = &cobra.Command{
	Use:   "prompts [name]",
	Short: "List the instructional templates, or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			tmpl, err := prompts.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), tmpl.Text)
			return nil
		}

		names, err := prompts.Names()
		if err != nil {
			return err
		}
		for _, name := range names {
			if name == prompts.Default {
				fmt.Fprintf(cmd.OutOrStdout(), "* %s\n", defaultNameStyle.Render(name))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
		}
		return nil
	},
}
