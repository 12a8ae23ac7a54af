package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/MegaGrindStone/alx/internal/chat"
	"github.com/MegaGrindStone/alx/internal/render"
	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"
)

var (
	copyFlag  bool
	rawFlag   bool
	widthFlag int
)

var askCmd = &cobra.Command{
	Use:   "ask <prompt...>",
	Short: "Send one prompt and print the rendered answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configFlag)
		if err != nil {
			return err
		}
		logger, err := cfg.logger(os.Stderr)
		if err != nil {
			return err
		}

		d, err := cfg.dispatcher(cmd.Context(), logger)
		if err != nil {
			return err
		}

		reply, err := chat.NewSurface().Exchange(cmd.Context(), d, strings.Join(args, " "), logger)
		if err != nil {
			return err
		}

		out := reply.Content
		if !rawFlag {
			rendered, err := render.Terminal(reply.Content, widthFlag)
			if err != nil {
				logger.Warn("Falling back to raw output", slog.String("error", err.Error()))
			} else {
				out = rendered
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)

		if copyFlag {
			copyFirstCodeBlock(reply.Content, logger)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&copyFlag, "copy", false, "copy the first code block of the answer to the clipboard")
	askCmd.Flags().BoolVar(&rawFlag, "raw", false, "print the answer as raw markdown")
	askCmd.Flags().IntVarP(&widthFlag, "width", "w", 100, "word wrap width of rendered output")
}

// copyFirstCodeBlock writes the first fenced block of content to the system clipboard. Failures are
// logged only.
func copyFirstCodeBlock(content string, logger *slog.Logger) {
	blocks := render.CodeBlocks(content)
	if len(blocks) == 0 {
		logger.Info("No code block to copy")
		return
	}
	if err := clipboard.WriteAll(blocks[0].Code); err != nil {
		logger.Error("Failed to copy text", slog.String("error", err.Error()))
		return
	}
	logger.Info("Copied code block", slog.String("language", blocks[0].Language))
}
