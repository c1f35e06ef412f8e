package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

var showPlan bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question and exit",
	Long: `Runs one question through the full pipeline and prints the result
table preview and its narrative.

Example:
  weaver ask "Which product category generates the most revenue?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().BoolVar(&showPlan, "show-plan", false, "print the generated aggregation plan")
}

func runAsk(parent context.Context, question string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipe, retriever := buildPipeline()
	defer retriever.Close()

	res, err := pipe.Answer(ctx, question)
	if err != nil {
		return err
	}

	if showPlan || verbose {
		fmt.Printf("Plan:\n%s\n\n", strings.TrimSpace(res.Program))
	}

	preview := res.Table.MarkdownPreview(10)
	body := fmt.Sprintf("## Results (%d rows)\n\n%s\n\n%s\n", res.Stats.RowCount, preview, res.Narrative)
	fmt.Println(renderMarkdown(body))
	return nil
}

// renderMarkdown pretty-prints markdown for the terminal, falling back to
// the raw text when the renderer is unavailable.
func renderMarkdown(text string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return text
	}
	out, err := renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
