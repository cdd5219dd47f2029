package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/54b3r/rag-api-go/internal/logging"
)

// NewAskCmd constructs the `ragapi ask` command, which answers a single
// question from the terminal without starting the HTTP server.
func NewAskCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question against the document corpus",
		Long: `Ask a single natural language question and stream the answer to stdout.

The question is embedded, the nearest document chunks are retrieved from
Qdrant, and the generated answer is printed as it arrives. Useful for
smoke-testing a corpus and provider configuration before exposing the
HTTP API.

Examples:
  ragapi ask "what does the retry middleware do?"
  ragapi ask --top-k 8 "how are failed deliveries reprocessed?"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			svc, _, cleanup, err := buildQueryService(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer cleanup()

			headerStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color("#F780FF")).
				Bold(true)
			questionStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color("#8BE9FD")).
				Italic(true)
			answerStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color("#E9E9F4"))

			question := args[0]

			fmt.Println()
			fmt.Println(headerStyle.Render("Question:"))
			fmt.Println(questionStyle.Render(question))
			fmt.Println()
			fmt.Println(headerStyle.Render("Answer:"))

			stream, err := svc.AnswerTopK(ctx, question, topK)
			if err != nil {
				return err //nolint:wrapcheck // pipeline errors already carry their stage
			}
			defer stream.Close()

			for {
				fragment, err := stream.Recv()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					fmt.Fprintln(os.Stderr)
					return fmt.Errorf("ask: stream failed: %w", err)
				}
				fmt.Print(answerStyle.Render(fragment))
			}
			fmt.Println()

			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 5, "Number of chunks to retrieve for context")

	return cmd
}
