package commands

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/54b3r/rag-api-go/internal/store"
)

// NewRequestsCmd constructs the `ragapi requests` command, which prints
// recent entries from the request audit log.
func NewRequestsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Show recent answered requests from the audit log",
		Long: `Show the most recent requests recorded in the audit log.

Each row is one /ask/stream request: when it arrived, its outcome, the
effective top-k, how many fragments were streamed, and how long it took.
Question text is never stored — only its length.

Examples:
  ragapi requests
  ragapi requests --limit 50
  RAGAPI_AUDIT_DB=/var/lib/ragapi/requests.db ragapi requests`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath := os.Getenv("RAGAPI_AUDIT_DB")
			if dbPath == "disabled" {
				return fmt.Errorf("requests: audit log is disabled via RAGAPI_AUDIT_DB=disabled")
			}
			if dbPath == "" {
				var err error
				dbPath, err = store.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("requests: could not resolve audit DB path: %w", err)
				}
			}

			log, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("requests: failed to open audit log: %w", err)
			}
			defer func() { _ = log.Close() }()

			records, err := log.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("requests: %w", err)
			}

			if len(records) == 0 {
				fmt.Println("no requests recorded")
				return nil
			}

			headerStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color("#F780FF")).
				Bold(true)
			okStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color("#50FA7B"))
			errStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FF5555"))
			dimStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color("#6272A4"))

			fmt.Println(headerStyle.Render(fmt.Sprintf("%-20s  %-12s  %5s  %9s  %8s  %8s",
				"TIME", "OUTCOME", "TOP-K", "FRAGMENTS", "CHARS", "MS")))

			for _, rec := range records {
				outcome := okStyle.Render(fmt.Sprintf("%-12s", rec.Outcome))
				if rec.Outcome != store.OutcomeOK {
					outcome = errStyle.Render(fmt.Sprintf("%-12s", rec.Outcome))
				}
				fmt.Printf("%s  %s  %5d  %9d  %8d  %8d\n",
					dimStyle.Render(rec.CreatedAt.Local().Format("2006-01-02 15:04:05")),
					outcome, rec.TopK, rec.Fragments, rec.AnswerChars, rec.DurationMs)
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of requests to show")

	return cmd
}
