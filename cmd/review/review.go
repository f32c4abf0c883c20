// Package review implements the command-line interface for the review queue.
package review

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/racesync/cmd/common"
	"github.com/jonesrussell/racesync/internal/domain"
)

const defaultListLimit = 50

// Command returns the review command group.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Inspect the review queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newListCommand())

	return cmd
}

func newListCommand() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List crawl entries awaiting review",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.NewCommandDeps()
			if err != nil {
				return err
			}

			db, err := deps.OpenDatabase()
			if err != nil {
				return err
			}
			defer db.Close()

			repos := common.NewRepositories(db)
			entries, err := repos.Crawls.ListByStatus(cmd.Context(), status, limit, 0)
			if err != nil {
				return fmt.Errorf("list entries: %w", err)
			}

			if len(entries) == 0 {
				deps.Logger.Info("No entries in status", "status", status)
				return nil
			}

			renderTable(entries)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", domain.EntryStatusNeedsReview, "entry status to list")
	cmd.Flags().IntVar(&limit, "limit", defaultListLimit, "maximum entries to list")

	return cmd
}

// renderTable displays crawl entries in a formatted table.
func renderTable(entries []*domain.RawCrawlEntry) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"ID", "Binding", "Source", "Status", "HTTP", "Candidates", "Fetched At"})
	for _, e := range entries {
		t.AppendRow(table.Row{
			e.ID,
			e.BindingID,
			e.SourceID,
			e.Status,
			e.HTTPStatus,
			len(e.Extraction.Candidates),
			e.FetchedAt.Format("2006-01-02 15:04:05"),
		})
	}

	t.Render()
}
