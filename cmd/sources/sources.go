// Package sources implements the command-line interface for inspecting
// registered sources.
package sources

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/racesync/cmd/common"
	"github.com/jonesrussell/racesync/internal/domain"
)

// Command returns the sources command group.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage registered sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newListCommand())

	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all registered sources",
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
			all, err := repos.Sources.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list sources: %w", err)
			}

			if len(all) == 0 {
				deps.Logger.Info("No sources registered")
				return nil
			}

			renderTable(all)
			return nil
		},
	}
}

// renderTable displays sources in a formatted table.
func renderTable(all []*domain.Source) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"ID", "Name", "Strategy", "Priority", "Active", "Retry Max", "Min Interval"})
	for _, s := range all {
		t.AppendRow(table.Row{
			s.ID,
			s.Name,
			s.Strategy,
			s.Priority,
			s.Active,
			s.RetryMax,
			time.Duration(s.MinIntervalSeconds) * time.Second,
		})
	}

	t.Render()
}
