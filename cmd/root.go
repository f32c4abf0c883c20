// Package cmd implements the command-line interface for racesync.
// It provides the root command and subcommands for running the sync
// service and inspecting its state.
package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/racesync/cmd/common"
	"github.com/jonesrussell/racesync/cmd/httpd"
	cmdreview "github.com/jonesrussell/racesync/cmd/review"
	cmdsources "github.com/jonesrussell/racesync/cmd/sources"
	cmdsync "github.com/jonesrussell/racesync/cmd/sync"
)

const version = "1.0.0"

// rootCmd represents the root command for the racesync CLI.
var rootCmd = &cobra.Command{
	Use:   "racesync",
	Short: "A multi-source race data sync engine",
	Long:  `Fetches marathon event pages from registered sources, extracts structured fields, and reconciles them into canonical editions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables are available to Viper.
	_ = godotenv.Load()

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&common.CfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./config/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&common.Debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("racesync version %s\n", version)
		},
	})

	rootCmd.AddCommand(httpd.Command())
	rootCmd.AddCommand(cmdsync.Command())
	rootCmd.AddCommand(cmdsources.Command())
	rootCmd.AddCommand(cmdreview.Command())
}
