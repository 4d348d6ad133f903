package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "kadali",
	Short:        "Kadali orchestration CLI",
	Long:         "Command-line client for the Kadali cluster and query orchestration API.",
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	cobra.EnableCommandSorting = false

	rootCmd.PersistentFlags().String("server", "", "API server URL (or KADALI_SERVER env var)")
	rootCmd.PersistentFlags().String("tenant", "", "Tenant ID sent as X-Tenant-ID (or KADALI_TENANT env var)")

	rootCmd.AddCommand(clustersCmd)
	rootCmd.AddCommand(queryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
