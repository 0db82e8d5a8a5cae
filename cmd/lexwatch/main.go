// lexwatch correlates security and compliance alerts and notifies
// operators across chat, paging, SMS, webhook and email channels.
//
// Usage:
//
//	lexwatch serve --config /etc/lexwatch/lexwatch.yaml
//	lexwatch patterns --file patterns.yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexwatch/lexwatch/internal/handlers"
)

var (
	version    = "dev"
	configFile string
)

func main() {
	handlers.Version = version

	rootCmd := &cobra.Command{
		Use:   "lexwatch",
		Short: "Alert correlation and multi-channel notification",
		Long: `lexwatch receives alerts from security monitors, suppresses duplicates,
correlates related alerts into groups, recognizes known attack patterns
and dispatches notifications to every configured channel.`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a config file (env vars take precedence)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(patternsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
