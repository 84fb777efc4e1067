// Command shopquery runs the product-finding assistant: an HTTP server
// (serve), a one-shot CLI query (ask) and version information.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "shopquery",
	Short:         "Product-finding chat assistant",
	Long:          "shopquery answers shopping queries by planning tool calls over product and review indexes and synthesizing grounded answers.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./shopquery.yaml)")
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
