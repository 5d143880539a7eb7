// Command lodge serves a lodge application and inspects its routing.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var appName string

var rootCmd = &cobra.Command{
	Use:           "lodge",
	Short:         "Run and inspect a lodge application",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&appName, "app", "lodge", "Application name; also the environment variable prefix")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
