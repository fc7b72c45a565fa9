// Command padsim boots PadOS boards on the host.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "padsim",
	Short:         "PadOS board simulator",
	Long:          "Boot a PadOS kernel on a simulated board: headless, in a window, or to capture a scheduler trace.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(runCmd, targetsCmd, traceCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "padsim:", err)
		os.Exit(1)
	}
}
