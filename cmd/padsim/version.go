package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pados/internal/buildinfo"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "padsim", buildinfo.String())
	},
}
