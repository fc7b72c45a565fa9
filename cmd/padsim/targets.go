package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pados/targets"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List board profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCORES\tTICK\tUART\tDESCRIPTION")
		for _, name := range targets.All().Names() {
			ti, err := targets.All().Find(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%d\t%v\t%s/irq%d\t%s\n",
				ti.Name, ti.Cores, ti.TickPeriod(), ti.UART.Name, ti.UART.IRQ, ti.Description)
		}
		return w.Flush()
	},
}
