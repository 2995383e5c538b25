package main

import (
	"fmt"

	"github.com/beehive-lab/Maxine-VM-sub091/x86"
	"github.com/spf13/cobra"
)

func newTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates [mnemonic...]",
		Short: "Print the AMD64 template table grouped by mnemonic",
		RunE: func(cmd *cobra.Command, args []string) error {
			table := x86.DefaultTable()
			for _, m := range args {
				if len(table.ByMnemonic(m)) == 0 {
					return fmt.Errorf("no templates for mnemonic %q", m)
				}
			}
			fmt.Fprint(cmd.OutOrStdout(), table.ToTree(args...).String())
			return nil
		},
	}
}
