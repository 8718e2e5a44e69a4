package main

import (
	"fmt"

	"github.com/petrzlen/micbridge/pkg/audioio"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := audioio.ListCaptureDevices(cfg.Backends)
		if err != nil {
			return err
		}
		for i, d := range devices {
			marker := ""
			if d.IsDefault {
				marker = " [DEFAULT]"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d: %s%s\n", i, d.Name, marker)
		}
		return nil
	},
}
