package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shouni/vvspeak/internal/device"
)

func newDevicesCmd() *cobra.Command {
	var full, asJSON bool

	cmd := &cobra.Command{
		Use:           "devices",
		Short:         "List audio output devices",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			outputs, err := device.List()
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(outputs)
			}

			for _, o := range outputs {
				if full {
					fmt.Printf("[%d] %s (id=%s)\n", o.Index, o.Name, o.ID)
				} else {
					fmt.Printf("[%d] %s\n", o.Index, o.Name)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "show device ids")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit machine-readable JSON")
	return cmd
}
