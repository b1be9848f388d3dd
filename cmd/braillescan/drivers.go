package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/braillekit/detect"
)

func newDriversCmd() *cobra.Command {
	var limit []string
	cmd := &cobra.Command{
		Use:   "drivers",
		Short: "List matching drivers for all devices in the inventory snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := buildEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			var effectiveLimit []string
			if len(limit) > 0 {
				effectiveLimit = limit
			}
			usb, err := engine.DriversForConnectedUSBDevices(cmd.Context(), effectiveLimit)
			if err != nil {
				return err
			}
			bt, err := engine.DriversForPossibleBluetoothDevices(cmd.Context(), effectiveLimit)
			if err != nil {
				return err
			}
			printCandidates("usb", usb)
			printCandidates("bluetooth", bt)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&limit, "limit", nil, "restrict matching to these drivers")
	return cmd
}

func printCandidates(source string, candidates []detect.Candidate) {
	for _, c := range candidates {
		fmt.Printf("%s\t%s\t%s\t%s\t%s\n", source, c.Driver, c.Match.Kind, c.Match.ID, c.Match.Port)
	}
}
