package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices <driver>",
		Short: "List connected and possible devices for one driver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			driver := args[0]
			engine, err := buildEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			usb, err := engine.USBDevicesForDriver(cmd.Context(), driver)
			if err != nil {
				return err
			}
			bt, err := engine.BluetoothDevicesForDriver(cmd.Context(), driver)
			if err != nil {
				return err
			}
			for _, m := range usb {
				fmt.Printf("usb\t%s\t%s\t%s\n", m.Kind, m.ID, m.Port)
			}
			for _, m := range bt {
				fmt.Printf("bluetooth\t%s\t%s\t%s\n", m.Kind, m.ID, m.Port)
			}
			if len(usb) == 0 && len(bt) == 0 {
				fmt.Printf("no possible devices for driver %q\n", driver)
			}
			return nil
		},
	}
	return cmd
}
