package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/braillekit/detect/pkg/scanlog"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent scan cycles from the scan log database",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, err := scanlog.ResolveDatabasePath()
			if err != nil {
				return err
			}
			store, err := scanlog.Open(dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			cycles, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, c := range cycles {
				line := fmt.Sprintf("%s\t%s\t%d candidates",
					c.StartAt.Format(time.RFC3339), c.Outcome, c.Candidates)
				if c.Driver != "" {
					line += fmt.Sprintf("\t%s (%s)", c.Driver, c.DeviceID)
				}
				if c.Error != "" {
					line += "\t" + c.Error
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of cycles to show")
	return cmd
}
