package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/braillekit/detect"
	"github.com/braillekit/detect/internal/config"
	"github.com/braillekit/detect/pkg/scanlog"
)

// envScanlogDisable turns the scan log sink off by default.
const envScanlogDisable = "DETECT_SCANLOG_DISABLE"

func newScanCmd() *cobra.Command {
	var (
		usb       bool
		bluetooth bool
		limit     []string
		watch     time.Duration
		noLog     bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a detection scan against the inventory snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := buildEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			cycleCh := make(chan *detect.ScanCycleRecord, 1)
			recorders := multiRecorder{recorderFunc(func(ctx context.Context, rec *detect.ScanCycleRecord) error {
				select {
				case cycleCh <- rec:
				default:
				}
				return nil
			})}
			if !noLog {
				dbPath, err := scanlog.ResolveDatabasePath()
				if err != nil {
					return err
				}
				store, err := scanlog.Open(dbPath)
				if err != nil {
					return err
				}
				defer func() { _ = store.Close() }()
				recorders = append(recorders, store)
			}

			var effectiveLimit []string
			if len(limit) > 0 {
				effectiveLimit = limit
			}
			detector, err := detect.NewDetector(detect.DetectorConfig{
				Engine: engine,
				TrySelect: func(driver string, match detect.DeviceMatch) bool {
					fmt.Printf("%s\t%s\t%s\t%s\n", driver, match.Kind, match.ID, match.Port)
					// One match per cycle is enough for the CLI.
					return true
				},
				Catalog:  envCatalog{},
				Recorder: recorders,
			})
			if err != nil {
				return err
			}
			defer detector.Terminate()

			if watch <= 0 {
				detector.Rescan(usb, bluetooth, effectiveLimit)
				rec := <-cycleCh
				log.Info().
					Str("outcome", rec.Outcome).
					Int("candidates", rec.Candidates).
					Msg("scan finished")
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			group, gctx := errgroup.WithContext(ctx)
			detect.RunSupervised(gctx, group, "braillescan watch loop", func(ctx context.Context) error {
				ticker := time.NewTicker(watch)
				defer ticker.Stop()
				detector.Rescan(usb, bluetooth, effectiveLimit)
				for {
					select {
					case <-ctx.Done():
						return nil
					case rec := <-cycleCh:
						log.Info().
							Str("outcome", rec.Outcome).
							Int("candidates", rec.Candidates).
							Msg("scan cycle finished")
					case <-ticker.C:
						detector.Rescan(usb, bluetooth, effectiveLimit)
					}
				}
			})
			return group.Wait()
		},
	}
	cmd.Flags().BoolVar(&usb, "usb", true, "scan USB devices")
	cmd.Flags().BoolVar(&bluetooth, "bluetooth", true, "scan Bluetooth devices")
	cmd.Flags().StringSliceVar(&limit, "limit", nil, "restrict detection to these drivers")
	cmd.Flags().DurationVar(&watch, "watch", 0, "rescan continuously at this interval (0 scans once)")
	cmd.Flags().BoolVar(&noLog, "no-log", config.Bool(envScanlogDisable, false), "do not record cycles to the scan log database")
	return cmd
}
