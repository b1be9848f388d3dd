package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/braillekit/detect/internal/env"
)

var rootCmd = &cobra.Command{
	Use:   "braillescan",
	Short: "Braille display auto-detection tools",
	Long: `braillescan matches a hardware inventory snapshot against the built-in
driver registry: run one-shot or continuous detection scans, list matching
drivers for connected devices, and inspect the scan history.`,
}

var (
	rootInventory string
	rootRegistry  string
)

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	rootCmd.PersistentFlags().StringVar(&rootInventory, "inventory", "", "path to a YAML hardware inventory snapshot")
	rootCmd.PersistentFlags().StringVar(&rootRegistry, "registry", "", "optional YAML driver registration file loaded after the built-in tables")
	rootCmd.AddCommand(
		newScanCmd(),
		newDriversCmd(),
		newDevicesCmd(),
		newHistoryCmd(),
	)
	_ = env.Ensure()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("braillescan command failed")
	}
}
