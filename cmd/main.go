package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jig0901/Bitcoin-Mining-Pool-Switcher/internal/env"
)

var rootCmd = &cobra.Command{
	Use:   "poolswitcher",
	Short: "Switch ASIC miners between pool presets and/or reboot them",
	Long: `poolswitcher drives the web admin UI of Antminer and Whatsminer
devices to apply pool presets or trigger reboots, either on demand or on a
cron schedule from the fleet config. Without --pool or --reboot it enters
scheduled mode.`,
	RunE: runRoot,
}

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	rootCmd.Flags().StringVar(&flagConfig, "config", "config.yaml", "Path to YAML fleet config")
	rootCmd.Flags().StringVar(&flagPool, "pool", "", "Pool key to apply immediately (skips scheduler)")
	rootCmd.Flags().IntVar(&flagIndex, "index", 1, "Pool slot index (1-based)")
	rootCmd.Flags().StringSliceVar(&flagMiners, "miner", nil, "Restrict to named miners")
	rootCmd.Flags().BoolVar(&flagReboot, "reboot", false, "Reboot miners after switching (or standalone)")
	rootCmd.Flags().BoolVar(&flagHeadless, "headless", true, "Run Chrome headless")
	rootCmd.Flags().IntVar(&flagWorkers, "workers", 0, "Concurrent miner sessions (default 1)")
	rootCmd.AddCommand(newHistoryCmd())
	_ = env.Ensure()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("poolswitcher command failed")
	}
}
