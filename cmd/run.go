package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	poolswitcher "github.com/jig0901/Bitcoin-Mining-Pool-Switcher"
	"github.com/jig0901/Bitcoin-Mining-Pool-Switcher/internal/browser"
	"github.com/jig0901/Bitcoin-Mining-Pool-Switcher/internal/config"
	"github.com/jig0901/Bitcoin-Mining-Pool-Switcher/internal/history"
)

var (
	flagConfig   string
	flagPool     string
	flagIndex    int
	flagMiners   []string
	flagReboot   bool
	flagHeadless bool
	flagWorkers  int
)

func runRoot(cmd *cobra.Command, args []string) error {
	file, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	factory := &browser.ChromeFactory{
		Headless:        flagHeadless,
		PageLoadTimeout: config.Duration("POOLSWITCHER_PAGE_LOAD_TIMEOUT", 0),
	}
	waits := poolswitcher.Waits{
		Landmark: config.Duration("POOLSWITCHER_LANDMARK_WAIT", 0),
		Confirm:  config.Duration("POOLSWITCHER_CONFIRM_WAIT", 0),
	}
	fleet, err := poolswitcher.BuildFleet(file.Miners, poolswitcher.FleetOptions{
		Sessions: factory,
		Waits:    waits,
	})
	if err != nil {
		return err
	}
	selected, err := poolswitcher.FilterFleet(fleet, flagMiners)
	if err != nil {
		return err
	}

	recorder, closeRecorder := openRecorder()
	defer closeRecorder()

	workers := flagWorkers
	if workers <= 0 {
		workers = config.Int("POOLSWITCHER_WORKERS", 1)
	}
	dispatcher := poolswitcher.NewDispatcher(poolswitcher.DispatcherConfig{
		Workers:  workers,
		Recorder: recorder,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := poolswitcher.Request{PoolKey: flagPool, Slot: flagIndex, Reboot: flagReboot}
	if req.Wants() {
		return runOnce(ctx, dispatcher, selected, req)
	}
	return runScheduled(ctx, dispatcher, fleet, file)
}

func runOnce(ctx context.Context, dispatcher *poolswitcher.Dispatcher, miners []*poolswitcher.Miner, req poolswitcher.Request) error {
	results := dispatcher.Dispatch(ctx, miners, req)
	for _, res := range results {
		if res.OK() {
			log.Info().Str("miner", res.Miner).Str("operation", string(res.Operation)).Msg("ok")
		} else {
			log.Error().
				Str("miner", res.Miner).
				Str("operation", string(res.Operation)).
				Str("failure", string(res.Failure)).
				Str("detail", res.Detail).
				Msg("failed")
		}
	}
	if failed := poolswitcher.FailedCount(results); failed > 0 {
		return errors.Errorf("%d of %d operations failed", failed, len(results))
	}
	return nil
}

// runScheduled blocks for the process lifetime; failed firings are logged and
// the schedule continues.
func runScheduled(ctx context.Context, dispatcher *poolswitcher.Dispatcher, fleet []*poolswitcher.Miner, file *config.File) error {
	if len(file.Schedule) == 0 {
		return errors.New("no --pool/--reboot given and config has no schedule entries")
	}
	scheduler, err := poolswitcher.NewScheduler(fleet, dispatcher, file.Timezone)
	if err != nil {
		return err
	}
	for _, entry := range file.Schedule {
		if err := scheduler.Add(entry); err != nil {
			return err
		}
	}
	scheduler.Run(ctx)
	return nil
}

// openRecorder opens the history store, degrading to a no-op recorder when
// the local database is unavailable.
func openRecorder() (poolswitcher.Recorder, func()) {
	store, err := history.Open("")
	if err != nil {
		log.Warn().Err(err).Msg("history store unavailable, results will not be persisted")
		return nil, func() {}
	}
	return store, func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("close history store failed")
		}
	}
}
