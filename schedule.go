package poolswitcher

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler binds schedule entries to recurring cron triggers. Each firing
// dispatches a pool switch against the full fleet; a failed firing is logged
// and the schedule keeps running.
type Scheduler struct {
	cron       *cron.Cron
	dispatcher *Dispatcher
	miners     []*Miner
}

// NewScheduler builds a scheduler in the given IANA timezone ("" = UTC).
func NewScheduler(miners []*Miner, dispatcher *Dispatcher, timezone string) (*Scheduler, error) {
	if dispatcher == nil {
		return nil, errors.New("scheduler: dispatcher is nil")
	}
	loc := time.UTC
	if timezone != "" {
		parsed, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, errors.Wrapf(err, "scheduler: invalid timezone %q", timezone)
		}
		loc = parsed
	}
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		dispatcher: dispatcher,
		miners:     miners,
	}, nil
}

// Add registers one entry. Invalid cron expressions are rejected up front so
// a bad config fails at startup, not at first firing.
func (s *Scheduler) Add(entry ScheduleEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	_, err := s.cron.AddFunc(entry.Cron, func() {
		s.Fire(context.Background(), entry.PoolKey)
	})
	if err != nil {
		return errors.Wrapf(err, "scheduler: register %q failed", entry.Cron)
	}
	log.Info().Str("cron", entry.Cron).Str("pool_key", entry.PoolKey).Msg("scheduled pool switch")
	return nil
}

// Fire runs one scheduled pool switch immediately against the full fleet.
// Exposed so triggers and tests share the same entry point.
func (s *Scheduler) Fire(ctx context.Context, poolKey string) []Result {
	results := s.dispatcher.Dispatch(ctx, s.miners, Request{PoolKey: poolKey, Slot: 1})
	if failed := FailedCount(results); failed > 0 {
		log.Error().
			Str("pool_key", poolKey).
			Int("failed", failed).
			Int("total", len(results)).
			Msg("scheduled pool switch had failures")
	} else {
		log.Info().Str("pool_key", poolKey).Int("total", len(results)).Msg("scheduled pool switch complete")
	}
	return results
}

// Run starts the cron loop and blocks until the context is cancelled, then
// waits for any in-flight firing to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	log.Info().Int("entries", len(s.cron.Entries())).Msg("scheduler started")
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	log.Info().Msg("scheduler stopped")
}
