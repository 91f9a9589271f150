package poolswitcher

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog/log"
)

// Request describes one dispatch against a selected subset of the fleet.
// PoolKey empty means no pool switch; Reboot false means no reboot. At the
// dispatch level the two operations are independent: a failed switch never
// suppresses the reboot.
type Request struct {
	PoolKey string
	Slot    int
	Reboot  bool
}

// Wants reports whether the request carries any operation at all.
func (r Request) Wants() bool { return r.PoolKey != "" || r.Reboot }

// DispatcherConfig controls dispatch behavior.
type DispatcherConfig struct {
	// Workers bounds how many miners are driven concurrently. The remote
	// session is the bottleneck, so the default of 1 keeps the classic
	// sequential behavior; each worker owns at most one session.
	Workers int
	// Recorder receives every Result. Nil installs a no-op.
	Recorder Recorder
}

// Dispatcher fans a Request out across miner handles with per-device failure
// isolation: no miner's outcome affects another's execution.
type Dispatcher struct {
	workers  int
	recorder Recorder
}

// NewDispatcher builds a dispatcher, applying defaults for zero fields.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Recorder == nil {
		cfg.Recorder = noopRecorder{}
	}
	return &Dispatcher{workers: cfg.Workers, recorder: cfg.Recorder}
}

// Dispatch runs the requested operations once per miner and returns one
// Result per (miner, operation) pair in fleet order, pool switch before
// reboot for each miner.
func (d *Dispatcher) Dispatch(ctx context.Context, miners []*Miner, req Request) []Result {
	if !req.Wants() {
		log.Warn().Msg("dispatch called without pool key or reboot flag")
		return nil
	}
	if req.Slot < 1 {
		req.Slot = 1
	}

	perMiner := make([][]Result, len(miners))
	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup
	for i, m := range miners {
		wg.Add(1)
		go func(idx int, m *Miner) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			perMiner[idx] = d.runMiner(ctx, m, req)
		}(i, m)
	}
	wg.Wait()

	results := make([]Result, 0, 2*len(miners))
	for _, batch := range perMiner {
		results = append(results, batch...)
	}
	for _, res := range results {
		if err := d.recorder.Record(ctx, res); err != nil {
			log.Error().Err(err).Str("miner", res.Miner).Msg("record result failed")
		}
	}
	return results
}

func (d *Dispatcher) runMiner(ctx context.Context, m *Miner, req Request) []Result {
	out := make([]Result, 0, 2)
	if req.PoolKey != "" {
		out = append(out, safeResult(m.Name(), OpPoolSwitch, func() Result {
			return m.SwitchPool(ctx, req.PoolKey, req.Slot)
		}))
	}
	if req.Reboot {
		out = append(out, safeResult(m.Name(), OpReboot, func() Result {
			return m.Reboot(ctx)
		}))
	}
	return out
}

// safeResult confines a panicking driver to the miner it was operating on.
func safeResult(miner string, op Operation, fn func() Result) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("miner", miner).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("miner operation panicked")
			res = Result{
				Miner:     miner,
				Operation: op,
				Failure:   FailSession,
				Detail:    fmt.Sprintf("panic: %v", r),
			}
		}
	}()
	return fn()
}

// FailedCount tallies failures across a result batch.
func FailedCount(results []Result) int {
	failed := 0
	for _, res := range results {
		if !res.OK() {
			failed++
		}
	}
	return failed
}
