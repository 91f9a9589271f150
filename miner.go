package poolswitcher

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jig0901/Bitcoin-Mining-Pool-Switcher/internal/browser"
)

// Default bounded waits inside the session protocol. Miner web UIs render
// slowly while hashing, so the landmark wait is generous.
const (
	defaultLandmarkWait = 15 * time.Second
	defaultConfirmWait  = 10 * time.Second
)

// Waits bundles the protocol's bounded wait durations.
type Waits struct {
	// Landmark bounds waits for page/login landmark elements.
	Landmark time.Duration
	// Confirm bounds waits for best-effort confirmation banners and dialogs.
	Confirm time.Duration
}

func (w Waits) withDefaults() Waits {
	if w.Landmark <= 0 {
		w.Landmark = defaultLandmarkWait
	}
	if w.Confirm <= 0 {
		w.Confirm = defaultConfirmWait
	}
	return w
}

// DeviceDriver is the vendor-specific hook set the protocol sequences.
// Hooks report failures as ProtocolError so the miner handle can map them to
// typed Results; any other error is classified as a session fault.
type DeviceDriver interface {
	// Login authenticates and waits for the post-login landmark.
	Login(ctx context.Context, s browser.Session) error
	// OpenPoolPage navigates to the pool configuration surface.
	OpenPoolPage(ctx context.Context, s browser.Session) error
	// ApplyPool writes the pool endpoint into the 1-based slot.
	ApplyPool(ctx context.Context, s browser.Session, pool Pool, slot int) error
	// Save persists the configuration. Confirmation banners are best-effort.
	Save(ctx context.Context, s browser.Session) error
	// Reboot triggers a device restart, activating a confirmation dialog if
	// one appears.
	Reboot(ctx context.Context, s browser.Session) error
}

// Miner is the runtime handle for one configured device. The browser session
// is opened per operation and owned exclusively for its duration; handles
// never share or persist sessions.
type Miner struct {
	cfg      DeviceConfig
	driver   DeviceDriver
	sessions browser.Factory
}

// NewMiner builds a handle from an already-validated config and its driver.
func NewMiner(cfg DeviceConfig, driver DeviceDriver, sessions browser.Factory) *Miner {
	return &Miner{cfg: cfg, driver: driver, sessions: sessions}
}

// Name returns the unique fleet name of the miner.
func (m *Miner) Name() string { return m.cfg.Name }

// Pools returns the configured pool presets keyed by operator-chosen ids.
func (m *Miner) Pools() map[string]Pool { return m.cfg.Pools }

// SwitchPool applies the named pool preset into the given 1-based slot.
// An unknown pool key fails before any session is opened.
func (m *Miner) SwitchPool(ctx context.Context, poolKey string, slot int) Result {
	pool, ok := m.cfg.Pools[poolKey]
	if !ok {
		log.Error().Str("miner", m.cfg.Name).Str("pool_key", poolKey).Msg("unknown pool key")
		return failedResult(m.cfg.Name, OpPoolSwitch,
			protocolErr(FailUnknownPoolKey, nil, "pool key %q not configured", poolKey))
	}
	if slot < 1 {
		slot = 1
	}
	log.Info().
		Str("miner", m.cfg.Name).
		Str("pool_key", poolKey).
		Int("slot", slot).
		Msg("switching pool")

	res := m.withSession(ctx, OpPoolSwitch, func(ctx context.Context, s browser.Session) error {
		if err := m.driver.Login(ctx, s); err != nil {
			return err
		}
		if err := m.driver.OpenPoolPage(ctx, s); err != nil {
			return err
		}
		if err := m.driver.ApplyPool(ctx, s, pool, slot); err != nil {
			return err
		}
		return m.driver.Save(ctx, s)
	})
	if res.OK() {
		log.Info().Str("miner", m.cfg.Name).Str("pool_key", poolKey).Msg("pool switch complete")
	} else {
		log.Error().Str("miner", m.cfg.Name).Str("detail", res.Detail).Msg("pool switch failed")
	}
	return res
}

// Reboot restarts the miner through its web UI.
func (m *Miner) Reboot(ctx context.Context) Result {
	log.Info().Str("miner", m.cfg.Name).Msg("initiating reboot")
	res := m.withSession(ctx, OpReboot, func(ctx context.Context, s browser.Session) error {
		if err := m.driver.Login(ctx, s); err != nil {
			return err
		}
		return m.driver.Reboot(ctx, s)
	})
	if res.OK() {
		log.Info().Str("miner", m.cfg.Name).Msg("reboot triggered")
	} else {
		log.Error().Str("miner", m.cfg.Name).Str("detail", res.Detail).Msg("reboot failed")
	}
	return res
}

// withSession opens one session, runs fn, and guarantees exactly one close on
// every exit path, including hook panics.
func (m *Miner) withSession(ctx context.Context, op Operation, fn func(context.Context, browser.Session) error) (res Result) {
	s, err := m.sessions.OpenSession(ctx)
	if err != nil {
		return failedResult(m.cfg.Name, op,
			protocolErr(FailSession, err, "open automation session"))
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			log.Warn().Err(cerr).Str("miner", m.cfg.Name).Msg("session close failed")
			if res.OK() {
				res = failedResult(m.cfg.Name, op,
					protocolErr(FailSession, cerr, "close automation session"))
			}
		}
	}()
	if err := fn(ctx, s); err != nil {
		return failedResult(m.cfg.Name, op, err)
	}
	return successResult(m.cfg.Name, op)
}

// setField writes val into the first selector alias that exists on the page.
// Firmware revisions rename field ids; trying aliases in order keeps the
// behavior deterministic without pinning to one revision.
func setField(ctx context.Context, s browser.Session, val string, aliases ...browser.Selector) error {
	for _, sel := range aliases {
		ok, err := s.Exists(ctx, sel)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		return s.SetValue(ctx, sel, val)
	}
	return protocolErr(FailFieldNotFound, nil, "none of %v present", aliases)
}

// clickFirst activates the first selector alias that exists on the page.
func clickFirst(ctx context.Context, s browser.Session, aliases ...browser.Selector) error {
	for _, sel := range aliases {
		ok, err := s.Exists(ctx, sel)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		return s.Click(ctx, sel)
	}
	return protocolErr(FailFieldNotFound, nil, "none of %v present", aliases)
}
