package poolswitcher

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/jig0901/Bitcoin-Mining-Pool-Switcher/internal/browser"
)

// FleetOptions tune how miner handles are built.
type FleetOptions struct {
	// Sessions supplies one browser session per operation.
	Sessions browser.Factory
	// Waits overrides the protocol's bounded waits. Zero fields keep defaults.
	Waits Waits
}

// BuildFleet turns declarative configs into runtime miner handles. An
// unrecognized device kind is a configuration error and aborts the whole
// build; nothing is partially constructed.
func BuildFleet(configs []DeviceConfig, opts FleetOptions) ([]*Miner, error) {
	if opts.Sessions == nil {
		return nil, errors.New("fleet: session factory is nil")
	}
	miners := make([]*Miner, 0, len(configs))
	names := make(map[string]struct{}, len(configs))
	for _, cfg := range configs {
		cfg = cfg.WithDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, errors.Wrap(err, "fleet: invalid miner config")
		}
		if _, dup := names[cfg.Name]; dup {
			return nil, errors.Errorf("fleet: duplicate miner name %q", cfg.Name)
		}
		names[cfg.Name] = struct{}{}

		var driver DeviceDriver
		switch DeviceKind(strings.ToLower(string(cfg.Kind))) {
		case KindAntminer:
			driver = newAntminerDriver(cfg, opts.Waits)
		case KindWhatsminer:
			driver = newWhatsminerDriver(cfg, opts.Waits)
		default:
			return nil, protocolErr(FailUnknownDeviceKind, nil, "miner %s: unknown type %q", cfg.Name, cfg.Kind)
		}
		miners = append(miners, NewMiner(cfg, driver, opts.Sessions))
	}
	return miners, nil
}

// FilterFleet restricts miners to the named subset, preserving fleet order.
// An empty filter selects every miner; a filter matching nothing is an input
// error surfaced before any session is opened.
func FilterFleet(miners []*Miner, names []string) ([]*Miner, error) {
	if len(names) == 0 {
		return miners, nil
	}
	wanted := make(map[string]struct{}, len(names))
	for _, name := range names {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			wanted[trimmed] = struct{}{}
		}
	}
	selected := make([]*Miner, 0, len(wanted))
	for _, m := range miners {
		if _, ok := wanted[m.Name()]; ok {
			selected = append(selected, m)
			delete(wanted, m.Name())
		}
	}
	if len(selected) == 0 {
		return nil, errors.Errorf("no miners matched names %v", names)
	}
	if len(wanted) > 0 {
		unknown := make([]string, 0, len(wanted))
		for name := range wanted {
			unknown = append(unknown, name)
		}
		sort.Strings(unknown)
		return nil, errors.Errorf("unknown miner names %v", unknown)
	}
	return selected, nil
}
