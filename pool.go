package poolswitcher

import (
	"strings"

	"github.com/pkg/errors"
)

const defaultPoolPassword = "x"

// Pool describes one mining-pool endpoint. Immutable after config load.
type Pool struct {
	URL      string `yaml:"url"`
	Worker   string `yaml:"worker"`
	Password string `yaml:"password"`
}

// Validate checks the fields the stratum endpoint cannot do without.
func (p Pool) Validate() error {
	if strings.TrimSpace(p.URL) == "" {
		return errors.New("pool url is empty")
	}
	if strings.TrimSpace(p.Worker) == "" {
		return errors.New("pool worker is empty")
	}
	return nil
}

// withDefaults fills the conventional "x" password most pools accept.
func (p Pool) withDefaults() Pool {
	if strings.TrimSpace(p.Password) == "" {
		p.Password = defaultPoolPassword
	}
	return p
}

// DeviceKind selects the vendor-specific driver for a miner.
type DeviceKind string

const (
	KindAntminer   DeviceKind = "antminer"
	KindWhatsminer DeviceKind = "whatsminer"
)

// DeviceConfig is the declarative description of one miner in the fleet.
type DeviceConfig struct {
	Name     string          `yaml:"name"`
	IP       string          `yaml:"ip"`
	Username string          `yaml:"username"`
	Password string          `yaml:"password"`
	Kind     DeviceKind      `yaml:"type"`
	Pools    map[string]Pool `yaml:"pools"`
}

// WithDefaults applies the firmware factory credentials and pool defaults.
func (c DeviceConfig) WithDefaults() DeviceConfig {
	if strings.TrimSpace(c.Username) == "" {
		c.Username = "root"
	}
	if strings.TrimSpace(c.Password) == "" {
		c.Password = "admin"
	}
	if c.Kind == "" {
		c.Kind = KindAntminer
	}
	pools := make(map[string]Pool, len(c.Pools))
	for key, pool := range c.Pools {
		pools[key] = pool.withDefaults()
	}
	c.Pools = pools
	return c
}

// Validate checks the declarative shape before any session is opened.
func (c DeviceConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("miner name is empty")
	}
	if strings.TrimSpace(c.IP) == "" {
		return errors.Errorf("miner %s: ip is empty", c.Name)
	}
	for key, pool := range c.Pools {
		if err := pool.Validate(); err != nil {
			return errors.Wrapf(err, "miner %s: pool %q", c.Name, key)
		}
	}
	return nil
}

// ScheduleEntry binds a cron expression to a pool preset.
type ScheduleEntry struct {
	Cron    string `yaml:"cron"`
	PoolKey string `yaml:"pool_key"`
}

// Validate rejects incomplete schedule rows at load time.
func (e ScheduleEntry) Validate() error {
	if strings.TrimSpace(e.Cron) == "" {
		return errors.New("schedule entry: cron expression is empty")
	}
	if strings.TrimSpace(e.PoolKey) == "" {
		return errors.New("schedule entry: pool_key is empty")
	}
	return nil
}
