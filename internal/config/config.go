// Package config loads the declarative fleet file and process-level
// environment overrides.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	poolswitcher "github.com/jig0901/Bitcoin-Mining-Pool-Switcher"
)

// File is the parsed fleet configuration.
type File struct {
	Timezone string                       `yaml:"timezone"`
	Miners   []poolswitcher.DeviceConfig  `yaml:"miners"`
	Schedule []poolswitcher.ScheduleEntry `yaml:"schedule"`
}

// Load reads and validates the YAML fleet file at path. Validation covers the
// declarative shape only; device kinds are checked at fleet build time.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %s failed", path)
	}
	return Parse(raw)
}

// Parse decodes and validates raw YAML fleet configuration.
func Parse(raw []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Wrap(err, "config: parse yaml failed")
	}
	if len(file.Miners) == 0 {
		return nil, errors.New("config: no miners defined")
	}
	for i, miner := range file.Miners {
		miner = miner.WithDefaults()
		if err := miner.Validate(); err != nil {
			return nil, errors.Wrapf(err, "config: miners[%d]", i)
		}
		file.Miners[i] = miner
	}
	for i, entry := range file.Schedule {
		if err := entry.Validate(); err != nil {
			return nil, errors.Wrapf(err, "config: schedule[%d]", i)
		}
	}
	return &file, nil
}
