package eventmodels

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LadderConfigYAML seeds the engine's initial settings from an optional
// config file. Missing fields keep their defaults.
type LadderConfigYAML struct {
	Settings Settings `yaml:"settings"`
}

func LoadLadderConfigYAML(path string) (Settings, error) {
	settings := NewDefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("LoadLadderConfigYAML: failed to read %s: %w", path, err)
	}

	cfg := LadderConfigYAML{Settings: settings}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return settings, fmt.Errorf("LoadLadderConfigYAML: failed to unmarshal %s: %w", path, err)
	}

	if err := cfg.Settings.Validate(); err != nil {
		return settings, fmt.Errorf("LoadLadderConfigYAML: %w", err)
	}

	cfg.Settings.Clamp()

	return cfg.Settings, nil
}
