package farm

import (
	"fmt"
	"os"

	"github.com/AccelByte/extend-drop-farmer/pkg/common"
	"gopkg.in/yaml.v3"
)

// Settings are the user's farming preferences.
type Settings struct {
	PriorityGames []string `yaml:"priority_games" json:"priorityGames"`
	ExcludedGames []string `yaml:"excluded_games" json:"excludedGames"`
	AutoClaim     bool     `yaml:"auto_claim" json:"autoClaim"`
	AutoSelect    bool     `yaml:"auto_select" json:"autoSelect"`
	AutoSwitch    bool     `yaml:"auto_switch" json:"autoSwitch"`
	ObeyPriority  bool     `yaml:"obey_priority" json:"obeyPriority"`
}

// DefaultSettings enables every automation and sets no priorities.
func DefaultSettings() Settings {
	return Settings{
		AutoClaim:  true,
		AutoSelect: true,
		AutoSwitch: true,
	}
}

// LoadSettings loads farm settings from a YAML file. Keys missing from the
// file keep their DefaultSettings value.
// Supports environment variable expansion in the form ${VAR_NAME} or ${VAR_NAME:default}.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}
	return ParseSettings(data)
}

// ParseSettings parses and validates YAML settings.
func ParseSettings(data []byte) (*Settings, error) {
	expanded := common.ExpandEnvVars(string(data))

	settings := DefaultSettings()
	if err := yaml.Unmarshal([]byte(expanded), &settings); err != nil {
		return nil, fmt.Errorf("failed to parse YAML settings: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return &settings, nil
}

// Validate checks the game lists for common errors.
func (s *Settings) Validate() error {
	if err := validateGames("priority_games", s.PriorityGames); err != nil {
		return err
	}
	if err := validateGames("excluded_games", s.ExcludedGames); err != nil {
		return err
	}

	excluded := make(map[string]bool, len(s.ExcludedGames))
	for _, g := range s.ExcludedGames {
		excluded[g] = true
	}
	for _, g := range s.PriorityGames {
		if excluded[g] {
			return fmt.Errorf("game %q is both prioritized and excluded", g)
		}
	}

	return nil
}

func validateGames(field string, games []string) error {
	seen := make(map[string]bool, len(games))
	for _, g := range games {
		if g == "" {
			return fmt.Errorf("%s contains an empty game name", field)
		}
		if seen[g] {
			return fmt.Errorf("duplicate game in %s: %s", field, g)
		}
		seen[g] = true
	}
	return nil
}
