package farm

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseSettings_DefaultsForMissingKeys(t *testing.T) {
	s, err := ParseSettings([]byte("priority_games: [\"A\", \"B\"]\n"))
	if err != nil {
		t.Fatalf("ParseSettings() error = %v", err)
	}

	if len(s.PriorityGames) != 2 || s.PriorityGames[0] != "A" {
		t.Errorf("PriorityGames = %v", s.PriorityGames)
	}
	if !s.AutoClaim || !s.AutoSelect || !s.AutoSwitch {
		t.Errorf("automation flags should default to true: %+v", s)
	}
	if s.ObeyPriority {
		t.Error("ObeyPriority should default to false")
	}
}

func TestParseSettings_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_FARM_OBEY", "true")

	s, err := ParseSettings([]byte("obey_priority: ${TEST_FARM_OBEY:false}\nauto_claim: ${TEST_FARM_UNSET:false}\n"))
	if err != nil {
		t.Fatalf("ParseSettings() error = %v", err)
	}
	if !s.ObeyPriority {
		t.Error("ObeyPriority should come from the environment")
	}
	if s.AutoClaim {
		t.Error("AutoClaim should use the inline default")
	}
}

func TestParseSettings_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"duplicate priority", "priority_games: [A, A]", "duplicate game in priority_games"},
		{"empty excluded", "excluded_games: [\"\"]", "empty game name"},
		{"prioritized and excluded", "priority_games: [A]\nexcluded_games: [A]", "both prioritized and excluded"},
		{"malformed", "priority_games: {", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSettings([]byte(tt.yaml))
			if err == nil {
				t.Fatal("ParseSettings() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, expected to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "farm.yaml")
	if err := os.WriteFile(path, []byte("excluded_games: [C]\nauto_switch: false\n"), 0o600); err != nil {
		t.Fatalf("failed to write settings: %v", err)
	}

	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if len(s.ExcludedGames) != 1 || s.AutoSwitch {
		t.Errorf("LoadSettings() = %+v", s)
	}

	if _, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadSettings() expected error for missing file")
	}
}

func TestLoadSettings_ShippedFile(t *testing.T) {
	if _, err := LoadSettings("../../config/farm.yaml"); err != nil {
		t.Errorf("shipped config/farm.yaml is invalid: %v", err)
	}
}
