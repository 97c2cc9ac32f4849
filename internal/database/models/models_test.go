package models

import "testing"

func TestTableNames(t *testing.T) {
	tests := []struct {
		name      string
		model     interface{ TableName() string }
		tableName string
	}{
		{"FixtureDefinition", FixtureDefinition{}, "fixture_definitions"},
		{"ChannelDefinition", ChannelDefinition{}, "channel_definitions"},
		{"FixtureMode", FixtureMode{}, "fixture_modes"},
		{"ModeChannel", ModeChannel{}, "mode_channels"},
		{"PatchedChannel", PatchedChannel{}, "patched_channels"},
		{"Cue", Cue{}, "cues"},
		{"Setting", Setting{}, "settings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.model.TableName(); got != tt.tableName {
				t.Errorf("%s.TableName() = %q, want %q", tt.name, got, tt.tableName)
			}
		})
	}
}

func TestAll(t *testing.T) {
	if got := len(All()); got != 7 {
		t.Errorf("All() returned %d models, want 7", got)
	}
}
