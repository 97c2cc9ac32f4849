// Package models contains the database model definitions for the fixture
// catalog, the saved patch, cues and settings.
package models

import (
	"time"
)

// FixtureDefinition represents a fixture type in the catalog.
// Table: fixture_definitions
type FixtureDefinition struct {
	ID           string    `gorm:"column:id;primaryKey"`
	Manufacturer string    `gorm:"column:manufacturer;index:idx_definition_make_model"`
	Model        string    `gorm:"column:model;index:idx_definition_make_model"`
	Type         string    `gorm:"column:type"`
	IsBuiltIn    bool      `gorm:"column:is_built_in;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`

	// Relations
	Channels []ChannelDefinition `gorm:"foreignKey:DefinitionID"`
	Modes    []FixtureMode       `gorm:"foreignKey:DefinitionID"`
}

func (FixtureDefinition) TableName() string { return "fixture_definitions" }

// ChannelDefinition represents a channel within a fixture definition.
// Offset is the channel's index in the definition, referenced by modes.
// Table: channel_definitions
type ChannelDefinition struct {
	ID           string `gorm:"column:id;primaryKey"`
	Name         string `gorm:"column:name"`
	Type         string `gorm:"column:type"`
	Offset       int    `gorm:"column:offset"`
	MinValue     int    `gorm:"column:min_value;default:0"`
	MaxValue     int    `gorm:"column:max_value;default:255"`
	DefaultValue int    `gorm:"column:default_value;default:0"`
	DefinitionID string `gorm:"column:definition_id;index"`
}

func (ChannelDefinition) TableName() string { return "channel_definitions" }

// FixtureMode represents a mode within a fixture definition.
// Table: fixture_modes
type FixtureMode struct {
	ID           string  `gorm:"column:id;primaryKey"`
	Name         string  `gorm:"column:name"`
	ShortName    *string `gorm:"column:short_name"`
	ChannelCount int     `gorm:"column:channel_count"`
	DefinitionID string  `gorm:"column:definition_id;index"`

	// Relations
	ModeChannels []ModeChannel `gorm:"foreignKey:ModeID"`
}

func (FixtureMode) TableName() string { return "fixture_modes" }

// ModeChannel places a channel definition at a slot of a mode.
// Table: mode_channels
type ModeChannel struct {
	ID        string `gorm:"column:id;primaryKey"`
	ModeID    string `gorm:"column:mode_id;index"`
	ChannelID string `gorm:"column:channel_id;index"`
	Offset    int    `gorm:"column:offset"`
}

func (ModeChannel) TableName() string { return "mode_channels" }

// PatchedChannel is a saved fixture instance in the patch.
// Table: patched_channels
type PatchedChannel struct {
	ID           string    `gorm:"column:id;primaryKey"`
	Number       int       `gorm:"column:number;uniqueIndex"`
	Name         string    `gorm:"column:name"`
	DefinitionID string    `gorm:"column:definition_id;index"`
	ModeName     string    `gorm:"column:mode_name"`
	Universe     int       `gorm:"column:universe"`
	StartAddress int       `gorm:"column:start_address"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (PatchedChannel) TableName() string { return "patched_channels" }

// Cue is a recorded universe snapshot.
// Table: cues
type Cue struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Number      int       `gorm:"column:number;uniqueIndex"`
	Name        string    `gorm:"column:name"`
	Universe    int       `gorm:"column:universe"`
	ChannelData string    `gorm:"column:channel_data;default:[]"` // JSON array of ints, -1 = unset
	Notes       *string   `gorm:"column:notes"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Cue) TableName() string { return "cues" }

// Setting represents a system setting.
// Table: settings
type Setting struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Key       string    `gorm:"column:key;uniqueIndex"`
	Value     string    `gorm:"column:value"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Setting) TableName() string { return "settings" }

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&FixtureDefinition{},
		&ChannelDefinition{},
		&FixtureMode{},
		&ModeChannel{},
		&PatchedChannel{},
		&Cue{},
		&Setting{},
	}
}
