package show

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bbernstein/lacylights-patch/internal/database/models"
	"github.com/bbernstein/lacylights-patch/internal/database/repositories"
	"github.com/bbernstein/lacylights-patch/internal/fixture"
)

var (
	ErrDefinitionExists = errors.New("fixture definition already exists")
	ErrDefinitionInUse  = errors.New("fixture definition is patched")
)

// ChannelSpec is one channel of a new definition.
type ChannelSpec struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	MinValue     int    `json:"minValue,omitempty"`
	MaxValue     int    `json:"maxValue,omitempty"`
	DefaultValue int    `json:"defaultValue,omitempty"`
}

// ModeSpec is one mode of a new definition. Channels index into the
// definition's channel list in slot order.
type ModeSpec struct {
	Name      string `json:"name"`
	ShortName string `json:"shortName,omitempty"`
	Channels  []int  `json:"channels"`
}

// DefinitionRequest adds a fixture type to the catalog.
type DefinitionRequest struct {
	Manufacturer string        `json:"manufacturer"`
	Model        string        `json:"model"`
	Type         string        `json:"type"`
	Channels     []ChannelSpec `json:"channels"`
	Modes        []ModeSpec    `json:"modes"`
}

// ModeSummary describes a mode of a catalog definition.
type ModeSummary struct {
	Name         string `json:"name"`
	ChannelCount int    `json:"channelCount"`
}

// DefinitionSummary describes a catalog definition.
type DefinitionSummary struct {
	ID           string        `json:"id"`
	Manufacturer string        `json:"manufacturer"`
	Model        string        `json:"model"`
	Type         string        `json:"type"`
	Modes        []ModeSummary `json:"modes"`
}

func (req DefinitionRequest) validate() error {
	invalid := func(reason string) error {
		return &fixture.ConfigurationError{Profile: req.Manufacturer + " " + req.Model, ChannelIndex: -1, Reason: reason}
	}
	if strings.TrimSpace(req.Manufacturer) == "" || strings.TrimSpace(req.Model) == "" {
		return invalid("manufacturer and model are required")
	}
	if len(req.Channels) == 0 {
		return invalid("definition has no channels")
	}
	if len(req.Modes) == 0 {
		return invalid("definition has no modes")
	}
	seen := make(map[string]bool, len(req.Modes))
	for _, m := range req.Modes {
		if m.Name == "" || seen[m.Name] {
			return invalid(fmt.Sprintf("mode name %q is empty or repeated", m.Name))
		}
		seen[m.Name] = true
		if len(m.Channels) == 0 {
			return &fixture.ConfigurationError{Profile: req.Manufacturer + " " + req.Model, Mode: m.Name, ChannelIndex: -1, Reason: "channel mode has no channels"}
		}
		for _, idx := range m.Channels {
			if idx < 0 || idx >= len(req.Channels) {
				return &fixture.ConfigurationError{Profile: req.Manufacturer + " " + req.Model, Mode: m.Name, ChannelIndex: idx, Reason: "channel not defined in profile"}
			}
		}
	}
	return nil
}

// CreateDefinition validates and stores a catalog definition.
func (s *Service) CreateDefinition(ctx context.Context, req DefinitionRequest) (*DefinitionSummary, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	existing, err := s.profiles.FindDefinitionByManufacturerModel(ctx, req.Manufacturer, req.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to check definition: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Manufacturer, req.Model, ErrDefinitionExists)
	}

	def := &models.FixtureDefinition{Manufacturer: req.Manufacturer, Model: req.Model, Type: req.Type}
	channels := make([]models.ChannelDefinition, len(req.Channels))
	for i, c := range req.Channels {
		maxValue := c.MaxValue
		if maxValue == 0 {
			maxValue = 255
		}
		channels[i] = models.ChannelDefinition{
			Name:         c.Name,
			Type:         strings.ToUpper(c.Type),
			MinValue:     c.MinValue,
			MaxValue:     maxValue,
			DefaultValue: c.DefaultValue,
		}
	}
	modes := make([]repositories.ModeInput, len(req.Modes))
	for i, m := range req.Modes {
		modes[i] = repositories.ModeInput{Name: m.Name, ChannelOffsets: m.Channels}
		if m.ShortName != "" {
			shortName := m.ShortName
			modes[i].ShortName = &shortName
		}
	}

	if err := s.profiles.CreateDefinition(ctx, def, channels, modes); err != nil {
		return nil, fmt.Errorf("failed to save definition: %w", err)
	}
	log.Printf("📦 Added fixture definition %s %s (%d modes)", def.Manufacturer, def.Model, len(modes))
	return s.summarize(ctx, *def)
}

// ListDefinitions returns the catalog ordered by manufacturer and model.
func (s *Service) ListDefinitions(ctx context.Context) ([]DefinitionSummary, error) {
	defs, err := s.profiles.FindAllDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	out := make([]DefinitionSummary, 0, len(defs))
	for _, def := range defs {
		summary, err := s.summarize(ctx, def)
		if err != nil {
			return nil, err
		}
		out = append(out, *summary)
	}
	return out, nil
}

func (s *Service) summarize(ctx context.Context, def models.FixtureDefinition) (*DefinitionSummary, error) {
	modes, err := s.profiles.GetDefinitionModes(ctx, def.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load modes of %s: %w", def.ID, err)
	}
	summary := &DefinitionSummary{
		ID:           def.ID,
		Manufacturer: def.Manufacturer,
		Model:        def.Model,
		Type:         def.Type,
		Modes:        make([]ModeSummary, 0, len(modes)),
	}
	for _, m := range modes {
		summary.Modes = append(summary.Modes, ModeSummary{Name: m.Name, ChannelCount: m.ChannelCount})
	}
	return summary, nil
}

// DeleteDefinition removes a definition that no saved channel uses.
func (s *Service) DeleteDefinition(ctx context.Context, id string) error {
	def, err := s.profiles.FindDefinitionByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load definition: %w", err)
	}
	if def == nil {
		return fmt.Errorf("definition %s: %w", id, ErrDefinitionNotFound)
	}

	rows, err := s.channels.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load patch: %w", err)
	}
	for _, row := range rows {
		if row.DefinitionID == id {
			return fmt.Errorf("definition %s used by channel %d: %w", id, row.Number, ErrDefinitionInUse)
		}
	}

	if err := s.profiles.DeleteDefinition(ctx, id); err != nil {
		return fmt.Errorf("failed to delete definition %s: %w", id, err)
	}
	log.Printf("🗑️  Deleted fixture definition %s %s", def.Manufacturer, def.Model)
	return nil
}
