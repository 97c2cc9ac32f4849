package repositories

import (
	"context"
	"fmt"
	"sort"

	"github.com/bbernstein/lacylights-patch/internal/database/models"
	"github.com/bbernstein/lacylights-patch/internal/fixture"
	"github.com/lucsky/cuid"
	"gorm.io/gorm"
)

// ModeInput describes a mode to create alongside a definition.
// ChannelOffsets index into the definition's channel list, in slot order.
type ModeInput struct {
	Name           string
	ShortName      *string
	ChannelOffsets []int
}

// ProfileRepository handles the fixture catalog and builds profiles from it.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindDefinitionByID returns a fixture definition by ID.
func (r *ProfileRepository) FindDefinitionByID(ctx context.Context, id string) (*models.FixtureDefinition, error) {
	var def models.FixtureDefinition
	result := r.db.WithContext(ctx).First(&def, "id = ?", id)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &def, nil
}

// FindDefinitionByManufacturerModel returns a fixture definition by manufacturer and model.
func (r *ProfileRepository) FindDefinitionByManufacturerModel(ctx context.Context, manufacturer, model string) (*models.FixtureDefinition, error) {
	var def models.FixtureDefinition
	result := r.db.WithContext(ctx).
		Where("manufacturer = ? AND model = ?", manufacturer, model).
		First(&def)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &def, nil
}

// FindAllDefinitions returns all fixture definitions.
func (r *ProfileRepository) FindAllDefinitions(ctx context.Context) ([]models.FixtureDefinition, error) {
	var defs []models.FixtureDefinition
	result := r.db.WithContext(ctx).
		Order("manufacturer ASC, model ASC").
		Find(&defs)
	return defs, result.Error
}

// GetDefinitionChannels returns all channels for a fixture definition.
func (r *ProfileRepository) GetDefinitionChannels(ctx context.Context, definitionID string) ([]models.ChannelDefinition, error) {
	var channels []models.ChannelDefinition
	result := r.db.WithContext(ctx).
		Where("definition_id = ?", definitionID).
		Order("offset ASC").
		Find(&channels)
	return channels, result.Error
}

// GetDefinitionModes returns all modes for a fixture definition.
func (r *ProfileRepository) GetDefinitionModes(ctx context.Context, definitionID string) ([]models.FixtureMode, error) {
	var modes []models.FixtureMode
	result := r.db.WithContext(ctx).
		Where("definition_id = ?", definitionID).
		Order("name ASC").
		Find(&modes)
	return modes, result.Error
}

// GetModeChannels returns the slots of a mode in order.
func (r *ProfileRepository) GetModeChannels(ctx context.Context, modeID string) ([]models.ModeChannel, error) {
	var modeChannels []models.ModeChannel
	result := r.db.WithContext(ctx).
		Where("mode_id = ?", modeID).
		Order("offset ASC").
		Find(&modeChannels)
	return modeChannels, result.Error
}

// CreateDefinition creates a definition with its channels and modes in a transaction.
// Channel offsets are assigned from their position in channels.
func (r *ProfileRepository) CreateDefinition(ctx context.Context, definition *models.FixtureDefinition, channels []models.ChannelDefinition, modes []ModeInput) error {
	for _, m := range modes {
		for _, off := range m.ChannelOffsets {
			if off < 0 || off >= len(channels) {
				return fmt.Errorf("mode %q references channel %d, definition has %d", m.Name, off, len(channels))
			}
		}
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if definition.ID == "" {
			definition.ID = cuid.New()
		}
		definition.Channels = nil
		definition.Modes = nil
		if err := tx.Create(definition).Error; err != nil {
			return err
		}

		if len(channels) > 0 {
			for i := range channels {
				if channels[i].ID == "" {
					channels[i].ID = cuid.New()
				}
				channels[i].DefinitionID = definition.ID
				channels[i].Offset = i
			}
			if err := tx.Create(&channels).Error; err != nil {
				return err
			}
		}

		for _, m := range modes {
			mode := models.FixtureMode{
				ID:           cuid.New(),
				Name:         m.Name,
				ShortName:    m.ShortName,
				ChannelCount: len(m.ChannelOffsets),
				DefinitionID: definition.ID,
			}
			if err := tx.Create(&mode).Error; err != nil {
				return err
			}
			if len(m.ChannelOffsets) == 0 {
				continue
			}
			slots := make([]models.ModeChannel, len(m.ChannelOffsets))
			for slot, off := range m.ChannelOffsets {
				slots[slot] = models.ModeChannel{
					ID:        cuid.New(),
					ModeID:    mode.ID,
					ChannelID: channels[off].ID,
					Offset:    slot,
				}
			}
			if err := tx.Create(&slots).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteDefinition deletes a definition with its channels and modes.
func (r *ProfileRepository) DeleteDefinition(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var modeIDs []string
		if err := tx.Model(&models.FixtureMode{}).
			Where("definition_id = ?", id).
			Pluck("id", &modeIDs).Error; err != nil {
			return err
		}
		if len(modeIDs) > 0 {
			if err := tx.Delete(&models.ModeChannel{}, "mode_id IN ?", modeIDs).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&models.FixtureMode{}, "definition_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.ChannelDefinition{}, "definition_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.FixtureDefinition{}, "id = ?", id).Error
	})
}

// Load builds a profile for a definition with modeName selected. An empty
// modeName selects the first mode by name. Returns nil, nil when the
// definition does not exist.
func (r *ProfileRepository) Load(ctx context.Context, definitionID, modeName string) (*fixture.DefinedProfile, error) {
	def, err := r.FindDefinitionByID(ctx, definitionID)
	if err != nil || def == nil {
		return nil, err
	}

	channels, err := r.GetDefinitionChannels(ctx, definitionID)
	if err != nil {
		return nil, err
	}
	modes, err := r.GetDefinitionModes(ctx, definitionID)
	if err != nil {
		return nil, err
	}

	profile := &fixture.DefinedProfile{
		Name:         def.Manufacturer + " " + def.Model,
		Channels:     make(map[int]fixture.FixtureChannel, len(channels)),
		ChannelModes: make(map[string]fixture.ChannelMode, len(modes)),
	}

	offsetByID := make(map[string]int, len(channels))
	for _, ch := range channels {
		offsetByID[ch.ID] = ch.Offset
		profile.Channels[ch.Offset] = fixture.FixtureChannel{
			Name: ch.Name,
			Type: fixture.ChannelType(ch.Type),
		}
	}

	for _, mode := range modes {
		slots, err := r.GetModeChannels(ctx, mode.ID)
		if err != nil {
			return nil, err
		}
		sort.Slice(slots, func(i, j int) bool { return slots[i].Offset < slots[j].Offset })
		indices := make([]int, 0, len(slots))
		for _, slot := range slots {
			off, ok := offsetByID[slot.ChannelID]
			if !ok {
				return nil, fmt.Errorf("mode %q of %s references unknown channel %s", mode.Name, definitionID, slot.ChannelID)
			}
			indices = append(indices, off)
		}
		profile.ChannelModes[mode.Name] = fixture.ChannelMode{Count: mode.ChannelCount, Channels: indices}
	}

	if modeName == "" && len(modes) > 0 {
		modeName = modes[0].Name
	}
	profile.Options.ChannelMode = modeName
	return profile, nil
}
