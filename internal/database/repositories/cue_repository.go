package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bbernstein/lacylights-patch/internal/cue"
	"github.com/bbernstein/lacylights-patch/internal/database/models"
	"github.com/bbernstein/lacylights-patch/internal/fixture"
	"github.com/lucsky/cuid"
	"gorm.io/gorm"
)

// CueRepository handles cue data access.
type CueRepository struct {
	db *gorm.DB
}

// NewCueRepository creates a new CueRepository.
func NewCueRepository(db *gorm.DB) *CueRepository {
	return &CueRepository{db: db}
}

// FindAll returns every cue ordered by number.
func (r *CueRepository) FindAll(ctx context.Context) ([]models.Cue, error) {
	var cues []models.Cue
	result := r.db.WithContext(ctx).
		Order("number ASC").
		Find(&cues)
	return cues, result.Error
}

// FindByNumber returns a cue by its number.
func (r *CueRepository) FindByNumber(ctx context.Context, number int) (*models.Cue, error) {
	var c models.Cue
	result := r.db.WithContext(ctx).First(&c, "number = ?", number)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &c, nil
}

// MaxNumber returns the highest stored cue number, or 0 when there are none.
func (r *CueRepository) MaxNumber(ctx context.Context) (int, error) {
	var max int
	result := r.db.WithContext(ctx).
		Model(&models.Cue{}).
		Select("COALESCE(MAX(number), 0)").
		Scan(&max)
	return max, result.Error
}

// Save stores a recorded cue for a universe.
func (r *CueRepository) Save(ctx context.Context, universe int, c *cue.Cue) (*models.Cue, error) {
	data, err := EncodeChannelData(c.ChannelData())
	if err != nil {
		return nil, err
	}
	row := &models.Cue{
		ID:          cuid.New(),
		Number:      c.ID(),
		Name:        c.Name(),
		Universe:    universe,
		ChannelData: data,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// DeleteByNumber deletes a cue by its number.
func (r *CueRepository) DeleteByNumber(ctx context.Context, number int) error {
	return r.db.WithContext(ctx).Delete(&models.Cue{}, "number = ?", number).Error
}

// ToCue rebuilds an immutable cue from a stored row.
func ToCue(row *models.Cue) (*cue.Cue, error) {
	data, err := DecodeChannelData(row.ChannelData)
	if err != nil {
		return nil, fmt.Errorf("cue %d: %w", row.Number, err)
	}
	return cue.New(row.Number, row.Name, data), nil
}

// EncodeChannelData serializes channel data as a JSON array.
func EncodeChannelData(data fixture.UniverseData) (string, error) {
	if data == nil {
		data = fixture.UniverseData{}
	}
	b, err := json.Marshal([]int(data))
	if err != nil {
		return "", fmt.Errorf("failed to encode channel data: %w", err)
	}
	return string(b), nil
}

// DecodeChannelData parses a JSON array of channel values.
func DecodeChannelData(s string) (fixture.UniverseData, error) {
	if s == "" {
		return fixture.UniverseData{}, nil
	}
	var values []int
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		return nil, fmt.Errorf("failed to decode channel data: %w", err)
	}
	return fixture.UniverseData(values), nil
}
