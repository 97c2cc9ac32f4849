package repositories

import (
	"context"

	"github.com/bbernstein/lacylights-patch/internal/database/models"
	"github.com/lucsky/cuid"
	"gorm.io/gorm"
)

// ChannelRepository handles patched channel data access.
type ChannelRepository struct {
	db *gorm.DB
}

// NewChannelRepository creates a new ChannelRepository.
func NewChannelRepository(db *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

// FindAll returns every patched channel ordered by number.
func (r *ChannelRepository) FindAll(ctx context.Context) ([]models.PatchedChannel, error) {
	var channels []models.PatchedChannel
	result := r.db.WithContext(ctx).
		Order("number ASC").
		Find(&channels)
	return channels, result.Error
}

// FindByNumber returns a patched channel by its channel number.
func (r *ChannelRepository) FindByNumber(ctx context.Context, number int) (*models.PatchedChannel, error) {
	var channel models.PatchedChannel
	result := r.db.WithContext(ctx).First(&channel, "number = ?", number)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &channel, nil
}

// Create creates a new patched channel.
func (r *ChannelRepository) Create(ctx context.Context, channel *models.PatchedChannel) error {
	if channel.ID == "" {
		channel.ID = cuid.New()
	}
	return r.db.WithContext(ctx).Create(channel).Error
}

// UpdateName renames the channel with the given number.
func (r *ChannelRepository) UpdateName(ctx context.Context, number int, name string) error {
	return r.db.WithContext(ctx).
		Model(&models.PatchedChannel{}).
		Where("number = ?", number).
		Update("name", name).Error
}

// UpdateNumber moves the row numbered from to number to.
func (r *ChannelRepository) UpdateNumber(ctx context.Context, from, to int) error {
	result := r.db.WithContext(ctx).
		Model(&models.PatchedChannel{}).
		Where("number = ?", from).
		Update("number", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteByNumber deletes the channel with the given number.
func (r *ChannelRepository) DeleteByNumber(ctx context.Context, number int) error {
	return r.db.WithContext(ctx).Delete(&models.PatchedChannel{}, "number = ?", number).Error
}
