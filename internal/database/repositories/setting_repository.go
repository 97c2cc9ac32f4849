package repositories

import (
	"context"

	"github.com/bbernstein/lacylights-patch/internal/database/models"
	"github.com/lucsky/cuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BroadcastSettingKey stores the Art-Net broadcast address chosen at runtime.
const BroadcastSettingKey = "artnet_broadcast_address"

// SettingRepository stores server settings as key/value rows.
type SettingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new SettingRepository.
func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// FindByKey returns a setting by key, or nil when it is not stored.
func (r *SettingRepository) FindByKey(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting
	result := r.db.WithContext(ctx).First(&setting, "key = ?", key)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &setting, nil
}

// Upsert stores value under key and returns the stored row. An existing row
// keeps its ID.
func (r *SettingRepository) Upsert(ctx context.Context, key, value string) (*models.Setting, error) {
	setting := models.Setting{ID: cuid.New(), Key: key, Value: value}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return nil, err
	}
	return r.FindByKey(ctx, key)
}

// Delete removes a setting. Deleting a missing key is not an error.
func (r *SettingRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Delete(&models.Setting{}, "key = ?", key).Error
}

// BroadcastAddress returns the saved broadcast address, or "" when none is saved.
func (r *SettingRepository) BroadcastAddress(ctx context.Context) (string, error) {
	setting, err := r.FindByKey(ctx, BroadcastSettingKey)
	if err != nil || setting == nil {
		return "", err
	}
	return setting.Value, nil
}

// SaveBroadcastAddress remembers the broadcast address across restarts.
func (r *SettingRepository) SaveBroadcastAddress(ctx context.Context, address string) error {
	_, err := r.Upsert(ctx, BroadcastSettingKey, address)
	return err
}

// ClearBroadcastAddress forgets the saved broadcast address.
func (r *SettingRepository) ClearBroadcastAddress(ctx context.Context) error {
	return r.Delete(ctx, BroadcastSettingKey)
}
