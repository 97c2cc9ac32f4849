// Package testutil provides shared test utilities for integration tests.
package testutil

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/lucsky/cuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/bbernstein/lacylights-patch/internal/database/models"
	"github.com/bbernstein/lacylights-patch/internal/database/repositories"
	"github.com/bbernstein/lacylights-patch/internal/fixture"
)

// TestDB holds the test database and repositories.
type TestDB struct {
	DB          *gorm.DB
	ProfileRepo *repositories.ProfileRepository
	ChannelRepo *repositories.ChannelRepository
	CueRepo     *repositories.CueRepository
	SettingRepo *repositories.SettingRepository
}

// SetupTestDB creates an in-memory SQLite database for testing.
// It returns a TestDB with all repositories initialized and a cleanup function.
func SetupTestDB(t *testing.T) (*TestDB, func()) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	// Each connection to :memory: would see its own empty database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	testDB := &TestDB{
		DB:          db,
		ProfileRepo: repositories.NewProfileRepository(db),
		ChannelRepo: repositories.NewChannelRepository(db),
		CueRepo:     repositories.NewCueRepository(db),
		SettingRepo: repositories.NewSettingRepository(db),
	}

	cleanup := func() {
		_ = sqlDB.Close()
	}

	return testDB, cleanup
}

// SeedRGBPar stores an RGB par definition and returns it. Channels are
// Dimmer, Red, Green, Blue, Strobe; modes are "3-channel" (Red, Green, Blue)
// and "5-channel" (all of them).
func SeedRGBPar(t *testing.T, repo *repositories.ProfileRepository) *models.FixtureDefinition {
	t.Helper()

	def := &models.FixtureDefinition{
		Manufacturer: "Generic",
		Model:        UniqueModelName("RGB Par"),
		Type:         "LED_PAR",
	}
	channels := []models.ChannelDefinition{
		{Name: "Dimmer", Type: string(fixture.TypeIntensity), MaxValue: 255},
		{Name: "Red", Type: string(fixture.TypeRed), MaxValue: 255},
		{Name: "Green", Type: string(fixture.TypeGreen), MaxValue: 255},
		{Name: "Blue", Type: string(fixture.TypeBlue), MaxValue: 255},
		{Name: "Strobe", Type: string(fixture.TypeStrobe), MaxValue: 255},
	}
	modes := []repositories.ModeInput{
		{Name: "3-channel", ChannelOffsets: []int{1, 2, 3}},
		{Name: "5-channel", ChannelOffsets: []int{0, 1, 2, 3, 4}},
	}
	if err := repo.CreateDefinition(context.Background(), def, channels, modes); err != nil {
		t.Fatalf("Failed to seed fixture definition: %v", err)
	}
	return def
}

// UniqueModelName generates a unique fixture model name for testing.
func UniqueModelName(prefix string) string {
	return prefix + "-" + cuid.New()[:8]
}
