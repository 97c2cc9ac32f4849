package show

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/lacylights-patch/internal/database/models"
	"github.com/bbernstein/lacylights-patch/internal/fixture"
	"github.com/bbernstein/lacylights-patch/internal/patch"
	"github.com/bbernstein/lacylights-patch/internal/services/dmx"
	"github.com/bbernstein/lacylights-patch/internal/services/pubsub"
	"github.com/bbernstein/lacylights-patch/internal/services/testutil"
)

type fixtureEnv struct {
	db      *testutil.TestDB
	dmx     *dmx.Service
	service *Service
	def     *models.FixtureDefinition
}

func setup(t *testing.T) *fixtureEnv {
	t.Helper()
	testDB, cleanup := testutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	dmxService := dmx.NewService(dmx.Config{Enabled: false})
	return &fixtureEnv{
		db:      testDB,
		dmx:     dmxService,
		service: newService(testDB, dmxService),
		def:     testutil.SeedRGBPar(t, testDB.ProfileRepo),
	}
}

func newService(testDB *testutil.TestDB, dmxService *dmx.Service) *Service {
	return NewService(patch.NewRegistry(dmxService, nil), testDB.ProfileRepo, testDB.ChannelRepo, testDB.CueRepo)
}

func TestPatchFixture_SavesChannel(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	ch, err := env.service.PatchFixture(ctx, PatchRequest{
		DefinitionID: env.def.ID,
		ModeName:     "5-channel",
		Universe:     1,
		StartAddress: 10,
		Name:         "Downstage Wash",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ch.ID())
	assert.Equal(t, "Downstage Wash", ch.Name())
	assert.Equal(t, fixture.DmxAddressRange{Initial: 10, Final: 14}, ch.AddressRange())

	row, err := env.db.ChannelRepo.FindByNumber(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "Downstage Wash", row.Name)
	assert.Equal(t, "5-channel", row.ModeName)
	assert.Equal(t, 10, row.StartAddress)
}

func TestPatchFixture_UnknownDefinition(t *testing.T) {
	env := setup(t)

	_, err := env.service.PatchFixture(context.Background(), PatchRequest{DefinitionID: "nope", Universe: 1, StartAddress: 1})
	assert.ErrorIs(t, err, ErrDefinitionNotFound)
}

func TestPatchFixture_UnknownMode(t *testing.T) {
	env := setup(t)

	_, err := env.service.PatchFixture(context.Background(), PatchRequest{
		DefinitionID: env.def.ID,
		ModeName:     "12-channel",
		Universe:     1,
		StartAddress: 1,
	})
	assert.ErrorIs(t, err, fixture.ErrConfiguration)
}

func TestPatchFixture_ConflictIsNotSaved(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	_, err := env.service.PatchFixture(ctx, PatchRequest{DefinitionID: env.def.ID, ModeName: "3-channel", Universe: 1, StartAddress: 1})
	require.NoError(t, err)
	_, err = env.service.PatchFixture(ctx, PatchRequest{DefinitionID: env.def.ID, ModeName: "3-channel", Universe: 1, StartAddress: 3})
	assert.ErrorIs(t, err, patch.ErrAddressConflict)

	rows, err := env.db.ChannelRepo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestPatchFixture_DuplicateNumberRollsBack(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	// A stale row holds number 1 without being in the live patch.
	require.NoError(t, env.db.ChannelRepo.Create(ctx, &models.PatchedChannel{Number: 1, Universe: 2, StartAddress: 1}))

	_, err := env.service.PatchFixture(ctx, PatchRequest{DefinitionID: env.def.ID, ModeName: "3-channel", Universe: 1, StartAddress: 1})
	require.Error(t, err)
	assert.Equal(t, 0, env.service.Registry().Len())
}

func TestRenameChannel_PersistsName(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	ch, err := env.service.PatchFixture(ctx, PatchRequest{DefinitionID: env.def.ID, ModeName: "3-channel", Universe: 1, StartAddress: 1})
	require.NoError(t, err)

	_, err = env.service.RenameChannel(ctx, ch.ID(), "Cyc Left")
	require.NoError(t, err)

	row, err := env.db.ChannelRepo.FindByNumber(ctx, ch.ID())
	require.NoError(t, err)
	assert.Equal(t, "Cyc Left", row.Name)

	// Renames made directly on the channel are saved too.
	ch.SetName("Cyc Right")
	row, err = env.db.ChannelRepo.FindByNumber(ctx, ch.ID())
	require.NoError(t, err)
	assert.Equal(t, "Cyc Right", row.Name)

	_, err = env.service.RenameChannel(ctx, 99, "Ghost")
	assert.ErrorIs(t, err, patch.ErrNotFound)
}

func TestSetAddress_DrivesOutput(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	ch, err := env.service.PatchFixture(ctx, PatchRequest{DefinitionID: env.def.ID, ModeName: "3-channel", Universe: 1, StartAddress: 100})
	require.NoError(t, err)

	require.NoError(t, env.service.SetAddress(ctx, ch.ID(), 2, 200))
	assert.Equal(t, byte(200), env.dmx.GetChannelValue(1, 102))

	err = env.service.SetAddress(ctx, ch.ID(), 3, 10)
	assert.ErrorIs(t, err, fixture.ErrInvalidAddress)

	err = env.service.SetAddress(ctx, 42, 0, 10)
	assert.ErrorIs(t, err, patch.ErrNotFound)
}

func TestUnpatch_RemovesChannel(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	ch, err := env.service.PatchFixture(ctx, PatchRequest{DefinitionID: env.def.ID, ModeName: "3-channel", Universe: 1, StartAddress: 1})
	require.NoError(t, err)

	require.NoError(t, env.service.Unpatch(ctx, ch.ID()))
	assert.Equal(t, 0, env.service.Registry().Len())
	assert.Equal(t, 0, ch.ListenerCount(fixture.EventNameUpdate))

	row, err := env.db.ChannelRepo.FindByNumber(ctx, ch.ID())
	require.NoError(t, err)
	assert.Nil(t, row)

	assert.ErrorIs(t, env.service.Unpatch(ctx, ch.ID()), patch.ErrNotFound)
}

func TestLoadPatch_RestoresChannels(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	_, err := env.service.PatchFixture(ctx, PatchRequest{DefinitionID: env.def.ID, ModeName: "3-channel", Universe: 1, StartAddress: 1, Number: 7, Name: "Spot"})
	require.NoError(t, err)
	_, err = env.service.PatchFixture(ctx, PatchRequest{DefinitionID: env.def.ID, ModeName: "5-channel", Universe: 2, StartAddress: 20})
	require.NoError(t, err)
	_, err = env.service.RecordCue(ctx, 1, "Preset")
	require.NoError(t, err)

	// A row whose definition is gone is skipped.
	require.NoError(t, env.db.ChannelRepo.Create(ctx, &models.PatchedChannel{Number: 50, DefinitionID: "gone", Universe: 3, StartAddress: 1}))

	restarted := newService(env.db, env.dmx)
	loaded, err := restarted.LoadPatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)

	spot, err := restarted.Registry().Get(7)
	require.NoError(t, err)
	assert.Equal(t, "Spot", spot.Name())
	assert.Equal(t, "3-channel", spot.Mode())

	next, err := restarted.Registry().Get(8)
	require.NoError(t, err)
	assert.Equal(t, 5, next.Len())
	universe, err := restarted.Registry().UniverseOf(8)
	require.NoError(t, err)
	assert.Equal(t, 2, universe)

	// Cue numbering continues after the saved cues.
	c, err := restarted.RecordCue(ctx, 1, "Next")
	require.NoError(t, err)
	assert.Equal(t, 2, c.ID())

	// Restored channels keep saving renames.
	spot.SetName("Follow Spot")
	row, err := env.db.ChannelRepo.FindByNumber(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Follow Spot", row.Name)
}

func TestRecordAndRecallCue(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	ch, err := env.service.PatchFixture(ctx, PatchRequest{DefinitionID: env.def.ID, ModeName: "3-channel", Universe: 1, StartAddress: 1})
	require.NoError(t, err)
	require.NoError(t, ch.SetAddress(0, 255))
	require.NoError(t, ch.SetAddress(1, 128))

	recorded, err := env.service.RecordCue(ctx, 1, "Amber-ish")
	require.NoError(t, err)
	assert.Equal(t, 1, recorded.ID())
	assert.Equal(t, 512, recorded.Len())

	require.NoError(t, ch.SetAddress(0, 0))
	require.NoError(t, ch.SetAddress(1, 0))

	recalled, err := env.service.RecallCue(ctx, recorded.ID())
	require.NoError(t, err)
	assert.Equal(t, "Amber-ish", recalled.Name())

	v, err := ch.Value(0)
	require.NoError(t, err)
	assert.Equal(t, 255, v)
	v, err = ch.Value(1)
	require.NoError(t, err)
	assert.Equal(t, 128, v)
	assert.Equal(t, byte(255), env.dmx.GetChannelValue(1, 1))

	cues, err := env.service.ListCues(ctx)
	require.NoError(t, err)
	require.Len(t, cues, 1)
	assert.Equal(t, 1, cues[0].Universe)
}

func TestRecallCue_NotFound(t *testing.T) {
	env := setup(t)

	_, err := env.service.RecallCue(context.Background(), 9)
	assert.ErrorIs(t, err, ErrCueNotFound)
}

func TestRecordCue_InvalidUniverse(t *testing.T) {
	env := setup(t)

	_, err := env.service.RecordCue(context.Background(), 0, "Nothing")
	assert.ErrorIs(t, err, patch.ErrOutOfUniverse)
}

func TestRecordCue_FailedSaveIsNotAnnounced(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	ps := pubsub.New()
	recorded := ps.Subscribe(pubsub.TopicCueRecorded, "", 10)
	service := NewService(patch.NewRegistry(env.dmx, ps), env.db.ProfileRepo, env.db.ChannelRepo, env.db.CueRepo)

	require.NoError(t, env.db.DB.Migrator().DropTable(&models.Cue{}))
	_, err := service.RecordCue(ctx, 1, "Broken")
	require.Error(t, err)
	assert.Len(t, recorded.Channel, 0, "a cue that was not saved must not be announced")

	require.NoError(t, env.db.DB.AutoMigrate(&models.Cue{}))
	c, err := service.RecordCue(ctx, 1, "Works")
	require.NoError(t, err)
	assert.Equal(t, 1, c.ID(), "the failed number is reused")
	assert.Equal(t, pubsub.CueMessage{CueNumber: 1, Name: "Works", Universe: 1}, <-recorded.Channel)

	recalled, err := service.RecallCue(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Works", recalled.Name())
}

func TestRecordCue_UnconfiguredUniverse(t *testing.T) {
	env := setup(t)

	_, err := env.service.RecordCue(context.Background(), 9, "Nowhere")
	assert.ErrorIs(t, err, patch.ErrOutOfUniverse)
}

func TestDeleteCue(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	c, err := env.service.RecordCue(ctx, 1, "Gone Soon")
	require.NoError(t, err)

	require.NoError(t, env.service.DeleteCue(ctx, c.ID()))
	_, err = env.service.RecallCue(ctx, c.ID())
	assert.ErrorIs(t, err, ErrCueNotFound)
	assert.ErrorIs(t, env.service.DeleteCue(ctx, c.ID()), ErrCueNotFound)
}

func TestRenumberChannel(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	ch, err := env.service.PatchFixture(ctx, PatchRequest{DefinitionID: env.def.ID, ModeName: "3-channel", Universe: 1, StartAddress: 1})
	require.NoError(t, err)

	moved, err := env.service.RenumberChannel(ctx, ch.ID(), 20)
	require.NoError(t, err)
	assert.Same(t, ch, moved)
	assert.Equal(t, 20, ch.ID())

	row, err := env.db.ChannelRepo.FindByNumber(ctx, 20)
	require.NoError(t, err)
	require.NotNil(t, row)
	old, err := env.db.ChannelRepo.FindByNumber(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, old)

	// Renames after a renumber land on the new row.
	ch.SetName("Moved")
	row, err = env.db.ChannelRepo.FindByNumber(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, "Moved", row.Name)

	// A saved row that was never restored still holds its number.
	require.NoError(t, env.db.ChannelRepo.Create(ctx, &models.PatchedChannel{Number: 30, DefinitionID: "gone", Universe: 2, StartAddress: 1}))
	_, err = env.service.RenumberChannel(ctx, 20, 30)
	assert.ErrorIs(t, err, patch.ErrIDInUse)
	assert.Equal(t, 20, ch.ID())

	_, err = env.service.RenumberChannel(ctx, 99, 100)
	assert.ErrorIs(t, err, patch.ErrNotFound)
}

func wedgeRequest() DefinitionRequest {
	return DefinitionRequest{
		Manufacturer: "Acme",
		Model:        testutil.UniqueModelName("Wedge"),
		Type:         "LED_PAR",
		Channels: []ChannelSpec{
			{Name: "Dimmer", Type: "intensity"},
			{Name: "Red", Type: "RED"},
			{Name: "Green", Type: "GREEN"},
			{Name: "Blue", Type: "BLUE"},
		},
		Modes: []ModeSpec{
			{Name: "RGB", Channels: []int{1, 2, 3}},
			{Name: "DRGB", ShortName: "4ch", Channels: []int{0, 1, 2, 3}},
		},
	}
}

func TestCreateDefinition_CanBePatched(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	def, err := env.service.CreateDefinition(ctx, wedgeRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, def.ID)
	assert.Equal(t, []ModeSummary{{Name: "DRGB", ChannelCount: 4}, {Name: "RGB", ChannelCount: 3}}, def.Modes)

	ch, err := env.service.PatchFixture(ctx, PatchRequest{DefinitionID: def.ID, ModeName: "DRGB", Universe: 1, StartAddress: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, ch.MasterAddress(), "types are stored upper case")

	defs, err := env.service.ListDefinitions(ctx)
	require.NoError(t, err)
	assert.Len(t, defs, 2)
}

func TestCreateDefinition_Validation(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*DefinitionRequest)
	}{
		{"missing model", func(r *DefinitionRequest) { r.Model = "" }},
		{"no channels", func(r *DefinitionRequest) { r.Channels = nil }},
		{"no modes", func(r *DefinitionRequest) { r.Modes = nil }},
		{"empty mode", func(r *DefinitionRequest) { r.Modes[0].Channels = nil }},
		{"repeated mode", func(r *DefinitionRequest) { r.Modes[1].Name = r.Modes[0].Name }},
		{"channel out of range", func(r *DefinitionRequest) { r.Modes[0].Channels = []int{0, 9} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := wedgeRequest()
			tt.mutate(&req)
			_, err := env.service.CreateDefinition(ctx, req)
			assert.ErrorIs(t, err, fixture.ErrConfiguration)
		})
	}

	req := wedgeRequest()
	_, err := env.service.CreateDefinition(ctx, req)
	require.NoError(t, err)
	_, err = env.service.CreateDefinition(ctx, req)
	assert.ErrorIs(t, err, ErrDefinitionExists)
}

func TestDeleteDefinition(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	ch, err := env.service.PatchFixture(ctx, PatchRequest{DefinitionID: env.def.ID, ModeName: "3-channel", Universe: 1, StartAddress: 1})
	require.NoError(t, err)

	assert.ErrorIs(t, env.service.DeleteDefinition(ctx, env.def.ID), ErrDefinitionInUse)

	require.NoError(t, env.service.Unpatch(ctx, ch.ID()))
	require.NoError(t, env.service.DeleteDefinition(ctx, env.def.ID))
	assert.ErrorIs(t, env.service.DeleteDefinition(ctx, env.def.ID), ErrDefinitionNotFound)

	defs, err := env.service.ListDefinitions(ctx)
	require.NoError(t, err)
	assert.Empty(t, defs)
}
