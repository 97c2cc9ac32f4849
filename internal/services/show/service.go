// Package show ties the live patch to the database: patching, renaming and
// unpatching channels, and recording and recalling cues.
package show

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/bbernstein/lacylights-patch/internal/cue"
	"github.com/bbernstein/lacylights-patch/internal/database/models"
	"github.com/bbernstein/lacylights-patch/internal/database/repositories"
	"github.com/bbernstein/lacylights-patch/internal/fixture"
	"github.com/bbernstein/lacylights-patch/internal/patch"
)

var (
	ErrDefinitionNotFound = errors.New("fixture definition not found")
	ErrCueNotFound        = errors.New("cue not found")
)

// PatchRequest describes a fixture to patch. Number 0 picks the next free
// channel number; an empty Name keeps the profile name.
type PatchRequest struct {
	DefinitionID string `json:"definitionId"`
	ModeName     string `json:"modeName"`
	Universe     int    `json:"universe"`
	StartAddress int    `json:"startAddress"`
	Number       int    `json:"number,omitempty"`
	Name         string `json:"name,omitempty"`
}

// Service manages the persisted patch and cues.
type Service struct {
	registry *patch.Registry
	profiles *repositories.ProfileRepository
	channels *repositories.ChannelRepository
	cues     *repositories.CueRepository

	mu        sync.Mutex
	observers map[*fixture.Channel]fixture.Subscription
}

// NewService creates a new show service.
func NewService(registry *patch.Registry, profiles *repositories.ProfileRepository, channels *repositories.ChannelRepository, cues *repositories.CueRepository) *Service {
	return &Service{
		registry:  registry,
		profiles:  profiles,
		channels:  channels,
		cues:      cues,
		observers: make(map[*fixture.Channel]fixture.Subscription),
	}
}

// Registry returns the live patch.
func (s *Service) Registry() *patch.Registry {
	return s.registry
}

// LoadPatch restores every saved channel into the registry and continues cue
// numbering after the highest stored cue. Rows whose definition is missing or
// whose placement is no longer valid are skipped. Returns the number of
// channels restored.
func (s *Service) LoadPatch(ctx context.Context) (int, error) {
	rows, err := s.channels.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load patch: %w", err)
	}

	loaded := 0
	for _, row := range rows {
		profile, err := s.profiles.Load(ctx, row.DefinitionID, row.ModeName)
		if err != nil {
			return loaded, fmt.Errorf("failed to load profile for channel %d: %w", row.Number, err)
		}
		if profile == nil {
			log.Printf("⚠️  Skipping channel %d: definition %s not found", row.Number, row.DefinitionID)
			continue
		}

		ch, err := s.registry.PatchWithID(row.Number, profile, row.Universe, row.StartAddress)
		if err != nil {
			log.Printf("⚠️  Skipping channel %d: %v", row.Number, err)
			continue
		}
		if row.Name != "" {
			ch.SetName(row.Name)
		}
		s.observeNames(ch)
		loaded++
	}

	maxCue, err := s.cues.MaxNumber(ctx)
	if err != nil {
		return loaded, fmt.Errorf("failed to load cue numbers: %w", err)
	}
	s.registry.ReserveCueNumber(maxCue)

	log.Printf("📋 Loaded %d patched channels", loaded)
	return loaded, nil
}

// PatchFixture patches a catalog fixture and saves it.
func (s *Service) PatchFixture(ctx context.Context, req PatchRequest) (*fixture.Channel, error) {
	profile, err := s.profiles.Load(ctx, req.DefinitionID, req.ModeName)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("definition %s: %w", req.DefinitionID, ErrDefinitionNotFound)
	}

	var ch *fixture.Channel
	if req.Number > 0 {
		ch, err = s.registry.PatchWithID(req.Number, profile, req.Universe, req.StartAddress)
	} else {
		ch, err = s.registry.Patch(profile, req.Universe, req.StartAddress)
	}
	if err != nil {
		return nil, err
	}
	if req.Name != "" {
		ch.SetName(req.Name)
	}

	row := &models.PatchedChannel{
		Number:       ch.ID(),
		Name:         ch.Name(),
		DefinitionID: req.DefinitionID,
		ModeName:     ch.Mode(),
		Universe:     req.Universe,
		StartAddress: req.StartAddress,
	}
	if err := s.channels.Create(ctx, row); err != nil {
		_ = s.registry.Unpatch(ch.ID())
		return nil, fmt.Errorf("failed to save channel %d: %w", ch.ID(), err)
	}

	s.observeNames(ch)
	return ch, nil
}

// observeNames persists every later rename of ch.
func (s *Service) observeNames(ch *fixture.Channel) {
	sub := ch.Subscribe(fixture.EventNameUpdate, func(ev fixture.Event) {
		if err := s.channels.UpdateName(context.Background(), ev.ChannelID, ev.Name); err != nil {
			log.Printf("⚠️  Failed to save name of channel %d: %v", ev.ChannelID, err)
		}
	})
	s.mu.Lock()
	s.observers[ch] = sub
	s.mu.Unlock()
}

// RenameChannel renames a patched channel.
func (s *Service) RenameChannel(ctx context.Context, id int, name string) (*fixture.Channel, error) {
	ch, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	return ch.SetName(name), nil
}

// RenumberChannel moves a patched channel to a new number. Numbers held by
// saved rows that were not restored are refused too.
func (s *Service) RenumberChannel(ctx context.Context, id, number int) (*fixture.Channel, error) {
	ch, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if id == number {
		return ch, nil
	}

	existing, err := s.channels.FindByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("failed to check channel %d: %w", number, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("renumber channel %d to %d: %w", id, number, patch.ErrIDInUse)
	}

	if err := s.registry.Renumber(id, number); err != nil {
		return nil, err
	}
	if err := s.channels.UpdateNumber(ctx, id, number); err != nil {
		_ = s.registry.Renumber(number, id)
		return nil, fmt.Errorf("failed to save channel %d: %w", number, err)
	}
	return ch, nil
}

// SetAddress writes a value to one address of a patched channel.
func (s *Service) SetAddress(ctx context.Context, id, offset, value int) error {
	ch, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	return ch.SetAddress(offset, value)
}

// Unpatch removes a channel from the live patch and the database.
func (s *Service) Unpatch(ctx context.Context, id int) error {
	ch, err := s.registry.Get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	sub, ok := s.observers[ch]
	delete(s.observers, ch)
	s.mu.Unlock()
	if ok {
		ch.Unsubscribe(sub)
	}

	if err := s.registry.Unpatch(id); err != nil {
		return err
	}
	if err := s.channels.DeleteByNumber(ctx, id); err != nil {
		return fmt.Errorf("failed to delete channel %d: %w", id, err)
	}
	return nil
}

// RecordCue snapshots a universe and saves it as the next cue. The cue is
// announced only once it is saved.
func (s *Service) RecordCue(ctx context.Context, universe int, name string) (*cue.Cue, error) {
	c, err := s.registry.CaptureCue(universe, name)
	if err != nil {
		return nil, err
	}
	if _, err := s.cues.Save(ctx, universe, c); err != nil {
		s.registry.ReleaseCueNumber(c.ID())
		return nil, fmt.Errorf("failed to save cue %d: %w", c.ID(), err)
	}
	s.registry.PublishCue(universe, c)
	log.Printf("🎬 Recorded cue %d (%s) from universe %d", c.ID(), name, universe)
	return c, nil
}

// RecallCue loads a saved cue and replays it into the universe it was
// recorded from.
func (s *Service) RecallCue(ctx context.Context, number int) (*cue.Cue, error) {
	row, err := s.cues.FindByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("failed to load cue %d: %w", number, err)
	}
	if row == nil {
		return nil, fmt.Errorf("cue %d: %w", number, ErrCueNotFound)
	}
	c, err := repositories.ToCue(row)
	if err != nil {
		return nil, err
	}
	if err := s.registry.Recall(row.Universe, c); err != nil {
		return nil, err
	}
	log.Printf("🎬 Recalled cue %d (%s) into universe %d", c.ID(), c.Name(), row.Universe)
	return c, nil
}

// DeleteCue removes a saved cue.
func (s *Service) DeleteCue(ctx context.Context, number int) error {
	row, err := s.cues.FindByNumber(ctx, number)
	if err != nil {
		return fmt.Errorf("failed to load cue %d: %w", number, err)
	}
	if row == nil {
		return fmt.Errorf("cue %d: %w", number, ErrCueNotFound)
	}
	if err := s.cues.DeleteByNumber(ctx, number); err != nil {
		return fmt.Errorf("failed to delete cue %d: %w", number, err)
	}
	log.Printf("🗑️  Deleted cue %d", number)
	return nil
}

// ListCues returns every saved cue ordered by number.
func (s *Service) ListCues(ctx context.Context) ([]models.Cue, error) {
	return s.cues.FindAll(ctx)
}
