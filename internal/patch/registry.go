// Package patch owns the set of patched channels: identity, placement in a
// universe, and the wiring of channel events to DMX output and subscribers.
package patch

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"

	"github.com/bbernstein/lacylights-patch/internal/cue"
	"github.com/bbernstein/lacylights-patch/internal/fixture"
	"github.com/bbernstein/lacylights-patch/internal/services/pubsub"
)

// UniverseSize is the number of addresses in a universe.
const UniverseSize = 512

var (
	ErrNotFound        = errors.New("channel not found")
	ErrIDInUse         = errors.New("channel id already in use")
	ErrAddressConflict = errors.New("address range overlaps a patched channel")
	ErrOutOfUniverse   = errors.New("address range outside universe")
)

// Output receives absolute DMX writes. *dmx.Service satisfies it.
type Output interface {
	SetChannelValue(universe, channel int, value byte)
	HasUniverse(universe int) bool
}

// Publisher fans events out to stream subscribers. *pubsub.PubSub satisfies it.
type Publisher interface {
	Publish(topic pubsub.Topic, filter string, message interface{})
}

type entry struct {
	channel  *fixture.Channel
	universe int
	subs     []fixture.Subscription
}

// Registry holds the patched channels across universes.
type Registry struct {
	mu sync.RWMutex

	output    Output
	publisher Publisher

	entries   map[int]*entry
	nextID    int
	nextCueID int
}

// NewRegistry creates a registry. output and publisher may be nil.
func NewRegistry(output Output, publisher Publisher) *Registry {
	return &Registry{
		output:    output,
		publisher: publisher,
		entries:   make(map[int]*entry),
		nextID:    1,
		nextCueID: 1,
	}
}

// Patch builds a channel from profile at start in universe and assigns it the
// next free ID.
func (r *Registry) Patch(profile *fixture.DefinedProfile, universe, start int) (*fixture.Channel, error) {
	return r.add(0, profile, universe, start)
}

// PatchWithID patches a channel under a caller-chosen ID, as when restoring a
// saved patch.
func (r *Registry) PatchWithID(id int, profile *fixture.DefinedProfile, universe, start int) (*fixture.Channel, error) {
	if id < 1 {
		return nil, fmt.Errorf("patch channel %d: id must be positive", id)
	}
	return r.add(id, profile, universe, start)
}

// add patches a channel; id 0 picks the next free ID.
func (r *Registry) add(id int, profile *fixture.DefinedProfile, universe, start int) (*fixture.Channel, error) {
	ch, err := fixture.NewChannel(id, profile, start)
	if err != nil {
		return nil, err
	}

	// Wire before the channel becomes visible so no write is missed.
	e := &entry{channel: ch, universe: universe}
	e.subs = r.wire(ch, universe)

	r.mu.Lock()
	if id == 0 {
		id = r.nextID
		for r.entries[id] != nil {
			id++
		}
		ch.SetID(id)
	} else if _, exists := r.entries[id]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("patch channel %d: %w", id, ErrIDInUse)
	}
	if err := r.checkPlacement(universe, ch.AddressRange()); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.entries[id] = e
	if id >= r.nextID {
		r.nextID = id + 1
	}
	r.mu.Unlock()

	r.publish(pubsub.TopicPatchUpdated, universe, pubsub.PatchMessage{Action: "patched", ChannelID: id, Universe: universe})
	log.Printf("💡 Patched channel %d (%s, mode %s) at %d/%d-%d",
		id, ch.Name(), ch.Mode(), universe, ch.AddressRange().Initial, ch.AddressRange().Final)
	return ch, nil
}

// HasUniverse reports whether universe can be patched: positive and, when an
// output is attached, one the output transmits.
func (r *Registry) HasUniverse(universe int) bool {
	if universe < 1 {
		return false
	}
	return r.output == nil || r.output.HasUniverse(universe)
}

// checkPlacement validates a footprint against the universe bounds and the
// existing patch. Callers hold r.mu.
func (r *Registry) checkPlacement(universe int, rng fixture.DmxAddressRange) error {
	if !r.HasUniverse(universe) {
		return fmt.Errorf("universe %d: %w", universe, ErrOutOfUniverse)
	}
	if rng.Initial < 1 || rng.Final > UniverseSize {
		return fmt.Errorf("addresses %d-%d: %w", rng.Initial, rng.Final, ErrOutOfUniverse)
	}
	for id, e := range r.entries {
		if e.universe != universe {
			continue
		}
		if e.channel.AddressRange().Overlaps(rng) {
			return fmt.Errorf("addresses %d-%d overlap channel %d: %w", rng.Initial, rng.Final, id, ErrAddressConflict)
		}
	}
	return nil
}

// wire forwards a channel's events to the output and the publisher.
func (r *Registry) wire(ch *fixture.Channel, universe int) []fixture.Subscription {
	initial := ch.AddressRange().Initial

	addrSub := ch.Subscribe(fixture.EventAddressUpdate, func(ev fixture.Event) {
		address := initial + ev.Offset
		if r.output != nil && ev.Value != fixture.Unset {
			r.output.SetChannelValue(universe, address, clampLevel(ev.Value))
		}
		r.publish(pubsub.TopicChannelAddress, universe, pubsub.ChannelAddressMessage{
			ChannelID: ev.ChannelID,
			Universe:  universe,
			Address:   address,
			Offset:    ev.Offset,
			Type:      string(ev.Type),
			Value:     ev.Value,
		})
	})
	nameSub := ch.Subscribe(fixture.EventNameUpdate, func(ev fixture.Event) {
		r.publish(pubsub.TopicChannelName, universe, pubsub.ChannelNameMessage{ChannelID: ev.ChannelID, Name: ev.Name})
	})
	return []fixture.Subscription{addrSub, nameSub}
}

func (r *Registry) publish(topic pubsub.Topic, universe int, msg interface{}) {
	if r.publisher != nil {
		r.publisher.Publish(topic, strconv.Itoa(universe), msg)
	}
}

func clampLevel(v int) byte {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return byte(v)
	}
}

// Unpatch removes a channel and detaches its event wiring.
func (r *Registry) Unpatch(id int) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("unpatch channel %d: %w", id, ErrNotFound)
	}
	delete(r.entries, id)
	subs := e.subs
	r.mu.Unlock()

	for _, sub := range subs {
		e.channel.Unsubscribe(sub)
	}
	r.publish(pubsub.TopicPatchUpdated, e.universe, pubsub.PatchMessage{Action: "unpatched", ChannelID: id, Universe: e.universe})
	log.Printf("💡 Unpatched channel %d", id)
	return nil
}

// Renumber moves a channel to a new ID.
func (r *Registry) Renumber(oldID, newID int) error {
	r.mu.Lock()
	e, ok := r.entries[oldID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("renumber channel %d: %w", oldID, ErrNotFound)
	}
	if newID < 1 {
		r.mu.Unlock()
		return fmt.Errorf("renumber channel %d to %d: id must be positive", oldID, newID)
	}
	if oldID == newID {
		r.mu.Unlock()
		return nil
	}
	if _, taken := r.entries[newID]; taken {
		r.mu.Unlock()
		return fmt.Errorf("renumber channel %d to %d: %w", oldID, newID, ErrIDInUse)
	}
	delete(r.entries, oldID)
	r.entries[newID] = e
	e.channel.SetID(newID)
	if newID >= r.nextID {
		r.nextID = newID + 1
	}
	r.mu.Unlock()

	r.publish(pubsub.TopicPatchUpdated, e.universe, pubsub.PatchMessage{Action: "renumbered", ChannelID: newID, Universe: e.universe})
	return nil
}

// Get returns a channel by ID.
func (r *Registry) Get(id int) (*fixture.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("channel %d: %w", id, ErrNotFound)
	}
	return e.channel, nil
}

// UniverseOf returns the universe a channel is patched into.
func (r *Registry) UniverseOf(id int) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return 0, fmt.Errorf("channel %d: %w", id, ErrNotFound)
	}
	return e.universe, nil
}

// Channels returns every patched channel ordered by ID.
func (r *Registry) Channels() []*fixture.Channel {
	return r.collect(func(*entry) bool { return true })
}

// InUniverse returns the channels patched into universe, ordered by ID.
func (r *Registry) InUniverse(universe int) []*fixture.Channel {
	return r.collect(func(e *entry) bool { return e.universe == universe })
}

func (r *Registry) collect(keep func(*entry) bool) []*fixture.Channel {
	r.mu.RLock()
	ids := make([]int, 0, len(r.entries))
	for id, e := range r.entries {
		if keep(e) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	out := make([]*fixture.Channel, len(ids))
	for i, id := range ids {
		out[i] = r.entries[id].channel
	}
	r.mu.RUnlock()
	return out
}

// Len returns the number of patched channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot returns the universe as seen through the patched channels.
// Slot i holds address i+1; addresses no channel has written are Unset.
func (r *Registry) Snapshot(universe int) fixture.UniverseData {
	data := make(fixture.UniverseData, UniverseSize)
	for i := range data {
		data[i] = fixture.Unset
	}
	for _, ch := range r.InUniverse(universe) {
		copy(data[ch.AddressRange().Initial-1:], ch.Output())
	}
	return data
}

// CaptureCue snapshots a universe under the next cue number. Nothing is
// published until PublishCue; a cue that is never kept should hand its
// number back with ReleaseCueNumber.
func (r *Registry) CaptureCue(universe int, name string) (*cue.Cue, error) {
	if !r.HasUniverse(universe) {
		return nil, fmt.Errorf("universe %d: %w", universe, ErrOutOfUniverse)
	}

	r.mu.Lock()
	id := r.nextCueID
	r.nextCueID++
	r.mu.Unlock()

	return cue.New(id, name, r.Snapshot(universe)), nil
}

// ReleaseCueNumber returns n to the pool if it is the most recent number
// handed out.
func (r *Registry) ReleaseCueNumber(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nextCueID == n+1 {
		r.nextCueID = n
	}
}

// PublishCue announces a kept cue to stream subscribers.
func (r *Registry) PublishCue(universe int, c *cue.Cue) {
	r.publish(pubsub.TopicCueRecorded, universe, pubsub.CueMessage{CueNumber: c.ID(), Name: c.Name(), Universe: universe})
}

// ReserveCueNumber makes sure later recorded cues are numbered above n.
func (r *Registry) ReserveCueNumber(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n >= r.nextCueID {
		r.nextCueID = n + 1
	}
}

// Recall replays a universe cue through every channel patched in universe.
// Each channel receives the slice of the cue covering its footprint.
func (r *Registry) Recall(universe int, c *cue.Cue) error {
	for _, ch := range r.InUniverse(universe) {
		rng := ch.AddressRange()
		slice := cue.New(c.ID(), c.Name(), c.Slice(rng.Initial-1, rng.Len()))
		if err := slice.Replay(ch); err != nil {
			return fmt.Errorf("recall cue %d on channel %d: %w", c.ID(), ch.ID(), err)
		}
	}
	return nil
}
