package fixture

import (
	"sync"
)

// Channel is a single patched fixture. Its channel map and address range are
// fixed at construction; a mode change means building a new Channel.
type Channel struct {
	mu sync.RWMutex

	id           int
	name         string
	profile      *DefinedProfile
	mode         string
	addressRange DmxAddressRange
	channelMap   []FixtureChannel
	output       UniverseData

	listeners listeners
}

// NewChannel builds a channel from the profile's selected mode, starting at
// dmxAddressStart. The profile is only read; the channel keeps its own copies
// of the mode's channel descriptors.
func NewChannel(id int, profile *DefinedProfile, dmxAddressStart int) (*Channel, error) {
	channelMap, err := resolveChannelMap(profile)
	if err != nil {
		return nil, err
	}

	output := make(UniverseData, len(channelMap))
	for i := range output {
		output[i] = Unset
	}

	return &Channel{
		id:      id,
		name:    profile.Name,
		profile: profile,
		mode:    profile.Options.ChannelMode,
		addressRange: DmxAddressRange{
			Initial: dmxAddressStart,
			Final:   dmxAddressStart + len(channelMap) - 1,
		},
		channelMap: channelMap,
		output:     output,
	}, nil
}

func resolveChannelMap(profile *DefinedProfile) ([]FixtureChannel, error) {
	if profile == nil {
		return nil, &ConfigurationError{ChannelIndex: -1, Reason: "profile is nil"}
	}

	modeName := profile.Options.ChannelMode
	mode, ok := profile.ChannelModes[modeName]
	if !ok {
		return nil, &ConfigurationError{Profile: profile.Name, Mode: modeName, ChannelIndex: -1, Reason: "channel mode not defined"}
	}
	if mode.Count <= 0 {
		return nil, &ConfigurationError{Profile: profile.Name, Mode: modeName, ChannelIndex: -1, Reason: "channel mode has no channels"}
	}
	if mode.Count != len(mode.Channels) {
		return nil, &ConfigurationError{
			Profile:      profile.Name,
			Mode:         modeName,
			ChannelIndex: -1,
			Reason:       "channel count does not match channel list",
		}
	}

	channelMap := make([]FixtureChannel, 0, len(mode.Channels))
	for position, index := range mode.Channels {
		ch, ok := profile.Channels[index]
		if !ok {
			return nil, &ConfigurationError{Profile: profile.Name, Mode: modeName, ChannelIndex: index, Reason: "channel not defined in profile"}
		}
		ch.AddressOffset = position
		channelMap = append(channelMap, ch)
	}
	return channelMap, nil
}

// ID returns the registry-assigned identity.
func (c *Channel) ID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// SetID reassigns the channel's identity. Only the owning registry calls this.
func (c *Channel) SetID(id int) *Channel {
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
	return c
}

// Name returns the display label.
func (c *Channel) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// SetName replaces the display label and emits a nameUpdate event.
func (c *Channel) SetName(name string) *Channel {
	c.mu.Lock()
	c.name = name
	ev := Event{Kind: EventNameUpdate, ChannelID: c.id, Name: name}
	ls := c.listeners.snapshot(EventNameUpdate)
	c.mu.Unlock()

	dispatch(ls, ev)
	return c
}

// Profile returns the profile the channel was built from.
func (c *Channel) Profile() *DefinedProfile {
	return c.profile
}

// Mode returns the channel mode the footprint was computed from.
func (c *Channel) Mode() string {
	return c.mode
}

// AddressRange returns the absolute footprint in the universe.
func (c *Channel) AddressRange() DmxAddressRange {
	return c.addressRange
}

// Len returns the number of slots in the footprint.
func (c *Channel) Len() int {
	return len(c.channelMap)
}

// ChannelMap returns a copy of the mode-ordered channel descriptors.
func (c *Channel) ChannelMap() []FixtureChannel {
	out := make([]FixtureChannel, len(c.channelMap))
	copy(out, c.channelMap)
	return out
}

// Output returns a copy of the current output values.
func (c *Channel) Output() UniverseData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.output.Clone()
}

// Value returns the output value at offset.
func (c *Channel) Value(offset int) (int, error) {
	if offset < 0 || offset >= len(c.channelMap) {
		return Unset, &InvalidAddressError{Offset: offset, Length: len(c.channelMap)}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.output[offset], nil
}

// SetAddress writes value at the mode-relative offset and emits an
// addressUpdate event. The value is stored as given; level validation belongs
// to the output transport. A failed write changes nothing and emits nothing.
func (c *Channel) SetAddress(offset, value int) error {
	if offset < 0 || offset >= len(c.channelMap) {
		return &InvalidAddressError{Offset: offset, Length: len(c.channelMap)}
	}

	c.mu.Lock()
	c.output[offset] = value
	ev := Event{
		Kind:      EventAddressUpdate,
		ChannelID: c.id,
		Offset:    offset,
		Type:      c.channelMap[offset].Type,
		Value:     value,
	}
	ls := c.listeners.snapshot(EventAddressUpdate)
	c.mu.Unlock()

	dispatch(ls, ev)
	return nil
}

// ChannelsMatchType returns the descriptors of type t in channel map order.
// The result is empty, not nil, when nothing matches.
func (c *Channel) ChannelsMatchType(t ChannelType) []FixtureChannel {
	matches := []FixtureChannel{}
	for _, ch := range c.channelMap {
		if ch.Type == t {
			matches = append(matches, ch)
		}
	}
	return matches
}

// AddressFromType returns the first offset whose type is t, or -1.
func (c *Channel) AddressFromType(t ChannelType) int {
	for i, ch := range c.channelMap {
		if ch.Type == t {
			return i
		}
	}
	return -1
}

// MasterAddress returns the offset of the intensity channel, or -1.
func (c *Channel) MasterAddress() int {
	return c.AddressFromType(TypeIntensity)
}

// Subscribe registers h for events of the given kind. Handlers run
// synchronously on the mutating goroutine, in registration order.
func (c *Channel) Subscribe(kind EventKind, h Handler) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listeners.add(kind, h)
}

// Unsubscribe removes a handler. It reports whether the handler was found.
func (c *Channel) Unsubscribe(sub Subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listeners.remove(sub)
}

// OnNameUpdate registers fn for nameUpdate events.
func (c *Channel) OnNameUpdate(fn func(name string)) Subscription {
	return c.Subscribe(EventNameUpdate, func(ev Event) {
		fn(ev.Name)
	})
}

// OnAddressUpdate registers fn for addressUpdate events.
func (c *Channel) OnAddressUpdate(fn func(offset int, t ChannelType, value int)) Subscription {
	return c.Subscribe(EventAddressUpdate, func(ev Event) {
		fn(ev.Offset, ev.Type, ev.Value)
	})
}

// ListenerCount returns the number of handlers registered for kind.
func (c *Channel) ListenerCount(kind EventKind) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.listeners.count(kind)
}
