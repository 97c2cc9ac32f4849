// Package fixture models a patched lighting fixture: the mapping from a
// fixture profile and channel mode to a contiguous DMX footprint, the live
// output values for that footprint, and change notification.
package fixture

// ChannelType is the semantic function of a fixture channel.
type ChannelType string

// Channel types, matching the vocabulary used by the fixture catalog.
const (
	TypeIntensity  ChannelType = "INTENSITY"
	TypeRed        ChannelType = "RED"
	TypeGreen      ChannelType = "GREEN"
	TypeBlue       ChannelType = "BLUE"
	TypeWhite      ChannelType = "WHITE"
	TypeAmber      ChannelType = "AMBER"
	TypeUV         ChannelType = "UV"
	TypePan        ChannelType = "PAN"
	TypeTilt       ChannelType = "TILT"
	TypeZoom       ChannelType = "ZOOM"
	TypeFocus      ChannelType = "FOCUS"
	TypeIris       ChannelType = "IRIS"
	TypeGobo       ChannelType = "GOBO"
	TypeColorWheel ChannelType = "COLOR_WHEEL"
	TypeEffect     ChannelType = "EFFECT"
	TypeStrobe     ChannelType = "STROBE"
	TypeMacro      ChannelType = "MACRO"
	TypeOther      ChannelType = "OTHER"
)

// Unset marks an output slot that has not been written yet.
const Unset = -1

// UniverseData is an ordered run of output values. Each value is Unset or a
// DMX level in [0, 255].
type UniverseData []int

// Clone returns a copy that shares no memory with d.
func (d UniverseData) Clone() UniverseData {
	if d == nil {
		return nil
	}
	out := make(UniverseData, len(d))
	copy(out, d)
	return out
}

// FixtureChannel describes one controllable parameter of a fixture.
type FixtureChannel struct {
	Name string
	Type ChannelType

	// AddressOffset is the mode-relative slot of the channel. It is only
	// meaningful on the copies held in a Channel's channel map.
	AddressOffset int
}

// ChannelMode selects and orders a subset of a profile's channels.
type ChannelMode struct {
	Count    int
	Channels []int
}

// ProfileOptions holds per-instance profile settings.
type ProfileOptions struct {
	ChannelMode string
}

// DefinedProfile is a fixture profile with a selected channel mode, as
// supplied by the fixture catalog.
type DefinedProfile struct {
	Name         string
	Channels     map[int]FixtureChannel
	ChannelModes map[string]ChannelMode
	Options      ProfileOptions
}

// WithMode returns a shallow copy of the profile with a different mode
// selected. Channel and mode tables are shared and must be treated as
// read-only.
func (p DefinedProfile) WithMode(mode string) *DefinedProfile {
	p.Options.ChannelMode = mode
	return &p
}

// DmxAddressRange is the inclusive absolute address span of a fixture.
type DmxAddressRange struct {
	Initial int
	Final   int
}

// Len returns the number of slots in the range.
func (r DmxAddressRange) Len() int {
	return r.Final - r.Initial + 1
}

// Contains reports whether an absolute address falls inside the range.
func (r DmxAddressRange) Contains(address int) bool {
	return address >= r.Initial && address <= r.Final
}

// Overlaps reports whether two ranges share at least one address.
func (r DmxAddressRange) Overlaps(other DmxAddressRange) bool {
	return r.Initial <= other.Final && other.Initial <= r.Final
}
