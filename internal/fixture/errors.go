package fixture

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is matched by every *ConfigurationError.
	ErrConfiguration = errors.New("invalid fixture configuration")
	// ErrInvalidAddress is matched by every *InvalidAddressError.
	ErrInvalidAddress = errors.New("invalid address offset")
)

// ConfigurationError reports profile or mode data that cannot produce a
// channel map.
type ConfigurationError struct {
	Profile      string
	Mode         string
	ChannelIndex int // -1 when the problem is not tied to a channel
	Reason       string
}

func (e *ConfigurationError) Error() string {
	if e.ChannelIndex >= 0 {
		return fmt.Sprintf("profile %q mode %q: channel %d: %s", e.Profile, e.Mode, e.ChannelIndex, e.Reason)
	}
	return fmt.Sprintf("profile %q mode %q: %s", e.Profile, e.Mode, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// InvalidAddressError reports a write or read outside a channel map.
type InvalidAddressError struct {
	Offset int
	Length int
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("address offset %d does not exist in channel map (length %d)", e.Offset, e.Length)
}

func (e *InvalidAddressError) Is(target error) bool {
	return target == ErrInvalidAddress
}
