// Package cue provides named, immutable snapshots of DMX output values.
package cue

import (
	"fmt"

	"github.com/bbernstein/lacylights-patch/internal/fixture"
)

// Writer accepts replayed values. *fixture.Channel satisfies it.
type Writer interface {
	SetAddress(offset, value int) error
}

// Cue is a labeled copy of output values captured at one moment.
type Cue struct {
	id          int
	name        string
	channelData fixture.UniverseData
}

// New creates a cue holding its own copy of channelData.
func New(id int, name string, channelData fixture.UniverseData) *Cue {
	data := channelData.Clone()
	if data == nil {
		data = fixture.UniverseData{}
	}
	return &Cue{
		id:          id,
		name:        name,
		channelData: data,
	}
}

// Capture snapshots the current output of a channel.
func Capture(id int, name string, ch *fixture.Channel) *Cue {
	// Output already returns a copy; New copies again so Cue never depends on that.
	return New(id, name, ch.Output())
}

// ID returns the cue number.
func (c *Cue) ID() int { return c.id }

// Name returns the cue label.
func (c *Cue) Name() string { return c.name }

// Len returns the number of stored values.
func (c *Cue) Len() int { return len(c.channelData) }

// ChannelData returns a copy of the stored values.
func (c *Cue) ChannelData() fixture.UniverseData {
	return c.channelData.Clone()
}

// Value returns the stored value at i.
func (c *Cue) Value(i int) (int, bool) {
	if i < 0 || i >= len(c.channelData) {
		return fixture.Unset, false
	}
	return c.channelData[i], true
}

// Replay writes every set value, in order, through w. Unset slots are skipped.
// It stops at the first failed write.
func (c *Cue) Replay(w Writer) error {
	for offset, value := range c.channelData {
		if value == fixture.Unset {
			continue
		}
		if err := w.SetAddress(offset, value); err != nil {
			return fmt.Errorf("replay cue %d (%s) at offset %d: %w", c.id, c.name, offset, err)
		}
	}
	return nil
}

// Slice returns a copy of length n starting at start, padding with Unset
// where the cue holds no data.
func (c *Cue) Slice(start, n int) fixture.UniverseData {
	out := make(fixture.UniverseData, n)
	for i := range out {
		v, ok := c.Value(start + i)
		if !ok {
			v = fixture.Unset
		}
		out[i] = v
	}
	return out
}
