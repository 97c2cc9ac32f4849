// Package artnet builds and parses Art-Net ArtDmx packets.
package artnet

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// OpCodeDMX is the Art-Net operation code for DMX data.
	OpCodeDMX uint16 = 0x5000
	// ProtocolVersion is the Art-Net protocol version.
	ProtocolVersion uint16 = 14
	// DMXDataLength is the number of DMX channels per universe.
	DMXDataLength uint16 = 512
	// HeaderSize is the ArtDmx header length before the slot data.
	HeaderSize = 18
	// PacketSize is the total size of a full-universe ArtDmx packet.
	PacketSize = HeaderSize + int(DMXDataLength)
	// DefaultPort is the standard Art-Net UDP port.
	DefaultPort = 6454
)

// ArtNetID is the Art-Net packet identifier.
var ArtNetID = []byte{'A', 'r', 't', '-', 'N', 'e', 't', 0x00}

// DMXPacket is a decoded ArtDmx packet.
type DMXPacket struct {
	Sequence byte
	Physical byte
	// Universe is 1-based, as used throughout the application.
	Universe int
	Data     []byte
}

// BuildDMXPacket creates an ArtDmx packet for a 1-based universe.
// Channels shorter than 512 bytes are zero padded; extra bytes are ignored.
// Sequence should increment per packet so receivers can reorder UDP frames.
func BuildDMXPacket(universe int, channels []byte, sequence byte) []byte {
	packet := make([]byte, PacketSize)

	copy(packet[0:8], ArtNetID)
	binary.LittleEndian.PutUint16(packet[8:10], OpCodeDMX)
	binary.BigEndian.PutUint16(packet[10:12], ProtocolVersion)
	packet[12] = sequence
	packet[13] = 0
	binary.LittleEndian.PutUint16(packet[14:16], uint16(universe-1)) // wire universe is 0-based
	binary.BigEndian.PutUint16(packet[16:18], DMXDataLength)

	n := len(channels)
	if n > int(DMXDataLength) {
		n = int(DMXDataLength)
	}
	copy(packet[HeaderSize:HeaderSize+n], channels[:n])

	return packet
}

// ParseDMXPacket decodes an ArtDmx packet.
func ParseDMXPacket(packet []byte) (*DMXPacket, error) {
	if len(packet) < HeaderSize {
		return nil, fmt.Errorf("artnet: packet too short (%d bytes)", len(packet))
	}
	if !bytes.Equal(packet[0:8], ArtNetID) {
		return nil, fmt.Errorf("artnet: missing Art-Net identifier")
	}
	if op := binary.LittleEndian.Uint16(packet[8:10]); op != OpCodeDMX {
		return nil, fmt.Errorf("artnet: unsupported opcode 0x%04x", op)
	}

	length := int(binary.BigEndian.Uint16(packet[16:18]))
	if length > int(DMXDataLength) || HeaderSize+length > len(packet) {
		return nil, fmt.Errorf("artnet: invalid data length %d", length)
	}

	data := make([]byte, length)
	copy(data, packet[HeaderSize:HeaderSize+length])

	return &DMXPacket{
		Sequence: packet[12],
		Physical: packet[13],
		Universe: int(binary.LittleEndian.Uint16(packet[14:16])) + 1,
		Data:     data,
	}, nil
}
