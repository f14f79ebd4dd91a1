/*Package ad5628 encodes commands for the Analog Devices AD5628 12-bit, 8 channel
DAC found on the Digilent Pmod DA4.

Every command is a single 32-bit word shifted out MSB first, which this package
represents as a 4 byte Frame:

 byte 0  [xxxx CCCC]  4 don't care bits, command opcode
 byte 1  [AAAA DDDD]  channel address, data bits 11:8
 byte 2  [DDDD DDDD]  data bits 7:0
 byte 3  [TTTT TTTT]  tag; 0x55 filler for DAC updates, 0x01/0x00 for the reference

Basic usage is as follows:
 f := ad5628.Update(ad5628.ChannelA, 2048) // mid scale on channel A
 conn.Tx(f[:], nil)

Nothing in this package validates its inputs.  Channel codes outside A~G and
All, and samples wider than 12 bits, are packed as given.
*/
package ad5628

import (
	"fmt"

	"github.com/pkg/errors"
)

// Channel is a 4-bit DAC address
type Channel uint8

// Frame is one command on the wire
type Frame [4]byte

const (
	// ChannelA is DAC output A
	ChannelA Channel = iota
	// ChannelB is DAC output B
	ChannelB
	// ChannelC is DAC output C
	ChannelC
	// ChannelD is DAC output D
	ChannelD
	// ChannelE is DAC output E
	ChannelE
	// ChannelF is DAC output F
	ChannelF
	// ChannelG is DAC output G
	ChannelG

	// ChannelAll addresses every output at once
	ChannelAll Channel = 0x0F
)

const (
	// OpWriteUpdate writes the input register of a channel and updates its output
	OpWriteUpdate byte = 0x03

	// OpReference sets up the internal reference
	OpReference byte = 0x08

	// TagUpdate is the filler byte sent with DAC updates
	TagUpdate byte = 0x55

	// TagReferenceOn turns the internal reference on
	TagReferenceOn byte = 0x01

	// TagReferenceOff turns the internal reference off
	TagReferenceOff byte = 0x00

	// MaxDN is the largest 12-bit sample
	MaxDN = 4095

	// Steps is the number of distinct samples
	Steps = MaxDN + 1
)

// Encode packs a channel, a 12-bit sample, an opcode and a tag byte into a frame
func Encode(ch Channel, sample uint16, opcode, tag byte) Frame {
	return Frame{
		opcode,
		byte(ch)<<4 | byte(sample>>8)&0x0F,
		byte(sample),
		tag,
	}
}

// Update is a write and update command for one channel
func Update(ch Channel, sample uint16) Frame {
	return Encode(ch, sample, OpWriteUpdate, TagUpdate)
}

// ReferenceOn powers the internal reference
func ReferenceOn() Frame {
	return Encode(ChannelA, 0, OpReference, TagReferenceOn)
}

// ReferenceOff shuts down the internal reference
func ReferenceOff() Frame {
	return Encode(ChannelA, 0, OpReference, TagReferenceOff)
}

// Channel returns the address nibble of the frame
func (f Frame) Channel() Channel {
	return Channel(f[1] >> 4)
}

// Sample returns the 12 data bits of the frame
func (f Frame) Sample() uint16 {
	return uint16(f[1]&0x0F)<<8 | uint16(f[2])
}

// String formats the channel as a letter, or "all"
func (c Channel) String() string {
	switch {
	case c <= ChannelG:
		return string(rune('A' + c))
	case c == ChannelAll:
		return "all"
	default:
		return fmt.Sprintf("0x%X", uint8(c))
	}
}

// ParseChannel converts a letter A~G or "all" to a Channel
func ParseChannel(s string) (Channel, error) {
	switch s {
	case "all", "ALL", "All", "*":
		return ChannelAll, nil
	}
	if len(s) == 1 {
		c := s[0]
		if c >= 'a' && c <= 'g' {
			c -= 'a' - 'A'
		}
		if c >= 'A' && c <= 'G' {
			return Channel(c - 'A'), nil
		}
	}
	return 0, errors.Errorf("ad5628: unknown channel %q, must be A~G or all", s)
}
